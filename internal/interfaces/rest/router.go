package rest

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/turtacn/KappaForge/internal/infrastructure/monitoring/logging"
)

// RouterConfig aggregates the dependencies of the status API.
type RouterConfig struct {
	Store  *Store
	Logger logging.Logger

	// Mode is the gin mode: "debug", "release" (default), or "test".
	Mode string
}

// NewRouter assembles the status API:
//
//	GET /healthz                    liveness
//	GET /v1/simulation              run id, model, clock, event count, sizes
//	GET /v1/simulation/observables  latest observable values
//	GET /v1/simulation/rules        per-rule applied/failed tallies
func NewRouter(cfg RouterConfig) *gin.Engine {
	if cfg.Mode == "" {
		cfg.Mode = gin.ReleaseMode
	}
	gin.SetMode(cfg.Mode)

	logger := cfg.Logger
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	logger = logger.Named("rest")

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(requestLogger(logger))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	v1 := r.Group("/v1")
	{
		v1.GET("/simulation", func(c *gin.Context) {
			snap := cfg.Store.Latest()
			c.JSON(http.StatusOK, gin.H{
				"run_id": snap.RunID,
				"model":  snap.Model,
				"time":   snap.Time,
				"events": snap.Events,
				"agents": snap.Agents,
			})
		})
		v1.GET("/simulation/observables", func(c *gin.Context) {
			c.JSON(http.StatusOK, cfg.Store.Latest().Observables)
		})
		v1.GET("/simulation/rules", func(c *gin.Context) {
			rules := cfg.Store.Latest().Rules
			if rules == nil {
				rules = []RuleStatus{}
			}
			c.JSON(http.StatusOK, rules)
		})
	}
	return r
}

// requestLogger emits one debug entry per request; the status API is a
// diagnostics surface, so access logs stay out of Info.
func requestLogger(logger logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		logger.Debug("request",
			logging.String("method", c.Request.Method),
			logging.String("path", c.Request.URL.Path),
			logging.Int("status", c.Writer.Status()))
	}
}

package config

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// envPrefix is the environment variable prefix used by all simulator settings.
const envPrefix = "KAPPAFORGE"

// newViper builds a pre-configured Viper instance with the simulator's
// standard settings: YAML file type, KAPPAFORGE_ env prefix, automatic env
// binding, and a key replacer that maps "." → "_" so that nested keys like
// "simulation.seed" resolve to "KAPPAFORGE_SIMULATION_SEED".
func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// AutomaticEnv does not pick up nested keys absent from the file, so bind
	// every field of the Config struct explicitly.
	bindEnvs(v, Config{})

	return v
}

// bindEnvs recursively binds each field of the given struct to an environment
// variable using its "mapstructure" tag.
func bindEnvs(v *viper.Viper, iface interface{}, parts ...string) {
	ift := reflect.TypeOf(iface)
	if ift.Kind() == reflect.Ptr {
		ift = ift.Elem()
	}
	for i := 0; i < ift.NumField(); i++ {
		field := ift.Field(i)
		tag := field.Tag.Get("mapstructure")
		if tag == "" || tag == "," {
			continue
		}
		newParts := append(parts, tag)
		if field.Type.Kind() == reflect.Struct && field.Type.String() != "time.Duration" {
			bindEnvs(v, reflect.New(field.Type).Elem().Interface(), newParts...)
			continue
		}
		_ = v.BindEnv(strings.Join(newParts, "."))
	}
}

// Load reads configuration from the given YAML file (optional — pass "" to
// rely on environment variables and defaults alone), applies defaults, and
// validates.
func Load(path string) (*Config, error) {
	v := newViper()
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: reading %s: %w", path, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshalling: %w", err)
	}
	ApplyDefaults(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Watch reloads the configuration whenever the file changes and hands each
// valid new Config to onChange.  Invalid edits are reported through onError
// and the previous configuration stays in force.
func Watch(path string, onChange func(*Config), onError func(error)) error {
	v := newViper()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("config: reading %s: %w", path, err)
	}

	v.OnConfigChange(func(_ fsnotify.Event) {
		cfg := &Config{}
		if err := v.Unmarshal(cfg); err != nil {
			onError(fmt.Errorf("config: unmarshalling after change: %w", err))
			return
		}
		ApplyDefaults(cfg)
		if err := cfg.Validate(); err != nil {
			onError(err)
			return
		}
		onChange(cfg)
	})
	v.WatchConfig()
	return nil
}

// Package config loads attune's settings: defaults, then the YAML file,
// then ATTUNE_* environment overrides.
package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"reflect"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/abhisek/attune/internal/dialogue"
	"github.com/abhisek/attune/internal/dispatch"
	"github.com/abhisek/attune/internal/engine"
	"github.com/abhisek/attune/internal/feed"
	"github.com/abhisek/attune/internal/fusion"
	"github.com/abhisek/attune/internal/llm"
	"github.com/abhisek/attune/internal/logging"
	"github.com/abhisek/attune/internal/mastery"
	"github.com/abhisek/attune/internal/scheduler"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "ATTUNE"

// DefaultFile is read from the working directory when no path is given.
const DefaultFile = "attune.yaml"

// Config is the full set of settings.
type Config struct {
	Server    ServerConfig           `yaml:"server"`
	DB        string                 `yaml:"db,omitempty"`
	Log       logging.Config         `yaml:"log"`
	LLM       llm.Config             `yaml:"llm"`
	Fusion    fusion.Config          `yaml:"fusion"`
	Mastery   mastery.Params         `yaml:"mastery"`
	Scheduler scheduler.Config       `yaml:"scheduler"`
	Dialogue  dialogue.TutorConfig   `yaml:"dialogue"`
	Handlers  dispatch.HandlerConfig `yaml:"handlers"`
	Feed      feed.Config            `yaml:"feed"`
	Bus       BusConfig              `yaml:"bus"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Addr            string        `yaml:"addr"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	AllowedOrigins  []string      `yaml:"allowed_origins"`
}

type BusConfig struct {
	Buffer int `yaml:"buffer"`
}

func Default() Config {
	return Config{
		Server: ServerConfig{
			Addr:            ":8080",
			ReadTimeout:     30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			AllowedOrigins:  []string{"*"},
		},
		Log:       logging.DefaultConfig(),
		LLM:       llm.DefaultConfig(),
		Fusion:    fusion.DefaultConfig(),
		Mastery:   mastery.DefaultParams(),
		Scheduler: scheduler.DefaultConfig(),
		Dialogue:  dialogue.DefaultTutorConfig(),
		Handlers:  dispatch.DefaultHandlerConfig(),
		Feed:      feed.DefaultConfig(),
		Bus:       BusConfig{Buffer: 64},
	}
}

// Engine returns the thresholds the running engine can swap.
func (c Config) Engine() engine.Config {
	return engine.Config{Fusion: c.Fusion, Scheduler: c.Scheduler, Limits: c.Dialogue.Limits}
}

// Redacted returns a copy with provider API keys masked, for display.
func (c Config) Redacted() Config {
	mask := func(k *string) {
		if *k != "" {
			*k = "<redacted>"
		}
	}
	mask(&c.LLM.Anthropic.APIKey)
	mask(&c.LLM.OpenAI.APIKey)
	mask(&c.LLM.Gemini.APIKey)
	mask(&c.LLM.OpenRouter.APIKey)
	return c
}

// ValidationError lists every problem found in a config.
type ValidationError struct {
	Problems []error
}

func (e *ValidationError) Error() string {
	msgs := make([]string, len(e.Problems))
	for i, p := range e.Problems {
		msgs[i] = p.Error()
	}
	return "invalid configuration: " + strings.Join(msgs, "; ")
}

func (e *ValidationError) Unwrap() []error { return e.Problems }

// Validate checks every section and reports all violations at once.
func (c Config) Validate() error {
	var problems []error
	add := func(err error) {
		if err == nil {
			return
		}
		if j, ok := err.(interface{ Unwrap() []error }); ok {
			problems = append(problems, j.Unwrap()...)
			return
		}
		problems = append(problems, err)
	}
	if c.Server.Addr == "" {
		add(errors.New("server addr must not be empty"))
	}
	if c.Bus.Buffer < 0 {
		add(errors.New("bus buffer must not be negative"))
	}
	if c.Dialogue.SessionTTL < 0 {
		add(errors.New("dialogue session_ttl must not be negative"))
	}
	add(c.Log.Validate())
	add(c.LLM.Validate())
	add(c.Fusion.Validate())
	add(c.Mastery.Validate())
	add(c.Scheduler.Validate())
	add(c.Dialogue.Limits.Validate())
	add(c.Feed.Validate())
	if len(problems) == 0 {
		return nil
	}
	return &ValidationError{Problems: problems}
}

// Path picks the config file: the explicit path, then ATTUNE_CONFIG,
// then DefaultFile when it exists. An empty result means defaults only.
func Path(explicit string) string {
	if explicit != "" {
		return explicit
	}
	if p := os.Getenv(EnvPrefix + "_CONFIG"); p != "" {
		return p
	}
	if _, err := os.Stat(DefaultFile); err == nil {
		return DefaultFile
	}
	return ""
}

// Load builds the config from defaults, path (may be empty), a .env
// file in the working directory and the environment, then validates it.
func Load(path string) (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	cfg := Default()
	if path != "" {
		if err := readFile(path, &cfg); err != nil {
			return Config{}, err
		}
	}
	if err := applyEnv(EnvPrefix, &cfg); err != nil {
		return Config{}, err
	}
	cfg.LLM.ApplyEnv()

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func readFile(path string, cfg *Config) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open config: %w", err)
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

// applyEnv walks the config by yaml tag and overrides each scalar from
// PREFIX_SECTION_FIELD. Values are parsed as YAML so durations, bools
// and lists use the same syntax as the file.
func applyEnv(prefix string, cfg *Config) error {
	var errs []error
	var walk func(v reflect.Value, key string)
	walk = func(v reflect.Value, key string) {
		t := v.Type()
		for i := range t.NumField() {
			f := t.Field(i)
			if !f.IsExported() {
				continue
			}
			name, _, _ := strings.Cut(f.Tag.Get("yaml"), ",")
			if name == "-" {
				continue
			}
			if name == "" {
				name = strings.ToLower(f.Name)
			}
			fieldKey := key + "_" + strings.ToUpper(name)
			fv := v.Field(i)

			if fv.Kind() == reflect.Struct && fv.Type() != reflect.TypeOf(time.Time{}) {
				walk(fv, fieldKey)
				continue
			}
			raw, ok := os.LookupEnv(fieldKey)
			if !ok {
				continue
			}
			if err := yaml.Unmarshal([]byte(raw), fv.Addr().Interface()); err != nil {
				errs = append(errs, fmt.Errorf("env %s: %w", fieldKey, err))
			}
		}
	}
	walk(reflect.ValueOf(cfg).Elem(), prefix)
	return errors.Join(errs...)
}

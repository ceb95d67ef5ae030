// Package config loads function settings from the environment.
//
// A .env file in the working directory is loaded first when present, which
// is convenient for local runs; variables already set in the environment
// take precedence.
package config

import (
	"fmt"
	"os"
	"runtime"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/bjaus/lambdafn"
)

// Environment variables read by Load.
const (
	EnvDispatchMode   = "FUNCTION_DISPATCH_MODE"
	EnvParallelism    = "FUNCTION_MAX_DEGREE_OF_PARALLELISM"
	EnvBatchResponse  = "FUNCTION_BATCH_RESPONSE"
	EnvEnvironment    = "ENVIRONMENT"
	EnvLogLevel       = "LOG_LEVEL"
	envLambdaFunction = "AWS_LAMBDA_FUNCTION_NAME"
)

// Config holds the settings consumed by a function.
type Config struct {
	Mode          lambdafn.Mode
	Parallelism   int
	BatchResponse bool
	LogLevel      zerolog.Level
	Environment   Environment
}

// Environment describes where the function runs.
type Environment struct {
	Name     string
	IsLambda bool
}

// Is reports whether the environment name equals name, ignoring case.
func (e Environment) Is(name string) bool {
	return strings.EqualFold(e.Name, name)
}

// IsDevelopment reports whether this is a development environment. An unset
// environment name counts as development.
func (e Environment) IsDevelopment() bool {
	return e.Name == "" || e.Is("development")
}

// IsProduction reports whether this is the production environment.
func (e Environment) IsProduction() bool {
	return e.Is("production")
}

// Load reads the configuration from the environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Parallelism: runtime.NumCPU(),
		LogLevel:    zerolog.InfoLevel,
		Environment: Environment{
			Name:     os.Getenv(EnvEnvironment),
			IsLambda: os.Getenv(envLambdaFunction) != "",
		},
	}

	mode, err := lambdafn.ParseMode(strings.ToLower(os.Getenv(EnvDispatchMode)))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", EnvDispatchMode, err)
	}
	cfg.Mode = mode

	if v := os.Getenv(EnvParallelism); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", EnvParallelism, err)
		}
		if n <= 0 {
			return nil, fmt.Errorf("%s: %w: got %d", EnvParallelism, lambdafn.ErrInvalidParallelism, n)
		}
		cfg.Parallelism = n
	}

	if v := os.Getenv(EnvBatchResponse); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", EnvBatchResponse, err)
		}
		cfg.BatchResponse = b
	}

	if v := os.Getenv(EnvLogLevel); v != "" {
		lvl, err := zerolog.ParseLevel(strings.ToLower(v))
		if err != nil {
			return nil, fmt.Errorf("%s: %w", EnvLogLevel, err)
		}
		cfg.LogLevel = lvl
	}

	return cfg, nil
}

// Options returns the dispatcher options described by c.
func (c *Config) Options() []lambdafn.Option {
	opts := []lambdafn.Option{
		lambdafn.WithBatchResponse(c.BatchResponse),
		lambdafn.WithLogger(c.Logger()),
	}
	if c.Mode == lambdafn.Parallel {
		opts = append(opts, lambdafn.WithParallelism(c.Parallelism))
	}
	return opts
}

// Logger returns a JSON logger at the configured level. Outside Lambda in a
// development environment it writes human-readable console output instead.
func (c *Config) Logger() zerolog.Logger {
	var l zerolog.Logger
	if !c.Environment.IsLambda && c.Environment.IsDevelopment() {
		l = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr})
	} else {
		l = zerolog.New(os.Stdout)
	}
	return l.Level(c.LogLevel).With().Timestamp().Str("pkg", "lambdafn").Logger()
}

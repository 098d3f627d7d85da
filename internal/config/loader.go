package config

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"pantrynotify/internal/types"
)

// ConfigError describes why configuration could not be loaded.
type ConfigError struct {
	Type    ConfigErrorType
	Message string
	Err     error
}

func (e *ConfigError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Type, e.Message)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// AppError converts the failure into the job's ConfigError kind so callers
// can render it through the standard error envelope.
func (e *ConfigError) AppError() *types.AppError {
	return types.NewAppErrorWithDetails(types.ErrCodeConfigInvalid, "configuration is invalid", e,
		map[string]any{"config_error_type": string(e.Type)})
}

const (
	ssmParamSuffix = "_SSM_PARAM"
	localEnv       = "local"
	ssmTimeout     = 30 * time.Second
)

// loaderDeps lets tests drive the loader without touching process env.
type loaderDeps struct {
	lookupEnv func(key string) (string, bool)
	setEnv    func(key, value string) error
	environ   func() []string
}

func defaultDeps() loaderDeps {
	return loaderDeps{
		lookupEnv: os.LookupEnv,
		setEnv:    os.Setenv,
		environ:   os.Environ,
	}
}

// LoadConfig loads, resolves and validates the configuration:
//  1. force UTC;
//  2. load .env if present;
//  3. resolve *_SSM_PARAM pointers unless APP_ENV=local;
//  4. populate via envconfig;
//  5. attach build info;
//  6. validate.
//
// provider may be nil for local runs.
func LoadConfig(provider SecretProvider) (*Config, error) {
	return loadConfigWithDeps(provider, defaultDeps())
}

func loadConfigWithDeps(provider SecretProvider, deps loaderDeps) (*Config, error) {
	time.Local = time.UTC

	// Does not override variables that are already set.
	_ = godotenv.Load()

	if appEnv, _ := deps.lookupEnv("APP_ENV"); appEnv != localEnv && appEnv != "" {
		if err := resolveSSMParams(provider, deps); err != nil {
			return nil, err
		}
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, &ConfigError{
			Type:    ErrParsing,
			Message: "failed to process environment configuration",
			Err:     err,
		}
	}

	cfg.Build = NewBuildInfo()

	if err := validator.New().Struct(cfg); err != nil {
		return nil, &ConfigError{
			Type:    ErrValidation,
			Message: "configuration validation failed",
			Err:     err,
		}
	}
	if cfg.Job.SendTimeout <= 0 || cfg.Job.RunDeadline <= 0 {
		return nil, &ConfigError{
			Type:    ErrValidation,
			Message: "SEND_TIMEOUT and RUN_DEADLINE must be positive",
		}
	}

	return &cfg, nil
}

// ResolveSecrets runs only the SSM step. Entry points call it before reading
// individual variables with os.Getenv.
func ResolveSecrets(provider SecretProvider) error {
	if appEnv, _ := os.LookupEnv("APP_ENV"); appEnv == localEnv || appEnv == "" {
		return nil
	}
	return resolveSSMParams(provider, defaultDeps())
}

// resolveSSMParams finds FOO_SSM_PARAM=/path entries, fetches /path, and sets
// FOO. A FOO that is already set wins over SSM.
func resolveSSMParams(provider SecretProvider, deps loaderDeps) error {
	pathToTarget := make(map[string]string)

	for _, entry := range deps.environ() {
		key, path, ok := strings.Cut(entry, "=")
		if !ok || !strings.HasSuffix(key, ssmParamSuffix) || path == "" {
			continue
		}
		target := strings.TrimSuffix(key, ssmParamSuffix)
		if _, set := deps.lookupEnv(target); set {
			continue
		}
		pathToTarget[path] = target
	}

	if len(pathToTarget) == 0 {
		return nil
	}

	paths := make([]string, 0, len(pathToTarget))
	for p := range pathToTarget {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	if provider == nil {
		targets := make([]string, 0, len(paths))
		for _, p := range paths {
			targets = append(targets, pathToTarget[p])
		}
		return &ConfigError{
			Type:    ErrSSMResolution,
			Message: fmt.Sprintf("a SecretProvider is required to resolve: %s", strings.Join(targets, ", ")),
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), ssmTimeout)
	defer cancel()

	resolved, err := provider.GetParametersBatch(ctx, paths)
	if err != nil {
		return &ConfigError{
			Type:    ErrSSMResolution,
			Message: fmt.Sprintf("failed to resolve %d SSM parameters", len(paths)),
			Err:     err,
		}
	}

	var missing []string
	for _, p := range paths {
		target := pathToTarget[p]
		value, ok := resolved[p]
		if !ok {
			missing = append(missing, target)
			continue
		}
		if err := deps.setEnv(target, value); err != nil {
			return &ConfigError{
				Type:    ErrSSMResolution,
				Message: fmt.Sprintf("failed to set %s", target),
				Err:     err,
			}
		}
	}
	if len(missing) > 0 {
		return &ConfigError{
			Type:    ErrMissingEnv,
			Message: fmt.Sprintf("SSM parameters not found for: %s", strings.Join(missing, ", ")),
		}
	}
	return nil
}

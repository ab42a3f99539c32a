package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	golobby "github.com/golobby/config/v3"

	"github.com/GoCodeAlone/appserver/feeders"
)

// Defaults applied to fields the file and environment leave empty.
const (
	DefaultName      = "appserver"
	DefaultLogLevel  = "info"
	DefaultLogFormat = "json"
)

// EnvFile is read from the configuration file's directory when it exists.
// Process environment variables take precedence over its entries.
const EnvFile = ".env"

var validate = validator.New(validator.WithRequiredStructEnabled())

// Load reads path with the feeder for its extension, overlays a sibling .env
// file and then APPSERVER_* environment variables, fills defaults and
// validates the result.
func Load(path string) (*ServerConfig, error) {
	if path == "" {
		return nil, ErrConfigPathEmpty
	}

	fileFeeder, err := feeders.ForFile(path)
	if err != nil {
		return nil, err
	}

	cfg := &ServerConfig{}
	c := golobby.New().AddFeeder(fileFeeder)
	if envFile := filepath.Join(filepath.Dir(path), EnvFile); fileExists(envFile) {
		c.AddFeeder(feeders.NewDotEnvFeeder(envFile))
	}
	c.AddFeeder(feeders.NewEnvFeeder()).AddStruct(cfg)
	if err := c.Feed(); err != nil {
		return nil, fmt.Errorf("failed to load configuration from %s: %w", path, err)
	}

	cfg.applyDefaults()
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

func (s *ServerConfig) applyDefaults() {
	if s.Name == "" {
		s.Name = DefaultName
	}
	if s.LogLevel == "" {
		s.LogLevel = DefaultLogLevel
	}
	if s.LogFormat == "" {
		s.LogFormat = DefaultLogFormat
	}
}

// Validate checks cfg against its validation tags. Each failing field is
// listed in the returned error, which wraps ErrInvalidConfig.
func Validate(cfg *ServerConfig) error {
	err := validate.Struct(cfg)
	if err == nil {
		return nil
	}

	var validationErrs validator.ValidationErrors
	if !errors.As(err, &validationErrs) {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	fields := make([]string, 0, len(validationErrs))
	for _, fe := range validationErrs {
		fields = append(fields, fmt.Sprintf("%s failed %q", fe.Namespace(), fe.Tag()))
	}
	return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(fields, "; "))
}

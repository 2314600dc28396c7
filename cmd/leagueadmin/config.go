package main

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"

	"github.com/nkiryanov/leagueadmin/internal/logger"
)

const (
	defaultListenAddr    = "localhost:8000"
	defaultLoggingLevel  = logger.LevelInfo
	defaultAPIBaseURL    = "http://localhost:3000/api"
	defaultEnvironment   = logger.EnvProduction
	defaultAPITimeout    = 30 * time.Second
	defaultLocale        = "en"
	defaultLocalesString = "en,ru"
)

type Config struct {
	// Default logging level
	LogLevel string

	// Address on which the admin app will be run
	ListenAddr string

	// REST backend base url, auth endpoints live under its /auth/ path
	APIBaseURL string

	// Bounds every backend request
	APITimeout time.Duration

	// Secret session cookies are encrypted with
	// Required in production, development falls back to well-known insecure key
	SessionSecret string

	// Public origin of the app, e.g. https://admin.example.com
	// Cookies get Secure flag only when it is https and environment is production
	PublicURL string

	// Environment
	Environment string

	// Supported page locales and the one used when request has none
	Locales       []string
	DefaultLocale string
}

func NewConfig() *Config {
	return &Config{
		LogLevel:      defaultLoggingLevel,
		ListenAddr:    defaultListenAddr,
		APIBaseURL:    defaultAPIBaseURL,
		APITimeout:    defaultAPITimeout,
		Environment:   defaultEnvironment,
		Locales:       splitList(defaultLocalesString),
		DefaultLocale: defaultLocale,
	}
}

// Load variable from '.env' file (should be located at working directory)
func (c *Config) LoadDotEnv(getwd func() (string, error)) error {
	wd, err := getwd()
	if err != nil {
		return err
	}

	envMap, err := godotenv.Read(filepath.Join(wd, ".env"))

	switch {
	case err == nil:
		return c.LoadEnv(func(key string) string {
			return envMap[key]
		})
	case errors.Is(err, os.ErrNotExist):
		return nil
	default:
		return err
	}
}

func (c *Config) LoadEnv(getenv func(string) string) error {
	// Set option to value if it not empty
	setString := func(o *string) func(value string) error {
		return func(value string) error {
			if value != "" {
				*o = value
			}
			return nil
		}
	}
	setDuration := func(o *time.Duration) func(value string) error {
		return func(value string) error {
			if value == "" {
				return nil
			}
			d, err := time.ParseDuration(value)
			if err != nil {
				return err
			}
			*o = d
			return nil
		}
	}
	setList := func(o *[]string) func(value string) error {
		return func(value string) error {
			if value != "" {
				*o = splitList(value)
			}
			return nil
		}
	}

	envMap := map[string]func(string) error{
		"RUN_ADDRESS":    setString(&c.ListenAddr),
		"API_BASE_URL":   setString(&c.APIBaseURL),
		"API_TIMEOUT":    setDuration(&c.APITimeout),
		"SESSION_SECRET": setString(&c.SessionSecret),
		"PUBLIC_URL":     setString(&c.PublicURL),
		"LOG_LEVEL":      setString(&c.LogLevel),
		"ENVIRONMENT":    setString(&c.Environment),
		"LOCALES":        setList(&c.Locales),
		"DEFAULT_LOCALE": setString(&c.DefaultLocale),
	}

	var errs []error
	for key, parseFn := range envMap {
		if err := parseFn(getenv(key)); err != nil {
			errs = append(errs, fmt.Errorf("invalid %s: %w", key, err))
		}
	}
	return errors.Join(errs...)
}

func (c *Config) ParseFlags(args []string) error {
	fs := pflag.NewFlagSet("leagueadmin", pflag.ContinueOnError)

	fs.StringVarP(&c.ListenAddr, "address", "a", c.ListenAddr, "Server listen address")
	fs.StringVarP(&c.APIBaseURL, "api", "b", c.APIBaseURL, "Backend API base url")
	fs.DurationVarP(&c.APITimeout, "api-timeout", "t", c.APITimeout, "Backend request timeout")
	fs.StringVarP(&c.SessionSecret, "session-secret", "s", c.SessionSecret, "Session cookie encryption secret")
	fs.StringVarP(&c.PublicURL, "public-url", "u", c.PublicURL, "Public url the app is served on")
	fs.StringVarP(&c.LogLevel, "log-level", "l", c.LogLevel, "Logging level (debug, info, warn, error)")
	fs.StringVarP(&c.Environment, "environment", "e", c.Environment, "Environment (dev, prod)")
	fs.StringSliceVar(&c.Locales, "locales", c.Locales, "Supported page locales")
	fs.StringVar(&c.DefaultLocale, "default-locale", c.DefaultLocale, "Locale used when request has none")

	return fs.Parse(args)
}

// Validate checks config is complete enough to start the app
func (c *Config) Validate() error {
	var errs []error

	if c.Environment != logger.EnvDevelopment && c.Environment != logger.EnvProduction {
		errs = append(errs, fmt.Errorf("unknown environment %q", c.Environment))
	}

	if c.Environment == logger.EnvProduction && c.SessionSecret == "" {
		errs = append(errs, errors.New("session secret is required in production"))
	}

	if u, err := url.Parse(c.APIBaseURL); err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		errs = append(errs, fmt.Errorf("api base url %q must be absolute http(s) url", c.APIBaseURL))
	}

	if c.PublicURL != "" {
		if u, err := url.Parse(c.PublicURL); err != nil || u.Host == "" {
			errs = append(errs, fmt.Errorf("public url %q must be absolute url", c.PublicURL))
		}
	}

	if c.APITimeout <= 0 {
		errs = append(errs, errors.New("api timeout must be positive"))
	}

	if len(c.Locales) == 0 {
		errs = append(errs, errors.New("at least one locale required"))
	}
	if !slices.Contains(c.Locales, c.DefaultLocale) {
		errs = append(errs, fmt.Errorf("default locale %q is not in locales %v", c.DefaultLocale, c.Locales))
	}

	return errors.Join(errs...)
}

// SecureCookies reports whether cookies get Secure flag: production served on https only
func (c *Config) SecureCookies() bool {
	if c.Environment != logger.EnvProduction {
		return false
	}

	u, err := url.Parse(c.PublicURL)
	return err == nil && u.Scheme == "https"
}

func splitList(s string) []string {
	var items []string
	for item := range strings.SplitSeq(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}

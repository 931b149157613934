package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/sirupsen/logrus"
)

func NewLoader(prefix string) *Loader {
	v := validator.New()
	return &Loader{Prefix: prefix, Validate: v}
}

func (l *Loader) Load() (Config, error) {
	var cfg Config

	if err := loadDotEnv(); err != nil {
		logrus.Debugf("dotenv: %v", err)
	}
	if err := envconfig.Process(l.Prefix, &cfg); err != nil {
		return cfg, fmt.Errorf("env load: %w", err)
	}

	if err := l.Validate.Struct(cfg); err != nil {
		return cfg, fmt.Errorf("config validation: %w", err)
	}

	logrus.WithFields(logrus.Fields{
		"env":          cfg.Env,
		"mode":         cfg.Mode,
		"log_level":    cfg.LogLevel,
		"github_app":   cfg.UsesGithubApp(),
		"redis_set":    cfg.RedisURL != "",
		"database_set": cfg.DatabaseURL != "",
		"openai_set":   cfg.OpenaiApiKey != "",
	}).Info("config loaded")

	return cfg, nil
}

// UsesGithubApp reports whether app installation credentials are used instead of a token.
func (c Config) UsesGithubApp() bool {
	return strings.TrimSpace(c.GithubToken) == "" && c.GithubClientID != ""
}

// GithubPrivateKeyPEM returns the app key with escaped newlines restored, as
// single-line env values carry them.
func (c Config) GithubPrivateKeyPEM() []byte {
	if c.GithubPrivateKey == "" {
		return nil
	}
	return []byte(strings.ReplaceAll(c.GithubPrivateKey, `\n`, "\n"))
}

func loadDotEnv() error {
	files := []string{".env"}

	if appEnv := strings.TrimSpace(os.Getenv("APP_ENV")); appEnv != "" {
		files = append(files, ".env."+appEnv)
	}
	if goEnv := strings.TrimSpace(os.Getenv("GO_ENV")); goEnv != "" && goEnv != os.Getenv("APP_ENV") {
		files = append(files, ".env."+goEnv)
	}

	var loadedAny bool
	for _, f := range files {
		if fileExists(f) {
			if err := godotenv.Overload(f); err != nil {
				logrus.Warnf("dotenv: failed loading %s: %v", f, err)
				continue
			}
			loadedAny = true
		}
	}

	if !loadedAny {
		return fmt.Errorf("no .env files found (looked for: %s)", strings.Join(files, ", "))
	}
	return nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// Package app boots the Lekha document server.
package app

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/lekha-app/lekha-server/internal/config"
	"github.com/lekha-app/lekha-server/internal/db"
	"github.com/lekha-app/lekha-server/internal/http/api"
	"github.com/lekha-app/lekha-server/internal/mail"
	"github.com/lekha-app/lekha-server/internal/security"
)

// defaultSQLitePath is the default SQLite database file name.
const defaultSQLitePath = "lekha.db"

// ConfigExists reports whether the config file exists at the path.
func ConfigExists(configPath string) bool {
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return false
	}
	return true
}

// Migrate opens the database and runs migrations.
func Migrate(ctx context.Context, cfg config.AppConfig) error {
	configPath := config.ResolveConfigPath(cfg.ConfigPath)
	dsn, err := config.LoadDatabaseDSN(configPath)
	if err != nil {
		return err
	}
	conn, err := db.Open(dsn)
	if err != nil {
		return err
	}
	return db.Migrate(conn)
}

// RunServer boots the HTTP API with database-backed handlers.
//
// When no config file exists and no DB_CONNECTION override is set, a default
// config with a local SQLite database and a random JWT secret is written so
// first runs work without manual setup.
func RunServer(ctx context.Context, cfg config.AppConfig, port int) error {
	configPath := config.ResolveConfigPath(cfg.ConfigPath)
	if !ConfigExists(configPath) && strings.TrimSpace(os.Getenv(config.EnvDBConnection)) == "" {
		log.Infof("config file not found, writing defaults to %s", configPath)
		if errWrite := WriteDefaultConfigFile(configPath, port); errWrite != nil {
			return errWrite
		}
	}

	dsn, err := config.LoadDatabaseDSN(configPath)
	if err != nil {
		return err
	}
	conn, err := db.Open(dsn)
	if err != nil {
		return err
	}
	if errMigrate := db.Migrate(conn); errMigrate != nil {
		return errMigrate
	}

	jwtCfg, _ := config.LoadJWTConfig(configPath)
	if strings.TrimSpace(jwtCfg.Secret) == "" {
		secret, errSecret := security.GenerateRandomString(32)
		if errSecret != nil {
			return errSecret
		}
		jwtCfg.Secret = secret
		log.Warn("no jwt secret configured, using an ephemeral secret; sessions will not survive restarts")
	}

	smtpCfg, _ := config.LoadSMTPConfig(configPath)
	mailer := mail.NewFromConfig(smtpCfg)
	if !smtpCfg.Enabled() {
		log.Warn("smtp not configured, one-time codes will be logged instead of mailed")
	}

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(corsMiddleware())
	api.RegisterRoutes(engine, conn, jwtCfg, mailer)

	addr := fmt.Sprintf(":%d", port)
	srv := &http.Server{
		Addr:    addr,
		Handler: engine,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if errShutdown := srv.Shutdown(shutdownCtx); errShutdown != nil {
			log.Errorf("server shutdown error: %v", errShutdown)
		}
	}()

	log.Infof("starting lekha server on %s with config=%s", addr, configPath)
	if errListen := srv.ListenAndServe(); errListen != nil && errListen != http.ErrServerClosed {
		return errListen
	}
	return nil
}

// configFile maps YAML fields for the generated config file.
type configFile struct {
	Host        string  `yaml:"host"`
	Port        int     `yaml:"port"`
	DatabaseDSN string  `yaml:"database-dsn"`
	JWT         jwtCfg  `yaml:"jwt"`
	SMTP        smtpCfg `yaml:"smtp"`
}

// jwtCfg holds JWT settings for the generated config file.
type jwtCfg struct {
	Secret string `yaml:"secret"`
	Expiry string `yaml:"expiry"`
}

// smtpCfg holds SMTP settings for the generated config file.
type smtpCfg struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	From     string `yaml:"from"`
}

// generateJWTSecret creates a random JWT secret string.
func generateJWTSecret() string {
	secret, err := security.GenerateRandomString(32)
	if err != nil {
		return "change-me-to-a-secure-random-string"
	}
	return secret
}

// WriteDefaultConfigFile writes a first-run config file to disk.
func WriteDefaultConfigFile(configPath string, port int) error {
	cfg := configFile{
		Host:        "",
		Port:        port,
		DatabaseDSN: defaultSQLitePath,
		JWT: jwtCfg{
			Secret: generateJWTSecret(),
			Expiry: "720h",
		},
		SMTP: smtpCfg{
			Port: 587,
		},
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	dir := filepath.Dir(configPath)
	if errMkdir := os.MkdirAll(dir, 0755); errMkdir != nil {
		return fmt.Errorf("create config dir: %w", errMkdir)
	}

	if errWrite := os.WriteFile(configPath, data, 0600); errWrite != nil {
		return fmt.Errorf("write config file: %w", errWrite)
	}

	return nil
}

// corsMiddleware enables permissive CORS for the SPA client.
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization")
		c.Header("Access-Control-Max-Age", "86400")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

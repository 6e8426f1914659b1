package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rpattn/auditdesk/internal/db"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment override, e.g. AUDITDESK_DATABASE_HOST.
const EnvPrefix = "AUDITDESK"

// Config is the full runtime configuration for the server and the CLI.
type Config struct {
	Database   db.Config
	Server     ServerConfig
	Logging    LoggingConfig
	Auth       AuthConfig
	Import     ImportConfig
	Migrations MigrationsConfig
}

type ServerConfig struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
	AllowedOrigins  []string
}

// Addr returns the listen address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

type LoggingConfig struct {
	Level  string
	Format string
}

type AuthConfig struct {
	SessionTTL time.Duration
	BcryptCost int
}

type ImportConfig struct {
	MaxUploadBytes int64
}

type MigrationsConfig struct {
	Auto bool
}

// Default returns the configuration used when neither a file nor the environment overrides a key.
func Default() Config {
	return Config{
		Database: db.DefaultConfig(),
		Server: ServerConfig{
			Host:            "",
			Port:            8080,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    30 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 30 * time.Second,
			AllowedOrigins:  []string{"http://localhost:3000"},
		},
		Logging: LoggingConfig{Level: "info", Format: "json"},
		Auth: AuthConfig{
			SessionTTL: 12 * time.Hour,
			BcryptCost: 10,
		},
		Import:     ImportConfig{MaxUploadBytes: 10 << 20},
		Migrations: MigrationsConfig{Auto: true},
	}
}

// Load reads config.yaml from configPath (optional), then a .env file if present, then the
// environment. Later sources win.
func Load(configPath string) (Config, error) {
	cfg := Default()

	// A missing .env is normal outside local development.
	if err := godotenv.Overload(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return cfg, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	if configPath != "" {
		v.AddConfigPath(configPath)
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v, cfg)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return cfg, fmt.Errorf("read config: %w", err)
		}
	}

	cfg.Database = db.Config{
		Host:     v.GetString("database.host"),
		Port:     v.GetInt("database.port"),
		User:     v.GetString("database.user"),
		Password: v.GetString("database.password"),
		DBName:   v.GetString("database.dbname"),
		SSLMode:  v.GetString("database.sslmode"),
		MaxConns: v.GetInt32("database.max_conns"),
		MinConns: v.GetInt32("database.min_conns"),
	}
	cfg.Server = ServerConfig{
		Host:            v.GetString("server.host"),
		Port:            v.GetInt("server.port"),
		ReadTimeout:     v.GetDuration("server.read_timeout"),
		WriteTimeout:    v.GetDuration("server.write_timeout"),
		IdleTimeout:     v.GetDuration("server.idle_timeout"),
		ShutdownTimeout: v.GetDuration("server.shutdown_timeout"),
		AllowedOrigins:  splitList(v.GetStringSlice("server.allowed_origins")),
	}
	cfg.Logging = LoggingConfig{
		Level:  v.GetString("logging.level"),
		Format: v.GetString("logging.format"),
	}
	cfg.Auth = AuthConfig{
		SessionTTL: v.GetDuration("auth.session_ttl"),
		BcryptCost: v.GetInt("auth.bcrypt_cost"),
	}
	cfg.Import = ImportConfig{MaxUploadBytes: v.GetInt64("import.max_upload_bytes")}
	cfg.Migrations = MigrationsConfig{Auto: v.GetBool("migrations.auto")}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper, cfg Config) {
	v.SetDefault("database.host", cfg.Database.Host)
	v.SetDefault("database.port", cfg.Database.Port)
	v.SetDefault("database.user", cfg.Database.User)
	v.SetDefault("database.password", cfg.Database.Password)
	v.SetDefault("database.dbname", cfg.Database.DBName)
	v.SetDefault("database.sslmode", cfg.Database.SSLMode)
	v.SetDefault("database.max_conns", cfg.Database.MaxConns)
	v.SetDefault("database.min_conns", cfg.Database.MinConns)

	v.SetDefault("server.host", cfg.Server.Host)
	v.SetDefault("server.port", cfg.Server.Port)
	v.SetDefault("server.read_timeout", cfg.Server.ReadTimeout)
	v.SetDefault("server.write_timeout", cfg.Server.WriteTimeout)
	v.SetDefault("server.idle_timeout", cfg.Server.IdleTimeout)
	v.SetDefault("server.shutdown_timeout", cfg.Server.ShutdownTimeout)
	v.SetDefault("server.allowed_origins", cfg.Server.AllowedOrigins)

	v.SetDefault("logging.level", cfg.Logging.Level)
	v.SetDefault("logging.format", cfg.Logging.Format)

	v.SetDefault("auth.session_ttl", cfg.Auth.SessionTTL)
	v.SetDefault("auth.bcrypt_cost", cfg.Auth.BcryptCost)

	v.SetDefault("import.max_upload_bytes", cfg.Import.MaxUploadBytes)
	v.SetDefault("migrations.auto", cfg.Migrations.Auto)
}

// splitList accepts both YAML lists and comma separated env values.
func splitList(in []string) []string {
	var out []string
	for _, item := range in {
		for _, part := range strings.Split(item, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

// Validate rejects configurations the server cannot start with.
func (c Config) Validate() error {
	var problems []string
	if c.Database.Host == "" {
		problems = append(problems, "database.host is required")
	}
	if c.Database.Port <= 0 || c.Database.Port > 65535 {
		problems = append(problems, "database.port must be between 1 and 65535")
	}
	if c.Database.DBName == "" {
		problems = append(problems, "database.dbname is required")
	}
	if c.Database.MinConns > c.Database.MaxConns {
		problems = append(problems, "database.min_conns must not exceed database.max_conns")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		problems = append(problems, "server.port must be between 1 and 65535")
	}
	switch strings.ToLower(c.Logging.Format) {
	case "json", "console":
	default:
		problems = append(problems, "logging.format must be json or console")
	}
	if c.Auth.SessionTTL <= 0 {
		problems = append(problems, "auth.session_ttl must be positive")
	}
	if c.Auth.BcryptCost < 4 || c.Auth.BcryptCost > 31 {
		problems = append(problems, "auth.bcrypt_cost must be between 4 and 31")
	}
	if c.Import.MaxUploadBytes <= 0 {
		problems = append(problems, "import.max_upload_bytes must be positive")
	}
	if len(problems) > 0 {
		return fmt.Errorf("invalid config: %s", strings.Join(problems, "; "))
	}
	return nil
}

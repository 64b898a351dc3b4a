package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/corpwatch/corpwatch/internal/db"
)

// AppConfig holds everything the server needs beyond the database.
type AppConfig struct {
	Database       db.Config
	ServerAddr     string
	DataDir        string
	MigrationsPath string
	DiffWorkers    int
	StatsWindow    int
}

// DefaultAppConfig returns sensible local-development defaults.
func DefaultAppConfig() AppConfig {
	return AppConfig{
		Database:       db.DefaultConfig(),
		ServerAddr:     ":8080",
		DataDir:        "data/snapshots",
		MigrationsPath: "migrations",
		DiffWorkers:    0, // 0 means GOMAXPROCS
		StatsWindow:    30,
	}
}

// Load reads config.yaml from configPath, with env var overrides
// (CORPWATCH_DATABASE_HOST and so on).
func Load(configPath string) (AppConfig, error) {
	cfg := DefaultAppConfig()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(configPath)
	v.AutomaticEnv()
	v.SetEnvPrefix("CORPWATCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.BindEnv("database.host")
	v.BindEnv("database.port")
	v.BindEnv("database.user")
	v.BindEnv("database.password")
	v.BindEnv("database.dbname")
	v.BindEnv("database.sslmode")
	v.BindEnv("server.addr")
	v.BindEnv("snapshots.dir")
	v.BindEnv("diff.workers")
	v.BindEnv("stats.window_days")

	if err := v.ReadInConfig(); err != nil {
		// Config file not found? Just log it, use defaults + env
		fmt.Println("No config.yaml found, using defaults and env vars")
	} else {
		fmt.Println("Loaded config.yaml")
	}

	if v.IsSet("database.host") {
		cfg.Database.Host = v.GetString("database.host")
	}
	if v.IsSet("database.port") {
		cfg.Database.Port = v.GetInt("database.port")
	}
	if v.IsSet("database.user") {
		cfg.Database.User = v.GetString("database.user")
	}
	if v.IsSet("database.password") {
		cfg.Database.Password = v.GetString("database.password")
	}
	if v.IsSet("database.dbname") {
		cfg.Database.DBName = v.GetString("database.dbname")
	}
	if v.IsSet("database.sslmode") {
		cfg.Database.SSLMode = v.GetString("database.sslmode")
	}
	if v.IsSet("server.addr") {
		cfg.ServerAddr = v.GetString("server.addr")
	}
	if v.IsSet("snapshots.dir") {
		cfg.DataDir = v.GetString("snapshots.dir")
	}
	if v.IsSet("migrations.path") {
		cfg.MigrationsPath = v.GetString("migrations.path")
	}
	if v.IsSet("diff.workers") {
		cfg.DiffWorkers = v.GetInt("diff.workers")
	}
	if v.IsSet("stats.window_days") {
		cfg.StatsWindow = v.GetInt("stats.window_days")
	}

	return cfg, nil
}

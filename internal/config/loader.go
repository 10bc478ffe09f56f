package config

import (
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	"github.com/assetdesk/assetdesk/internal/db"
)

// Config is the full application configuration.
type Config struct {
	Server ServerConfig
	DB     db.Config
	Import ImportConfig
	Export ExportConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port           string
	AllowedOrigins []string
}

// ImportConfig tunes the import pipeline.
type ImportConfig struct {
	ChunkSize  int
	MonthFirst bool
}

// ExportConfig tunes the export projector.
type ExportConfig struct {
	RowLimit int
}

// Load reads config.yaml from configPath and applies environment
// overrides (prefix ASSETDESK, e.g. ASSETDESK_DATABASE_HOST).
func Load(configPath string) (Config, error) {
	cfg := Config{
		Server: ServerConfig{
			Port:           "8080",
			AllowedOrigins: []string{"http://localhost:3000"},
		},
		DB: db.DefaultConfig(),
		Import: ImportConfig{
			ChunkSize:  50,
			MonthFirst: false,
		},
		Export: ExportConfig{
			RowLimit: 10000,
		},
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(configPath)
	v.AutomaticEnv()
	v.SetEnvPrefix("ASSETDESK")

	v.BindEnv("server.port")
	v.BindEnv("database.host")
	v.BindEnv("database.port")
	v.BindEnv("database.user")
	v.BindEnv("database.password")
	v.BindEnv("database.dbname")
	v.BindEnv("database.sslmode")
	v.BindEnv("import.chunk_size")
	v.BindEnv("import.month_first")
	v.BindEnv("export.row_limit")

	if err := v.ReadInConfig(); err != nil {
		// Config file not found: defaults plus env vars still work.
		logrus.Info("no config.yaml found, using defaults and env vars")
	} else {
		logrus.Info("loaded config.yaml")
	}

	if v.IsSet("server.port") {
		cfg.Server.Port = v.GetString("server.port")
	}
	if v.IsSet("server.allowed_origins") {
		cfg.Server.AllowedOrigins = v.GetStringSlice("server.allowed_origins")
	}
	if v.IsSet("database.host") {
		cfg.DB.Host = v.GetString("database.host")
	}
	if v.IsSet("database.port") {
		cfg.DB.Port = v.GetInt("database.port")
	}
	if v.IsSet("database.user") {
		cfg.DB.User = v.GetString("database.user")
	}
	if v.IsSet("database.password") {
		cfg.DB.Password = v.GetString("database.password")
	}
	if v.IsSet("database.dbname") {
		cfg.DB.DBName = v.GetString("database.dbname")
	}
	if v.IsSet("database.sslmode") {
		cfg.DB.SSLMode = v.GetString("database.sslmode")
	}
	if v.IsSet("import.chunk_size") {
		cfg.Import.ChunkSize = v.GetInt("import.chunk_size")
	}
	if v.IsSet("import.month_first") {
		cfg.Import.MonthFirst = v.GetBool("import.month_first")
	}
	if v.IsSet("export.row_limit") {
		cfg.Export.RowLimit = v.GetInt("export.row_limit")
	}

	return cfg, nil
}

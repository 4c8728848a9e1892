package config

import (
	"sync"
	"time"
)

var (
	appOnce   sync.Once
	appConfig *AppConfig
)

type AppConfig struct {
	Port             string
	AllowedOrigins   []string
	MaxUploadBytes   int64
	LogLevel         string
	LogFile          string
	ArchiveStorage   string
	ArchiveRetention time.Duration
}

func GetAppConfig() *AppConfig {
	appOnce.Do(func() {
		loadEnv()
		appConfig = &AppConfig{
			Port:             getEnv("SERVER_PORT", "8080"),
			AllowedOrigins:   getEnvList("CORS_ALLOWED_ORIGINS", []string{"http://localhost:3000"}),
			MaxUploadBytes:   int64(getEnvInt("MAX_UPLOAD_BYTES", 50*1024*1024)),
			LogLevel:         getEnv("LOG_LEVEL", "info"),
			LogFile:          getEnv("LOG_FILE", "logs/intake.log"),
			ArchiveStorage:   getEnv("ARCHIVE_STORAGE", "none"),
			ArchiveRetention: time.Duration(getEnvInt("ARCHIVE_RETENTION_HOURS", 24*7)) * time.Hour,
		}
	})
	return appConfig
}

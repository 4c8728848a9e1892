package config

import "sync"

var (
	storeOnce   sync.Once
	storeConfig *StoreConfig
)

// StoreConfig selects the patient record backend.
type StoreConfig struct {
	Kind          string // memory | sqlite | redis
	SQLitePath    string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisKey      string
}

func GetStoreConfig() *StoreConfig {
	storeOnce.Do(func() {
		loadEnv()
		storeConfig = &StoreConfig{
			Kind:          getEnv("RECORD_STORE", "sqlite"),
			SQLitePath:    getEnv("SQLITE_PATH", "data/patients.db"),
			RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
			RedisPassword: getEnv("REDIS_PASSWORD", ""),
			RedisDB:       getEnvInt("REDIS_DB", 0),
			RedisKey:      getEnv("REDIS_PATIENTS_KEY", "intake:patients"),
		}
	})
	return storeConfig
}

package config

import "sync"

var (
	ocrOnce   sync.Once
	ocrConfig *OCRConfig
)

type OCRConfig struct {
	Language     string
	DPI          int
	PdftoppmPath string
	MaxWorkers   int
	Preprocess   bool
	CloudEnabled bool
}

func GetOCRConfig() *OCRConfig {
	ocrOnce.Do(func() {
		loadEnv()
		ocrConfig = &OCRConfig{
			Language:     getEnv("OCR_LANGUAGE", "eng"),
			DPI:          getEnvInt("OCR_DPI", 300),
			PdftoppmPath: getEnv("PDFTOPPM_PATH", "pdftoppm"),
			MaxWorkers:   getEnvInt("OCR_MAX_WORKERS", 4),
			Preprocess:   getEnvBool("OCR_PREPROCESS", true),
			CloudEnabled: getEnvBool("OCR_CLOUD_ENABLED", true),
		}
	})
	return ocrConfig
}

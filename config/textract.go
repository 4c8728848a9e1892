package config

import "sync"

var (
	textractOnce   sync.Once
	textractConfig *TextractConfig
)

type TextractConfig struct {
	Region        string
	Endpoint      string
	AccessKey     string
	SecretKey     string
	MinConfidence float64
}

func GetTextractConfig() *TextractConfig {
	textractOnce.Do(func() {
		loadEnv()
		textractConfig = &TextractConfig{
			Region:        getEnv("AWS_REGION", "ap-southeast-2"),
			Endpoint:      getEnv("AWS_TEXTRACT_ENDPOINT", getEnv("AWS_ENDPOINT", "")),
			AccessKey:     getEnv("AWS_ACCESS_KEY", ""),
			SecretKey:     getEnv("AWS_SECRET_KEY", ""),
			MinConfidence: float64(getEnvInt("AWS_TEXTRACT_MIN_CONFIDENCE", 0)),
		}
	})
	return textractConfig
}

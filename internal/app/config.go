package app

import (
	"github.com/yungbote/hatchmark-backend/internal/platform/envutil"
	"github.com/yungbote/hatchmark-backend/internal/platform/logger"
)

type Config struct {
	Env     string
	Port    string
	Version string

	HammingThreshold int
	BlockOnSimilar   bool

	QueueName        string
	QueueMaxReceives int

	TracingEnabled bool
}

func LoadConfig(log *logger.Logger) Config {
	cfg := Config{
		Env:              envutil.String("APP_MODE", "development"),
		Port:             envutil.String("PORT", "8080"),
		Version:          envutil.String("SERVICE_VERSION", "dev"),
		HammingThreshold: envutil.Int("HAMMING_THRESHOLD", 5),
		BlockOnSimilar:   envutil.Bool("REGISTRATION_BLOCK_ON_SIMILAR", false),
		QueueName:        envutil.String("QUEUE_NAME", "watermark"),
		QueueMaxReceives: envutil.Int("QUEUE_MAX_RECEIVES", 5),
		TracingEnabled:   envutil.Bool("OTEL_ENABLED", false),
	}
	log.Info("Config loaded",
		"env", cfg.Env,
		"port", cfg.Port,
		"hammingThreshold", cfg.HammingThreshold,
		"blockOnSimilar", cfg.BlockOnSimilar,
		"queue", cfg.QueueName,
	)
	return cfg
}

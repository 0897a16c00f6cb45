package app

import (
	"fmt"
	"os"
	"strings"

	goredis "github.com/redis/go-redis/v9"

	"github.com/yungbote/hatchmark-backend/internal/clients/redis"
	"github.com/yungbote/hatchmark-backend/internal/platform/logger"
)

type Clients struct {
	Redis *goredis.Client
}

// wireClients connects the optional external clients. Redis backs the
// job queue and the upload session tracker; leaving REDIS_ADDR unset
// selects the in-process fallbacks instead.
func wireClients(log *logger.Logger) (Clients, error) {
	log.Info("Wiring clients...")

	var rdb *goredis.Client
	if strings.TrimSpace(os.Getenv("REDIS_ADDR")) != "" {
		c, err := redis.NewClient(log)
		if err != nil {
			return Clients{}, fmt.Errorf("init redis client: %w", err)
		}
		rdb = c
	}

	return Clients{Redis: rdb}, nil
}

func (c *Clients) Close() {
	if c == nil {
		return
	}
	if c.Redis != nil {
		_ = c.Redis.Close()
	}
}

package app

import (
	"github.com/bomyoungkim-gmail/aprendeai-app-sub007/internal/platform/envutil"
)

type Config struct {
	HTTPAddr      string
	ContentAPIURL string
	RedisAddr     string
	RedisBus      bool
}

func LoadConfig() Config {
	return Config{
		HTTPAddr:      envutil.Str("HTTP_ADDR", ":8080"),
		ContentAPIURL: envutil.Str("CONTENT_API_URL", "http://localhost:8081"),
		RedisAddr:     envutil.Str("REDIS_ADDR", ""),
		RedisBus:      envutil.Bool("REDIS_BUS", false),
	}
}

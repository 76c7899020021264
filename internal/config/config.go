// Package config loads service configuration from environment variables.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Auth is the configuration surface of the issuing service.
type Auth struct {
	Addr          string        `env:"CAREMESH_AUTH_ADDR" envDefault:":8082"`
	PGDSN         string        `env:"CAREMESH_PG_DSN"`
	RedisAddr     string        `env:"CAREMESH_REDIS_ADDR"`
	RedisDB       int           `env:"CAREMESH_REDIS_DB" envDefault:"0"`
	SigningSecret string        `env:"CAREMESH_AUTH_SECRET"`
	Issuer        string        `env:"CAREMESH_AUTH_ISSUER" envDefault:"caremesh-auth"`
	AccessTTL     time.Duration `env:"CAREMESH_ACCESS_TTL" envDefault:"24h"`
	RefreshTTL    time.Duration `env:"CAREMESH_REFRESH_TTL" envDefault:"168h"`
}

// Care is the configuration surface of the downstream service.
type Care struct {
	Addr               string        `env:"CAREMESH_CARE_ADDR" envDefault:":8081"`
	PGDSN              string        `env:"CAREMESH_PG_DSN"`
	RedisAddr          string        `env:"CAREMESH_REDIS_ADDR"`
	RedisDB            int           `env:"CAREMESH_REDIS_DB" envDefault:"0"`
	AuthBaseURL        string        `env:"CAREMESH_AUTH_URL" envDefault:"http://localhost:8082"`
	PeerConnectTimeout time.Duration `env:"CAREMESH_PEER_CONNECT_TIMEOUT" envDefault:"5s"`
	PeerReadTimeout    time.Duration `env:"CAREMESH_PEER_READ_TIMEOUT" envDefault:"10s"`
	ConsumerGroup      string        `env:"CAREMESH_EVENT_GROUP" envDefault:"care-service"`
	ConsumerName       string        `env:"CAREMESH_EVENT_CONSUMER"`
	ConsumerWorkers    int           `env:"CAREMESH_EVENT_WORKERS" envDefault:"3"`
}

// Parse fills target from the environment.
func Parse(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

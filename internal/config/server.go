package config

import (
	"time"

	"github.com/caarlos0/env/v11"
)

type ServerConfig struct {
	HTTPAddr string `env:"HTTP_ADDR" envDefault:":8080"`

	// ServiceToken authenticates calls on /api/internal and is attached to
	// every outbound collaborator request.
	ServiceToken string `env:"SERVICE_TOKEN"`

	// Collaborator endpoints. Empty URLs disable the corresponding
	// notifications (the server then runs standalone).
	RoomServiceURL string `env:"ROOM_SERVICE_URL"`
	UserServiceURL string `env:"USER_SERVICE_URL"`

	NotifyTimeout   time.Duration `env:"NOTIFY_TIMEOUT" envDefault:"5s"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
}

func LoadServer() (ServerConfig, error) {
	var cfg ServerConfig
	err := env.Parse(&cfg)
	return cfg, err
}

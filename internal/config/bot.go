package config

import "github.com/caarlos0/env/v11"

type BotConfig struct {
	ServerURL string `env:"SERVER_URL" envDefault:"ws://localhost:8080"`
	RoomID    string `env:"ROOM_ID" envDefault:"bot-room"`
	UserID    string `env:"USER_ID" envDefault:"bot"`
}

func LoadBot() (BotConfig, error) {
	var cfg BotConfig
	err := env.Parse(&cfg)
	return cfg, err
}

package config

import (
	"time"

	"github.com/caarlos0/env/v11"
)

type GameConfig struct {
	WinScore         int           `env:"WIN_SCORE" envDefault:"11"`
	TickInterval     time.Duration `env:"TICK_INTERVAL" envDefault:"16ms"`
	CountdownSeconds int           `env:"COUNTDOWN_SECONDS" envDefault:"3"`

	// AbandonTimeout deletes a room nobody ever connected to.
	AbandonTimeout time.Duration `env:"ABANDON_TIMEOUT" envDefault:"15s"`
	// ReconnectGrace is the window a disconnected player has to resume
	// their seat before it is forfeited.
	ReconnectGrace time.Duration `env:"RECONNECT_GRACE" envDefault:"30s"`

	WSMaxMessageBytes  int64 `env:"WS_MAX_MESSAGE_BYTES" envDefault:"512"`
	WSMessagesPerSec   int   `env:"WS_MESSAGES_PER_SECOND" envDefault:"60"`
	WSSendBufferFrames int   `env:"WS_SEND_BUFFER_FRAMES" envDefault:"32"`
}

func LoadGame() (GameConfig, error) {
	var cfg GameConfig
	err := env.Parse(&cfg)
	return cfg, err
}

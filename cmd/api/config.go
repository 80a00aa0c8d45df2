package main

import (
	"log/slog"
	"time"

	"github.com/fastprodman/survivor/internal/config"
)

type apiConfig struct {
	Port            uint16        `env:"API_PORT" envDefault:"8080"`
	LogLevel        slog.Level    `env:"APP_LOG_LEVEL" envDefault:"INFO"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"15s"`

	Postgres     config.PostgresConfig     `envPrefix:"PG_"`
	Picks        config.PickConfig         `envPrefix:"PICK_"`
	Reconcile    config.ReconcileConfig    `envPrefix:"RECONCILE_"`
	Rewards      config.RewardConfig       `envPrefix:"REWARD_"`
	Achievements config.AchievementsConfig `envPrefix:"ACHIEVEMENTS_"`
}

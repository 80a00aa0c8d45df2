package config

import "time"

// The structs below are nested with an envPrefix (PG_, PICK_, RECONCILE_,
// REWARD_, ACHIEVEMENTS_); their tags hold the unprefixed names.

type PostgresConfig struct {
	DSN             string        `env:"DSN"`
	MaxOpenConns    int           `env:"MAX_OPEN_CONNS" envDefault:"20"`
	MaxIdleConns    int           `env:"MAX_IDLE_CONNS" envDefault:"5"`
	ConnMaxIdleTime time.Duration `env:"CONN_MAX_IDLE_TIME" envDefault:"5m"`
	ConnMaxLifetime time.Duration `env:"CONN_MAX_LIFETIME" envDefault:"30m"`
}

// PickConfig controls deadline resolution for submitted picks.
type PickConfig struct {
	DeadlineLead  time.Duration `env:"DEADLINE_LEAD" envDefault:"1h"`
	DeadlineGrace time.Duration `env:"DEADLINE_GRACE" envDefault:"2m"`
}

type ReconcileConfig struct {
	Interval     time.Duration `env:"INTERVAL" envDefault:"1h"`
	SafetyMargin time.Duration `env:"SAFETY_MARGIN" envDefault:"2h"`
}

// RewardConfig is the per-round credit for a correct survivor.
type RewardConfig struct {
	MatchdayPoints int64 `env:"MATCHDAY_POINTS" envDefault:"10"`
	MatchdayCoins  int64 `env:"MATCHDAY_COINS" envDefault:"1"`
}

type AchievementsConfig struct {
	URL     string        `env:"URL" envDefault:""`
	Timeout time.Duration `env:"TIMEOUT" envDefault:"5s"`
}

func DefaultPickConfig() PickConfig {
	return PickConfig{DeadlineLead: time.Hour, DeadlineGrace: 2 * time.Minute}
}

func DefaultReconcileConfig() ReconcileConfig {
	return ReconcileConfig{Interval: time.Hour, SafetyMargin: 2 * time.Hour}
}

func DefaultRewardConfig() RewardConfig {
	return RewardConfig{MatchdayPoints: 10, MatchdayCoins: 1}
}

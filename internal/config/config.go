package config

import "github.com/kelseyhightower/envconfig"

// Config holds application configuration loaded from environment variables.
type Config struct {
	BotToken string `envconfig:"BOT_TOKEN" required:"true"`
	DBPath   string `envconfig:"DB_PATH" default:"./data/sleepwatch.db"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"` // debug|info|warn|error
	HTTPAddr string `envconfig:"HTTP_ADDR" default:":8080"`

	// PromptTime is the local wall-clock time (HH:MM) at which the daily
	// sleep-time prompt fires in every participant's own timezone.
	PromptTime string `envconfig:"PROMPT_TIME" default:"12:00"`

	// DuplicatePolicy decides what a repeated report for the same night does:
	// overwrite|reject.
	DuplicatePolicy string `envconfig:"DUPLICATE_POLICY" default:"overwrite"`
	// MissedPenalty is the point value recorded for a prompted night that was
	// never answered before the next prompt.
	MissedPenalty int `envconfig:"MISSED_PENALTY" default:"0"`

	// LeaderboardDays is the window used when a leaderboard request does not
	// name one.
	LeaderboardDays   int  `envconfig:"DEFAULT_LEADERBOARD_DAYS" default:"30"`
	IncludeZeroTotals bool `envconfig:"INCLUDE_ZERO_TOTALS" default:"true"`
}

// Load reads environment variables into Config.
func Load() (Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

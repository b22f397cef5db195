package config

import (
	"os"
	"strconv"
)

// ApplyEnv overrides tuning from STARMARKET_* environment variables.
// Unset or unparsable variables leave the current value in place.
func (c *Config) ApplyEnv() error {
	if v, ok := getEnvFloat("STARMARKET_EVENT_PROBABILITY"); ok {
		c.Events.Probability = v
	}
	if v, ok := getEnvFloat("STARMARKET_SEASONAL_AMPLITUDE"); ok {
		c.Market.SeasonalAmplitude = v
	}
	if v, ok := getEnvFloat("STARMARKET_CONDITION_CHANGE_PROBABILITY"); ok {
		c.Sectors.ConditionChangeProbability = v
	}
	if v := os.Getenv("STARMARKET_ROUNDING"); v != "" {
		c.Sectors.Rounding = v
	}
	if v, ok := getEnvInt("STARMARKET_TRADE_HISTORY"); ok {
		c.History.TradeRecords = v
	}
	if v, ok := getEnvInt("STARMARKET_TURNS"); ok {
		c.Simulation.Turns = v
	}
	if v, ok := getEnvInt("STARMARKET_SECTORS"); ok {
		c.Simulation.Sectors = v
	}
	if v := os.Getenv("STARMARKET_SEED"); v != "" {
		if seed, err := strconv.ParseUint(v, 10, 64); err == nil {
			c.Simulation.Seed = seed
		}
	}
	if v := os.Getenv("STARMARKET_DB_PATH"); v != "" {
		c.Storage.Path = v
	}
	if v := os.Getenv("STARMARKET_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("STARMARKET_LOG_FORMAT"); v != "" {
		c.Logging.Format = v
	}
	return c.Validate()
}

func getEnvInt(key string) (int, bool) {
	v, err := strconv.Atoi(os.Getenv(key))
	if err != nil {
		return 0, false
	}
	return v, true
}

func getEnvFloat(key string) (float64, bool) {
	v, err := strconv.ParseFloat(os.Getenv(key), 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

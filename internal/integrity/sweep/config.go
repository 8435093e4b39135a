package sweep

import "time"

// Config controls the periodic integrity sweep loop.
type Config struct {
	Interval   time.Duration
	RunTimeout time.Duration
}

func DefaultConfig() Config {
	return Config{
		Interval:   time.Hour,
		RunTimeout: 2 * time.Minute,
	}
}

func (c Config) withDefaults() Config {
	defaults := DefaultConfig()
	if c.Interval <= 0 {
		c.Interval = defaults.Interval
	}
	if c.RunTimeout <= 0 {
		c.RunTimeout = defaults.RunTimeout
	}
	return c
}

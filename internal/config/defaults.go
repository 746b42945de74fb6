package config

// DefaultConfig returns the default configuration: four workers, head-of-queue
// dispatch, five minute priority recompute, full cpu/memory/api pools.
func DefaultConfig() *Config {
	return &Config{
		Scheduler: SchedulerSettings{
			MaxConcurrent:        4,
			DispatchPolicy:       "head",
			RecomputeIntervalSec: 300,
			DefaultMaxAttempts:   3,
			DefaultTimeoutSec:    300,
			Resources: map[string]float64{
				"cpu":    100,
				"memory": 100,
				"api":    100,
			},
			Retry: RetrySettings{
				InitialIntervalMS:   500,
				MaxIntervalMS:       30000,
				Multiplier:          2.0,
				RandomizationFactor: 0.5,
			},
		},
	}
}

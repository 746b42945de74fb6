package config

// RetrySettings tunes the exponential backoff applied between task attempts.
type RetrySettings struct {
	InitialIntervalMS   int     `json:"initial_interval_ms"`  // First retry delay
	MaxIntervalMS       int     `json:"max_interval_ms"`      // Delay ceiling
	Multiplier          float64 `json:"multiplier"`           // Growth factor
	RandomizationFactor float64 `json:"randomization_factor"` // Jitter
}

// SchedulerSettings configures the scheduler core and execution discipline.
type SchedulerSettings struct {
	MaxConcurrent        int                `json:"max_concurrent"`          // 1 = sequential
	DispatchPolicy       string             `json:"dispatch_policy"`         // "head" or "first_fit"
	RecomputeIntervalSec int                `json:"recompute_interval_sec"`  // Priority recompute cadence
	DefaultMaxAttempts   int                `json:"default_max_attempts"`    // Attempts per task unless overridden
	DefaultTimeoutSec    int                `json:"default_timeout_sec"`     // Per-attempt wall clock limit
	Resources            map[string]float64 `json:"resources"`               // Pool capacities (0-100 each)
	Retry                RetrySettings      `json:"retry"`
}

// Config is the top-level configuration.
type Config struct {
	Scheduler    SchedulerSettings `json:"scheduler"`
	DatabasePath string            `json:"database_path"` // Empty disables the journal
}

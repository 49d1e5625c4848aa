package config

import "time"

// SchedulerConfig contains configuration for the scheduler worker service.
type SchedulerConfig struct {
	Enabled            bool          `envconfig:"ENABLED" default:"true"`
	Interval           time.Duration `envconfig:"INTERVAL" default:"5m" validate:"gt=0"`
	RunTimeout         time.Duration `envconfig:"RUN_TIMEOUT" default:"10m" validate:"gt=0"`
	PlayerBatchSize    int           `envconfig:"PLAYER_BATCH_SIZE" default:"500" validate:"min=1,max=10000"`
	SegmentConcurrency int           `envconfig:"SEGMENT_CONCURRENCY" default:"4" validate:"min=1"`
	SweepEnabled       bool          `envconfig:"SWEEP_ENABLED" default:"false"`
}

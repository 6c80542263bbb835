package config

import (
	"errors"
	"fmt"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateLimits(); err != nil {
		return err
	}
	if err := c.validateCleanup(); err != nil {
		return err
	}
	if err := c.validateRedis(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateLimits() error {
	if c.Limits.JobsPerWindow <= 0 {
		return errors.New("limits.jobs_per_window must be positive")
	}
	if c.Limits.JobWindowMinutes <= 0 {
		return errors.New("limits.job_window_minutes must be positive")
	}
	if c.Limits.LoginMaxFailures <= 0 {
		return errors.New("limits.login_max_failures must be positive")
	}
	if c.Limits.LoginBlockMinutes <= 0 {
		return errors.New("limits.login_block_minutes must be positive")
	}
	return nil
}

func (c *Config) validateCleanup() error {
	if c.Cleanup.IntervalMinutes <= 0 {
		return errors.New("cleanup.interval_minutes must be positive")
	}
	if c.Cleanup.RetentionHours <= 0 {
		return errors.New("cleanup.retention_hours must be positive")
	}
	return nil
}

func (c *Config) validateRedis() error {
	if c.Redis.Addr == "" {
		return errors.New("redis.addr must be set")
	}
	if c.Redis.DB < 0 {
		return errors.New("redis.db must not be negative")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format)
	}
	return nil
}

package profile

import (
	"fmt"
	"math"
	"time"
)

// DecayConfig tunes the temporal decay of the interest vector and the retry
// bounds of the update pipeline.
type DecayConfig struct {
	// DecayLambda is the exponential decay constant per day.
	// Half-life in days is ln(2)/DecayLambda.
	DecayLambda float64
	// BatchWindowSeconds is the window for coalescing events, 1..60.
	BatchWindowSeconds int
	// BatchEnabled toggles event coalescing.
	BatchEnabled bool
	// MaxRetries bounds transient retries per message, 1..10.
	MaxRetries int
	// RetryDelayMs is the base delay before the first retry.
	RetryDelayMs int
}

// DefaultDecayConfig returns the production defaults: ~30-day half-life.
func DefaultDecayConfig() DecayConfig {
	return DecayConfig{
		DecayLambda:        0.023,
		BatchWindowSeconds: 5,
		BatchEnabled:       false,
		MaxRetries:         3,
		RetryDelayMs:       500,
	}
}

// Validate checks the configuration ranges.
func (c DecayConfig) Validate() error {
	if c.DecayLambda <= 0 {
		return fmt.Errorf("decay_lambda must be positive, got %g", c.DecayLambda)
	}
	if c.BatchWindowSeconds < 1 || c.BatchWindowSeconds > 60 {
		return fmt.Errorf("batch_window_seconds must be in [1,60], got %d", c.BatchWindowSeconds)
	}
	if c.MaxRetries < 1 || c.MaxRetries > 10 {
		return fmt.Errorf("max_retries must be in [1,10], got %d", c.MaxRetries)
	}
	if c.RetryDelayMs < 0 {
		return fmt.Errorf("retry_delay_ms must not be negative, got %d", c.RetryDelayMs)
	}
	return nil
}

// HalfLifeDays returns the number of days after which an old signal carries
// half its original weight.
func (c DecayConfig) HalfLifeDays() float64 {
	return math.Ln2 / c.DecayLambda
}

// RetryDelay returns the base retry delay as a duration.
func (c DecayConfig) RetryDelay() time.Duration {
	return time.Duration(c.RetryDelayMs) * time.Millisecond
}

// decayFactor returns exp(-lambda * elapsedDays). Monotonically non-increasing
// in elapsed time; negative elapsed time is treated as zero.
func (c DecayConfig) decayFactor(elapsed time.Duration) float64 {
	days := elapsed.Hours() / 24
	if days < 0 {
		days = 0
	}
	return math.Exp(-c.DecayLambda * days)
}

package playback

import "time"

// Backoff bounds how many times a busy operation is attempted and how long to wait
// between attempts
type Backoff struct {
	Delay       func(attempt int) time.Duration
	MaxAttempts int
	// Defaults to time.Sleep
	Sleep func(d time.Duration)
}

func NewConstantBackoff(maxAttempts int, d time.Duration) Backoff {
	return Backoff{
		Delay:       func(int) time.Duration { return d },
		MaxAttempts: maxAttempts,
	}
}

// Decoder busy retries: 10 attempts, 5ms apart
func DefaultBackoff() Backoff {
	return NewConstantBackoff(10, 5*time.Millisecond)
}

func (b Backoff) maxAttempts() int {
	if b.MaxAttempts <= 0 {
		return 1
	}
	return b.MaxAttempts
}

// Retry calls fn until it doesn't ask for a retry or attempts are exhausted.
// exhausted is true only when every attempt asked for a retry.
func (b Backoff) Retry(fn func(attempt int) (retry bool, err error)) (exhausted bool, err error) {
	// Get sleep
	sleep := b.Sleep
	if sleep == nil {
		sleep = time.Sleep
	}

	// Loop
	for attempt := 1; attempt <= b.maxAttempts(); attempt++ {
		// Execute
		var retry bool
		if retry, err = fn(attempt); !retry {
			return
		}

		// Wait
		if attempt < b.maxAttempts() && b.Delay != nil {
			if d := b.Delay(attempt); d > 0 {
				sleep(d)
			}
		}
	}
	exhausted = true
	return
}

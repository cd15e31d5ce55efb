package store

import (
	"context"
	"time"
)

// SetSleep replaces the backoff wait so tests run without real delays.
func SetSleep(s *Store, sleep func(context.Context, time.Duration) error) {
	s.sleep = sleep
}

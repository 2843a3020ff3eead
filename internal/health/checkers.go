package health

import (
	"context"
	"fmt"
	"time"

	"github.com/MrWong99/parley/internal/resilience"
)

// Pinger is implemented by dependencies that can report reachability, such
// as the history store.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingChecker returns a [Checker] that calls p.Ping.
func PingChecker(name string, p Pinger) Checker {
	return Checker{Name: name, Check: p.Ping}
}

// BreakerChecker returns a [Checker] that fails while b refuses dials. A
// breaker whose cooldown has passed is reported ready so the next Start can
// probe the service.
func BreakerChecker(name string, b *resilience.Breaker) Checker {
	return Checker{
		Name: name,
		Check: func(context.Context) error {
			s := b.Snapshot()
			if !s.CoolingDown {
				return nil
			}
			return fmt.Errorf("circuit breaker open after %d failures, retry at %s: %s",
				s.Failures, s.RetryAt.Format(time.RFC3339), s.LastErr)
		},
	}
}

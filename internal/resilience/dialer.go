package resilience

import (
	"context"
	"errors"
	"fmt"

	"github.com/MrWong99/parley/pkg/provider/s2s"
)

// GuardedDialer is an [s2s.Dialer] whose dials pass through a [Breaker].
// While the breaker refuses, Dial fails immediately with an error wrapping
// both [s2s.ErrConnection] and [ErrCircuitOpen].
type GuardedDialer struct {
	next    s2s.Dialer
	breaker *Breaker
}

var _ s2s.Dialer = (*GuardedDialer)(nil)

// GuardDialer wraps next with breaker.
func GuardDialer(next s2s.Dialer, breaker *Breaker) *GuardedDialer {
	return &GuardedDialer{next: next, breaker: breaker}
}

// Breaker returns the breaker guarding the dialer.
func (g *GuardedDialer) Breaker() *Breaker { return g.breaker }

// Dial implements [s2s.Dialer].
func (g *GuardedDialer) Dial(ctx context.Context, credential string) (s2s.Conn, error) {
	done, err := g.breaker.Acquire()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", s2s.ErrConnection, err)
	}
	conn, err := g.next.Dial(ctx, credential)
	done(err)
	if err != nil {
		return nil, err
	}
	return conn, nil
}

// CountsDialFailure reports whether a dial error says something about the
// service's health. Caller cancellation does not.
func CountsDialFailure(err error) bool {
	return !errors.Is(err, context.Canceled)
}

package malgo

import "context"

// awaitOpen runs open without blocking past ctx. When ctx ends first,
// awaitOpen returns ctx.Err() at once and a value open still produces is
// handed to release.
func awaitOpen[T any](ctx context.Context, open func() (T, error), release func(T)) (T, error) {
	type result struct {
		v   T
		err error
	}
	ch := make(chan result, 1)
	go func() {
		v, err := open()
		ch <- result{v, err}
	}()

	select {
	case r := <-ch:
		return r.v, r.err
	case <-ctx.Done():
		go func() {
			if r := <-ch; r.err == nil {
				release(r.v)
			}
		}()
		var zero T
		return zero, ctx.Err()
	}
}

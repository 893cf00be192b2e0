package session

import "context"

// offload runs a blocking device call on its own goroutine so the calling
// pipeline can return as soon as ctx is done. The call itself keeps running
// until the device returns on its own.
func offload[T any](ctx context.Context, fn func() (T, error)) (T, error) {
	type outcome struct {
		value T
		err   error
	}
	done := make(chan outcome, 1)
	go func() {
		v, err := fn()
		done <- outcome{value: v, err: err}
	}()

	select {
	case o := <-done:
		return o.value, o.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// offloadErr is offload for calls that only return an error.
func offloadErr(ctx context.Context, fn func() error) error {
	_, err := offload(ctx, func() (struct{}, error) {
		return struct{}{}, fn()
	})
	return err
}

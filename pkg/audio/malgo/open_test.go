package malgo

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestAwaitOpen_ReturnsResult(t *testing.T) {
	t.Parallel()

	v, err := awaitOpen(context.Background(), func() (int, error) { return 7, nil }, func(int) {
		t.Error("release called for a device the caller received")
	})
	if err != nil || v != 7 {
		t.Fatalf("awaitOpen = %d, %v; want 7, nil", v, err)
	}

	boom := errors.New("device busy")
	if _, err := awaitOpen(context.Background(), func() (int, error) { return 0, boom }, func(int) {}); !errors.Is(err, boom) {
		t.Errorf("err = %v, want %v", err, boom)
	}
}

func TestAwaitOpen_CancelReleasesLateDevice(t *testing.T) {
	t.Parallel()

	unblock := make(chan struct{})
	released := make(chan int, 1)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		_, err := awaitOpen(ctx, func() (int, error) {
			<-unblock
			return 42, nil
		}, func(v int) { released <- v })
		done <- err
	}()

	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("err = %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("awaitOpen blocked on a slow open after cancel")
	}

	close(unblock)
	select {
	case v := <-released:
		if v != 42 {
			t.Errorf("released %d, want 42", v)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("late device was never released")
	}
}

func TestAwaitOpen_CancelAfterFailedOpen(t *testing.T) {
	t.Parallel()

	unblock := make(chan struct{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := awaitOpen(ctx, func() (int, error) {
		<-unblock
		return 0, errors.New("no device")
	}, func(int) { t.Error("release called for a failed open") })
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	close(unblock)
	time.Sleep(10 * time.Millisecond)
}

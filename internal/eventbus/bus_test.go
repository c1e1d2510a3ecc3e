package eventbus

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestBusDeliversInOrder(t *testing.T) {
	ctx := context.Background()
	bus := New[int](8)
	sub := bus.Subscribe()

	for i := 0; i < 5; i++ {
		if err := bus.Publish(i); err != nil {
			t.Fatalf("Publish(%d): %v", i, err)
		}
	}

	for want := 0; want < 5; want++ {
		got, err := sub.Recv(ctx)
		if err != nil {
			t.Fatalf("Recv: %v", err)
		}
		if got != want {
			t.Fatalf("Recv = %d, want %d", got, want)
		}
	}
}

func TestBusReportsLag(t *testing.T) {
	ctx := context.Background()
	bus := New[int](512)
	sub := bus.Subscribe()

	for i := 0; i < 600; i++ {
		_ = bus.Publish(i)
	}

	_, err := sub.Recv(ctx)
	missed, ok := IsLagged(err)
	if !ok {
		t.Fatalf("err = %v, want lag", err)
	}
	if missed != 88 {
		t.Errorf("missed = %d, want 88", missed)
	}

	got, err := sub.Recv(ctx)
	if err != nil {
		t.Fatalf("Recv after lag: %v", err)
	}
	if got != 88 {
		t.Errorf("first event after lag = %d, want 88 (oldest retained)", got)
	}
	if p := sub.Pending(); p != 511 {
		t.Errorf("Pending = %d, want 511", p)
	}
}

func TestBusSubscribersAreIndependent(t *testing.T) {
	ctx := context.Background()
	bus := New[string](4)
	fast := bus.Subscribe()
	slow := bus.Subscribe()

	for _, v := range []string{"a", "b", "c", "d", "e", "f"} {
		_ = bus.Publish(v)
		if got, err := fast.Recv(ctx); err != nil || got != v {
			t.Fatalf("fast Recv = %q, %v; want %q", got, err, v)
		}
	}

	if _, err := slow.Recv(ctx); err == nil {
		t.Fatal("slow subscriber should observe lag")
	}
	got, err := slow.Recv(ctx)
	if err != nil || got != "c" {
		t.Fatalf("slow Recv = %q, %v; want c", got, err)
	}
}

func TestBusLateSubscriberSkipsHistory(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	bus := New[int](4)
	_ = bus.Publish(1)
	sub := bus.Subscribe()

	if _, err := sub.Recv(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v, want deadline exceeded", err)
	}
}

func TestBusCloseDrainsThenFails(t *testing.T) {
	ctx := context.Background()
	bus := New[int](4)
	sub := bus.Subscribe()

	_ = bus.Publish(1)
	bus.Close()

	if err := bus.Publish(2); !errors.Is(err, ErrClosed) {
		t.Fatalf("Publish after close = %v, want ErrClosed", err)
	}
	if got, err := sub.Recv(ctx); err != nil || got != 1 {
		t.Fatalf("Recv = %d, %v; want buffered 1", got, err)
	}
	if _, err := sub.Recv(ctx); !errors.Is(err, ErrClosed) {
		t.Fatalf("Recv = %v, want ErrClosed", err)
	}
}

func TestBusWakesBlockedReceiver(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	bus := New[int](4)
	sub := bus.Subscribe()

	var wg sync.WaitGroup
	wg.Add(1)
	var got int
	var err error
	go func() {
		defer wg.Done()
		got, err = sub.Recv(ctx)
	}()

	time.Sleep(10 * time.Millisecond)
	_ = bus.Publish(42)
	wg.Wait()

	if err != nil || got != 42 {
		t.Fatalf("Recv = %d, %v; want 42", got, err)
	}
}

func TestSubscriptionClose(t *testing.T) {
	bus := New[int](4)
	sub := bus.Subscribe()
	_ = bus.Publish(1)
	sub.Close()

	if _, err := sub.Recv(context.Background()); !errors.Is(err, ErrClosed) {
		t.Fatalf("err = %v, want ErrClosed", err)
	}
}

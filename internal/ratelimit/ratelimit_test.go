package ratelimit

import (
	"context"
	"testing"
	"time"
)

func TestNew_Unlimited(t *testing.T) {
	l := New(0, 0)
	if !l.Unlimited() {
		t.Fatal("expected unlimited limiter")
	}
	for i := 0; i < 1000; i++ {
		if !l.Allow() {
			t.Fatalf("unlimited limiter rejected event %d", i)
		}
	}
}

func TestLimiter_Burst(t *testing.T) {
	l := New(1, 2)

	if !l.Allow() || !l.Allow() {
		t.Fatal("expected burst of 2 to be allowed")
	}
	if l.Allow() {
		t.Error("third event should exceed the burst")
	}
}

func TestLimiter_WaitCancelled(t *testing.T) {
	l := New(0.001, 1)
	l.Allow()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	if err := l.Wait(ctx); err == nil {
		t.Error("expected Wait to fail once the context expires")
	}
}

func TestLimiter_Nil(t *testing.T) {
	var l *Limiter
	if !l.Allow() || !l.Unlimited() {
		t.Error("nil limiter should never block")
	}
	if err := l.Wait(context.Background()); err != nil {
		t.Errorf("Wait() on nil limiter = %v", err)
	}
}

func TestLimiter_SetLimit(t *testing.T) {
	l := New(0, 0)
	l.SetLimit(5)
	if l.Unlimited() {
		t.Error("expected limiter to be bounded after SetLimit")
	}
	l.SetLimit(0)
	if !l.Unlimited() {
		t.Error("expected limiter to be unbounded after SetLimit(0)")
	}
}

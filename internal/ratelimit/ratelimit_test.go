package ratelimit

import (
	"context"
	"testing"
	"time"
)

func TestNew_Burst(t *testing.T) {
	tests := []struct {
		rpm  int
		want int
	}{
		{rpm: 1, want: 1},
		{rpm: 60, want: 6},
		{rpm: 600, want: 60},
	}

	for _, tt := range tests {
		if got := New(tt.rpm).Burst(); got != tt.want {
			t.Errorf("New(%d).Burst() = %d, want %d", tt.rpm, got, tt.want)
		}
	}
}

func TestLimiter_ExhaustsBurst(t *testing.T) {
	l := New(60)
	for i := range 6 {
		if !l.Allow() {
			t.Fatalf("request %d rejected inside burst", i)
		}
	}
	if l.Allow() {
		t.Fatal("request allowed past burst")
	}
}

func TestLimiter_WaitHonoursContext(t *testing.T) {
	l := New(1)
	if !l.Allow() {
		t.Fatal("first request rejected")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if err := l.Wait(ctx); err == nil {
		t.Fatal("Wait succeeded although the next token is a minute away")
	}
}

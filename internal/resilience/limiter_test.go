package resilience

import (
	"context"
	"testing"
	"time"

	"github.com/sells-group/auction-cli/internal/config"
)

func TestLimiter_EnforcesInterval(t *testing.T) {
	l := NewLimiter("attom", 40*time.Millisecond)
	ctx := context.Background()

	start := time.Now()
	for i := 0; i < 3; i++ {
		if err := l.Wait(ctx); err != nil {
			t.Fatalf("wait: %v", err)
		}
	}
	// First call is immediate, the next two wait one interval each.
	if elapsed := time.Since(start); elapsed < 70*time.Millisecond {
		t.Errorf("expected at least ~80ms, got %s", elapsed)
	}
}

func TestLimiter_Unlimited(t *testing.T) {
	l := LimiterFor("census", config.SourceConfig{})
	start := time.Now()
	for i := 0; i < 100; i++ {
		if err := l.Wait(context.Background()); err != nil {
			t.Fatalf("wait: %v", err)
		}
	}
	if time.Since(start) > time.Second {
		t.Error("unlimited limiter should not block")
	}
	if l.Name() != "census" {
		t.Errorf("unexpected name %q", l.Name())
	}
}

func TestLimiter_ContextCancelled(t *testing.T) {
	l := NewLimiter("redfin", time.Hour)
	if err := l.Wait(context.Background()); err != nil {
		t.Fatalf("first wait: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if err := l.Wait(ctx); err == nil {
		t.Error("expected error when the context ends before the next slot")
	}
}

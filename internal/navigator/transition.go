package navigator

import (
	"context"
	"time"
)

const (
	// DefaultFallbackFade is the wait used in place of a fade-out when no
	// transition provider is configured.
	DefaultFallbackFade = 200 * time.Millisecond

	// DefaultSettleDelay separates applying a scene from fading back in.
	DefaultSettleDelay = 100 * time.Millisecond
)

// Transition is the visual effect run around a scene change.
// Both calls block until the effect has finished.
type Transition interface {
	FadeOut(ctx context.Context) error
	FadeIn(ctx context.Context) error
}

// TimedTransition substitutes fixed waits for real effects.
type TimedTransition struct {
	Out time.Duration
	In  time.Duration
}

// FallbackTransition is the transition used when none is configured.
func FallbackTransition() TimedTransition {
	return TimedTransition{Out: DefaultFallbackFade}
}

func (t TimedTransition) FadeOut(ctx context.Context) error {
	return sleep(ctx, t.Out)
}

func (t TimedTransition) FadeIn(ctx context.Context) error {
	return sleep(ctx, t.In)
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

package usecase

import (
	"context"
	"time"

	"github.com/dbrain-dev/dbrain/internal/provider"
)

// CeilingMargin is added on top of the provider timeout for the outer
// deadline, so a provider that honors its own timeout always finishes
// before the ceiling does.
const CeilingMargin = time.Minute

// RunWithCeiling executes fn on its own goroutine under an outer
// deadline of timeout plus CeilingMargin. If the ceiling expires first
// the caller gets an error envelope naming the provider; the goroutine
// is left to unwind on its cancelled context.
func RunWithCeiling(ctx context.Context, providerName string, timeout time.Duration, fn func(context.Context) provider.Envelope) provider.Envelope {
	return runWithCeiling(ctx, providerName, timeout, CeilingMargin, fn)
}

func runWithCeiling(ctx context.Context, providerName string, timeout, margin time.Duration, fn func(context.Context) provider.Envelope) provider.Envelope {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	started := time.Now()

	ctx, cancel := context.WithTimeout(ctx, timeout+margin)
	defer cancel()

	done := make(chan provider.Envelope, 1)
	go func() {
		done <- fn(ctx)
	}()

	select {
	case env := <-done:
		return env
	case <-ctx.Done():
		return failEnvelope(providerName, "execution exceeded the time ceiling", started)
	}
}

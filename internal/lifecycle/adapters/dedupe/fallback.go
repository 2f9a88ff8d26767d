package dedupe

import (
	"context"
	"log/slog"
	"time"

	"signflow/internal/lifecycle/ports"
	"signflow/pkg/platform/circuit"
)

// FallbackDeduper asks the primary first and answers from the in-process
// fallback while the breaker is open. Claims made during an outage exist only
// in the fallback, so it stays authoritative until the breaker closes.
type FallbackDeduper struct {
	primary  ports.Deduper
	fallback ports.Deduper
	breaker  *circuit.Breaker
	logger   *slog.Logger
}

func NewFallbackDeduper(primary, fallback ports.Deduper, breaker *circuit.Breaker, logger *slog.Logger) *FallbackDeduper {
	if breaker == nil {
		breaker = circuit.New("dedupe")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &FallbackDeduper{primary: primary, fallback: fallback, breaker: breaker, logger: logger}
}

func (d *FallbackDeduper) Claim(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	first, err := d.primary.Claim(ctx, key, ttl)
	if err != nil {
		_, change := d.breaker.RecordFailure()
		if change.Opened {
			d.logger.WarnContext(ctx, "dedupe circuit opened; using in-memory claims",
				"breaker", d.breaker.Name(),
				"error", err,
			)
		}
		return d.fallback.Claim(ctx, key, ttl)
	}

	usePrimary, change := d.breaker.RecordSuccess()
	if change.Closed {
		d.logger.InfoContext(ctx, "dedupe circuit closed", "breaker", d.breaker.Name())
	}
	if !usePrimary {
		return d.fallback.Claim(ctx, key, ttl)
	}
	return first, nil
}

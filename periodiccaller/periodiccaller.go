// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

// Package periodiccaller runs background work on a jittered period.
package periodiccaller // import "go.opentelemetry.io/exectrace/periodiccaller"

import (
	"context"
	"math/rand/v2"
	"time"
)

// Run calls fn every interval, +/- jitter ([0..1]) drawn anew for each round,
// until ctx is canceled. With immediate set, the first call happens right away.
// Rounds never overlap: the next wait starts once fn returns. Run blocks and
// returns the context's error.
func Run(ctx context.Context, interval time.Duration, jitter float64, immediate bool,
	fn func(ctx context.Context)) error {
	if immediate {
		if err := ctx.Err(); err != nil {
			return err
		}
		fn(ctx)
	}

	timer := time.NewTimer(AddJitter(interval, jitter))
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
			fn(ctx)
			timer.Reset(AddJitter(interval, jitter))
		}
	}
}

// AddJitter adds +/- jitter (jitter is [0..1]) to baseDuration.
func AddJitter(baseDuration time.Duration, jitter float64) time.Duration {
	if jitter < 0.0 || jitter > 1.0 {
		return baseDuration
	}
	//nolint:gosec
	return time.Duration((1 + jitter - 2*jitter*rand.Float64()) * float64(baseDuration))
}

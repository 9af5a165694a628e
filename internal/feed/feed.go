// Package feed turns Discord gateway events into role observations and
// departure triggers for the reconcilers. Delivery is at-least-once;
// the reconciler's dedup absorbs repeats.
package feed

import (
	"context"

	"github.com/wardenhq/warden/internal/sync"
)

// ObservationSink consumes role-membership observations.
type ObservationSink interface {
	HandleObservation(ctx context.Context, obs sync.Observation) error
}

// DepartureSink consumes community departures.
type DepartureSink interface {
	HandleDeparture(ctx context.Context, discordUserID uint64) error
}

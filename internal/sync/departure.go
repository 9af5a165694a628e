package sync

import (
	"context"

	"github.com/sourcegraph/conc"
	"go.uber.org/zap"
)

// Departure revokes role-sourced entries when a user leaves the
// community. Only entries carrying the departed user's Discord ID are
// touched; manual, donation and import entries are explicitly
// preserved.
type Departure struct {
	ledger      Ledger
	invalidator Invalidator
	logger      *zap.Logger
}

// NewDeparture creates a departure reconciler.
func NewDeparture(ledger Ledger, invalidator Invalidator, logger *zap.Logger) *Departure {
	return &Departure{
		ledger:      ledger,
		invalidator: invalidator,
		logger:      logger.Named("departure"),
	}
}

// HandleDeparture revokes the departed user's role-sourced entries
// across all their game identities and invalidates each affected one.
func (d *Departure) HandleDeparture(ctx context.Context, discordUserID uint64) error {
	affected, err := d.ledger.RevokeDeparture(ctx, discordUserID)
	if err != nil {
		return err
	}

	if len(affected) == 0 {
		d.logger.Debug("Departure with no role-sourced entries",
			zap.Uint64("discordUserID", discordUserID))

		return nil
	}

	seen := make(map[string]struct{}, len(affected))

	var wg conc.WaitGroup

	for _, gameID := range affected {
		if gameID == "" {
			continue
		}

		if _, ok := seen[gameID]; ok {
			continue
		}

		seen[gameID] = struct{}{}

		wg.Go(func() {
			d.invalidator.InvalidateGame(ctx, gameID)
		})
	}

	wg.Wait()

	d.logger.Info("Revoked entries for departed user",
		zap.Uint64("discordUserID", discordUserID),
		zap.Int("affectedGames", len(seen)))

	return nil
}

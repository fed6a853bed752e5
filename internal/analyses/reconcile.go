package analyses

import (
	"context"
	"fmt"
	"time"

	"keyword-backend/internal/shared/metrics"
	"keyword-backend/internal/shared/telemetry"
)

// staleProcessingAge is how long a record may sit in processing before the
// reconciler treats its worker as dead.
const staleProcessingAge = 30 * time.Minute

// ReconcileStale marks processing analyses older than staleProcessingAge as
// failed. Workers run this periodically so crashed jobs do not leave records
// spinning at a stale progress value forever.
func (s *Service) ReconcileStale(ctx context.Context) (int, error) {
	cutoff := time.Now().UTC().Add(-staleProcessingAge)
	stale, err := s.Repo.ListStaleProcessing(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("list stale analyses: %w", err)
	}

	reconciled := 0
	for _, analysis := range stale {
		msg := ErrorCodeInternal + ": analysis abandoned by worker"
		completedAt := time.Now().UTC()
		fin := Finalization{
			Status:       StatusFailed,
			ErrorMessage: &msg,
			CompletedAt:  completedAt,
		}
		if err := s.Repo.Finalize(ctx, analysis.ID, fin); err != nil {
			telemetry.Error("analysis.reconcile_failed", map[string]any{
				"analysis_id": analysis.ID,
				"error":       err.Error(),
			})
			continue
		}
		reconciled++
		metrics.IncAnalysisFailed()
		telemetry.Info("analysis.status", map[string]any{
			"owner_id":          analysis.OwnerID,
			"analysis_id":       analysis.ID,
			"status":            StatusFailed,
			"status_transition": "processing->failed",
			"reason":            "stale",
		})
	}
	return reconciled, nil
}

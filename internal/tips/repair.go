package tips

import (
	"context"

	"github.com/blanchy21/TipsterNew-sub000/internal/database"
	"github.com/blanchy21/TipsterNew-sub000/internal/models"
	"github.com/blanchy21/TipsterNew-sub000/internal/utils"
	"github.com/sirupsen/logrus"
)

// RepairVerifications finds tips whose status disagrees with their most
// recent verification record and re-applies that record. It returns the
// number of tips repaired. Per-tip failures are logged and skipped.
func RepairVerifications(ctx context.Context, store database.Store) (int, error) {
	records, err := store.ListVerifications(ctx, "")
	if err != nil {
		return 0, utils.AsStoreError("list verifications", err)
	}

	// Records are newest first, so the first seen per tip is the latest.
	latest := make(map[string]*models.VerificationRecord)
	var order []string
	for _, rec := range records {
		if _, seen := latest[rec.TipID]; seen {
			continue
		}
		latest[rec.TipID] = rec
		order = append(order, rec.TipID)
	}

	repaired := 0
	for _, tipID := range order {
		rec := latest[tipID]
		tip, err := store.GetTip(ctx, tipID)
		if utils.IsErrorCode(err, utils.ErrNotFound) {
			continue
		}
		if err != nil {
			utils.Log.WithField("tipID", tipID).WithError(err).Warn("Repair could not read tip")
			continue
		}
		if tip.Status == rec.Status {
			continue
		}

		update := verificationUpdate(tip, rec.Status, rec.ModeratorID, rec.CreatedAt)
		if err := store.ApplyVerification(ctx, tipID, update, tip.Revision); err != nil {
			utils.Log.WithField("tipID", tipID).WithError(err).Warn("Repair could not apply verification")
			continue
		}
		repaired++
		utils.Log.WithFields(logrus.Fields{
			"tipID":  tipID,
			"from":   tip.Status,
			"to":     rec.Status,
			"record": rec.ID,
		}).Info("Repaired tip status from verification record")
	}
	return repaired, nil
}

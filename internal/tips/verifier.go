package tips

import (
	"context"
	"time"

	"github.com/blanchy21/TipsterNew-sub000/internal/database"
	"github.com/blanchy21/TipsterNew-sub000/internal/models"
	"github.com/blanchy21/TipsterNew-sub000/internal/utils"
	"github.com/sirupsen/logrus"
)

// compensationTimeout bounds the cleanup write after a failed verification.
const compensationTimeout = 5 * time.Second

type VerifyRequest struct {
	TipID       string
	Status      string
	ModeratorID string
	Note        string
}

// Verifier moves tips to a terminal status. The verification record and the
// tip update form one logical unit: the record is written first and removed
// again if the tip update fails.
type Verifier struct {
	store database.Store
	rules *models.SportRules
	now   func() time.Time
}

func NewVerifier(store database.Store, rules *models.SportRules, now func() time.Time) *Verifier {
	if now == nil {
		now = time.Now
	}
	return &Verifier{store: store, rules: rules, now: now}
}

// Verify validates the target status against the tip's sport, writes the
// record and applies the status. It returns the tip as written.
func (v *Verifier) Verify(ctx context.Context, req VerifyRequest) (*models.Tip, *models.VerificationRecord, error) {
	status, ok := models.ParseTipStatus(req.Status)
	if !ok {
		return nil, nil, utils.NewValidationError("unknown status: " + req.Status)
	}
	if req.ModeratorID == "" {
		return nil, nil, utils.NewValidationError("moderator id is required")
	}

	tip, err := v.store.GetTip(ctx, req.TipID)
	if err != nil {
		return nil, nil, utils.AsStoreError("get tip", err)
	}

	if !v.rules.AllowsStatus(tip.Sport, status) {
		return nil, nil, utils.NewInvalidTransitionError(string(tip.Status), string(status), tip.Sport)
	}

	now := v.now()
	rec := &models.VerificationRecord{
		TipID:       tip.ID,
		AuthorID:    tip.Author.ID,
		ModeratorID: req.ModeratorID,
		Status:      status,
		Note:        req.Note,
		Odds:        tip.Odds,
		CreatedAt:   now,
	}
	recID, err := v.store.CreateVerification(ctx, rec)
	if err != nil {
		return nil, nil, utils.AsStoreError("create verification", err)
	}
	rec.ID = recID

	update := verificationUpdate(tip, status, req.ModeratorID, now)
	if err := v.store.ApplyVerification(ctx, tip.ID, update, tip.Revision); err != nil {
		v.compensate(rec)
		return nil, nil, utils.AsStoreError("apply verification", err)
	}

	update.Apply(tip)
	tip.Revision++

	return tip, rec, nil
}

// verificationUpdate keeps the first verification time on re-verification.
func verificationUpdate(tip *models.Tip, status models.TipStatus, moderatorID string, now time.Time) models.TipUpdate {
	verifiedAt := now
	if tip.VerifiedAt != nil {
		verifiedAt = *tip.VerifiedAt
	}
	finished := true
	return models.TipUpdate{
		Status:         &status,
		VerifiedAt:     &verifiedAt,
		VerifiedBy:     &moderatorID,
		IsGameFinished: &finished,
	}
}

// compensate removes a record whose tip update did not land. A failure here
// leaves the record for RepairVerifications.
func (v *Verifier) compensate(rec *models.VerificationRecord) {
	ctx, cancel := context.WithTimeout(context.Background(), compensationTimeout)
	defer cancel()

	if err := v.store.DeleteVerification(ctx, rec.ID); err != nil {
		utils.Log.WithFields(logrus.Fields{
			"tipID":          rec.TipID,
			"verificationID": rec.ID,
			"error":          err,
		}).Error("Failed to remove orphaned verification record")
	}
}

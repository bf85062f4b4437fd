package actors

import (
	stdctx "context"
	"time"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/blanchy21/TipsterNew-sub000/internal/database"
	"github.com/blanchy21/TipsterNew-sub000/internal/tips"
	"github.com/blanchy21/TipsterNew-sub000/internal/utils"
	"github.com/sirupsen/logrus"
)

// StatsInvalidator drops cached aggregates for an author whose tips changed.
type StatsInvalidator interface {
	Invalidate(ctx stdctx.Context, userID string)
}

// VerificationActor serializes moderator verifications. On start it repairs
// tips left behind by a verification that wrote its record but not the tip.
type VerificationActor struct {
	store    database.Store
	verifier *tips.Verifier
	stats    StatsInvalidator
	metrics  *utils.MetricsCollector
}

func NewVerificationActor(store database.Store, verifier *tips.Verifier, stats StatsInvalidator, metrics *utils.MetricsCollector) actor.Actor {
	return &VerificationActor{
		store:    store,
		verifier: verifier,
		stats:    stats,
		metrics:  metrics,
	}
}

func (a *VerificationActor) Receive(context actor.Context) {
	switch msg := context.Message().(type) {
	case *actor.Started:
		utils.Log.Info("Verification actor started")
		context.Send(context.Self(), &repairOnStartMsg{})

	case *repairOnStartMsg:
		if _, err := a.repair(); err != nil {
			utils.Log.WithError(err).Warn("Startup verification repair failed")
		}

	case *RepairVerificationsMsg:
		repaired, err := a.repair()
		if err != nil {
			context.Respond(utils.ToAppError(err))
			return
		}
		context.Respond(repaired)

	case *VerifyTipMsg:
		a.handleVerify(context, msg)

	case *ListVerificationsMsg:
		ctx, cancel := stdctx.WithTimeout(stdctx.Background(), storeTimeout)
		defer cancel()
		records, err := a.store.ListVerifications(ctx, msg.TipID)
		if err != nil {
			context.Respond(utils.ToAppError(utils.AsStoreError("list verifications", err)))
			return
		}
		context.Respond(records)
	}
}

func (a *VerificationActor) handleVerify(context actor.Context, msg *VerifyTipMsg) {
	ctx, cancel := stdctx.WithTimeout(stdctx.Background(), storeTimeout)
	defer cancel()

	start := time.Now()
	tip, rec, err := a.verifier.Verify(ctx, tips.VerifyRequest{
		TipID:       msg.TipID,
		Status:      msg.Status,
		ModeratorID: msg.ModeratorID,
		Note:        msg.Note,
	})
	if a.metrics != nil {
		a.metrics.AddOperationLatency("verify_tip", time.Since(start))
	}
	if err != nil {
		a.record("verify_failed")
		utils.Log.WithFields(logrus.Fields{
			"tipID":  msg.TipID,
			"status": msg.Status,
			"code":   utils.ErrorCode(err),
		}).Warn("Verification rejected")
		context.Respond(utils.ToAppError(err))
		return
	}

	a.record("tip_verified")
	if a.stats != nil {
		a.stats.Invalidate(ctx, tip.Author.ID)
	}
	utils.Log.WithFields(logrus.Fields{
		"tipID":       tip.ID,
		"status":      tip.Status,
		"moderatorID": msg.ModeratorID,
	}).Info("Tip verified")
	context.Respond(&VerifyResponse{Tip: tip, Record: rec})
}

func (a *VerificationActor) repair() (int, error) {
	ctx, cancel := stdctx.WithTimeout(stdctx.Background(), time.Minute)
	defer cancel()

	repaired, err := tips.RepairVerifications(ctx, a.store)
	if err != nil {
		return 0, err
	}
	if repaired > 0 {
		a.record("verification_repaired")
		// Repaired authors are not tracked individually; drop every cached board.
		if a.stats != nil {
			a.stats.Invalidate(ctx, "")
		}
	}
	utils.Log.WithField("repaired", repaired).Info("Verification repair finished")
	return repaired, nil
}

func (a *VerificationActor) record(event string) {
	if a.metrics != nil {
		a.metrics.RecordEvent(event)
	}
}

package tips

import (
	"context"
	"time"

	"github.com/blanchy21/TipsterNew-sub000/internal/database"
	"github.com/blanchy21/TipsterNew-sub000/internal/utils"
)

// Engagement writes authoritative engagement changes. Counters always move
// by deltas so concurrent sessions never overwrite each other. The optimistic
// half of a like lives in the session's feed state.
type Engagement struct {
	store   database.Store
	metrics *utils.MetricsCollector
}

func NewEngagement(store database.Store, metrics *utils.MetricsCollector) *Engagement {
	return &Engagement{store: store, metrics: metrics}
}

// CommitLike sets userID's like on the tip and moves the like counter with
// it in one atomic write.
func (e *Engagement) CommitLike(ctx context.Context, tipID, userID string, liked bool) error {
	start := time.Now()
	err := e.store.SetLike(ctx, tipID, userID, liked)
	e.observe("commit_like", start)
	return utils.AsStoreError("set like", err)
}

func (e *Engagement) IncrementCommentCount(ctx context.Context, tipID string) error {
	return utils.AsStoreError("increment comments",
		e.store.IncrementTipField(ctx, tipID, database.CounterComments, 1))
}

// DecrementCommentCount never takes the counter below zero.
func (e *Engagement) DecrementCommentCount(ctx context.Context, tipID string) error {
	return utils.AsStoreError("decrement comments",
		e.store.DecrementTipFieldClamped(ctx, tipID, database.CounterComments))
}

// IncrementViews is best effort; failures are logged and dropped.
func (e *Engagement) IncrementViews(ctx context.Context, tipID string) {
	if err := e.store.IncrementTipField(ctx, tipID, database.CounterViews, 1); err != nil {
		utils.Log.WithField("tipID", tipID).WithError(err).Debug("Dropped view increment")
		if e.metrics != nil {
			e.metrics.RecordEvent("view_dropped")
		}
	}
}

func (e *Engagement) observe(op string, start time.Time) {
	if e.metrics != nil {
		e.metrics.AddOperationLatency(op, time.Since(start))
	}
}

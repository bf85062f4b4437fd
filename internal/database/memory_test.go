package database

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/blanchy21/TipsterNew-sub000/internal/models"
	"github.com/blanchy21/TipsterNew-sub000/internal/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTip(id string, createdAt time.Time) *models.Tip {
	return &models.Tip{
		ID:        id,
		Author:    models.Author{ID: "author-1", Name: "Author"},
		Sport:     "Football",
		Title:     "Tip " + id,
		Content:   "content",
		Odds:      "2.5",
		CreatedAt: createdAt,
		Status:    models.StatusPending,
	}
}

func nextSnapshot(t *testing.T, sub Subscription[*models.Tip]) Snapshot[*models.Tip] {
	t.Helper()
	select {
	case snap, ok := <-sub.Snapshots():
		require.True(t, ok, "subscription closed")
		return snap
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for snapshot")
	}
	return Snapshot[*models.Tip]{}
}

func ids(tips []*models.Tip) []string {
	out := make([]string, len(tips))
	for i, tip := range tips {
		out[i] = tip.ID
	}
	return out
}

func TestMemoryStoreListOrdersNewestFirst(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	for _, tip := range []*models.Tip{
		newTip("b", base),
		newTip("a", base),
		newTip("c", base.Add(time.Minute)),
		newTip("d", base.Add(-time.Minute)),
	} {
		_, err := store.CreateTip(ctx, tip)
		require.NoError(t, err)
	}

	tips, err := store.ListTips(ctx, TipQuery{})
	require.NoError(t, err)
	assert.Equal(t, []string{"c", "a", "b", "d"}, ids(tips))

	tips, err = store.ListTips(ctx, TipQuery{Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, []string{"c", "a"}, ids(tips))
}

func TestMemoryStoreCreateAssignsID(t *testing.T) {
	store := NewMemoryStore()
	id, err := store.CreateTip(context.Background(), newTip("", time.Now()))
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	_, err = store.CreateTip(context.Background(), newTip(id, time.Now()))
	assert.True(t, utils.IsErrorCode(err, utils.ErrValidation))
}

func TestMemoryStoreGetReturnsCopy(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	_, err := store.CreateTip(ctx, newTip("t1", time.Now()))
	require.NoError(t, err)

	tip, err := store.GetTip(ctx, "t1")
	require.NoError(t, err)
	tip.Title = "mutated"

	again, err := store.GetTip(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, "Tip t1", again.Title)

	_, err = store.GetTip(ctx, "missing")
	assert.True(t, utils.IsErrorCode(err, utils.ErrNotFound))
}

func TestMemoryStoreCounters(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	_, err := store.CreateTip(ctx, newTip("t1", time.Now()))
	require.NoError(t, err)

	require.NoError(t, store.IncrementTipField(ctx, "t1", CounterViews, 1))
	require.NoError(t, store.IncrementTipField(ctx, "t1", CounterComments, 2))
	require.NoError(t, store.DecrementTipFieldClamped(ctx, "t1", CounterComments))
	require.NoError(t, store.DecrementTipFieldClamped(ctx, "t1", CounterComments))
	require.NoError(t, store.DecrementTipFieldClamped(ctx, "t1", CounterComments))

	tip, err := store.GetTip(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, 1, tip.Views)
	assert.Equal(t, 0, tip.Comments)

	err = store.IncrementTipField(ctx, "t1", TipCounter("shares"), 1)
	assert.True(t, utils.IsErrorCode(err, utils.ErrValidation))

	err = store.IncrementTipField(ctx, "missing", CounterViews, 1)
	assert.True(t, utils.IsErrorCode(err, utils.ErrNotFound))
}

func TestMemoryStoreSetLikeKeepsCountInStep(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	_, err := store.CreateTip(ctx, newTip("t1", time.Now()))
	require.NoError(t, err)

	require.NoError(t, store.SetLike(ctx, "t1", "u1", true))
	require.NoError(t, store.SetLike(ctx, "t1", "u1", true))
	require.NoError(t, store.SetLike(ctx, "t1", "u2", true))

	tip, err := store.GetTip(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, 2, tip.Likes)
	assert.ElementsMatch(t, []string{"u1", "u2"}, tip.LikedBy)

	require.NoError(t, store.SetLike(ctx, "t1", "u1", false))
	require.NoError(t, store.SetLike(ctx, "t1", "u1", false))

	tip, err = store.GetTip(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, 1, tip.Likes)
	assert.Equal(t, []string{"u2"}, tip.LikedBy)

	err = store.SetLike(ctx, "missing", "u1", true)
	assert.True(t, utils.IsErrorCode(err, utils.ErrNotFound))
}

func TestMemoryStoreApplyVerificationChecksRevision(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	_, err := store.CreateTip(ctx, newTip("t1", time.Now()))
	require.NoError(t, err)

	win := models.StatusWin
	require.NoError(t, store.ApplyVerification(ctx, "t1", models.TipUpdate{Status: &win}, 0))

	loss := models.StatusLoss
	err = store.ApplyVerification(ctx, "t1", models.TipUpdate{Status: &loss}, 0)
	assert.True(t, utils.IsErrorCode(err, utils.ErrConflict))

	tip, err := store.GetTip(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusWin, tip.Status)
	assert.Equal(t, 1, tip.Revision)
}

func TestMemoryStoreSubscriptionDeliversSnapshots(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	base := time.Now()
	_, err := store.CreateTip(ctx, newTip("t1", base))
	require.NoError(t, err)

	sub, err := store.SubscribeTips(ctx, TipQuery{Limit: 10})
	require.NoError(t, err)
	defer sub.Close()

	snap := nextSnapshot(t, sub)
	require.NoError(t, snap.Err)
	assert.Equal(t, []string{"t1"}, ids(snap.Items))

	_, err = store.CreateTip(ctx, newTip("t2", base.Add(time.Second)))
	require.NoError(t, err)

	snap = nextSnapshot(t, sub)
	assert.Equal(t, []string{"t2", "t1"}, ids(snap.Items))
}

func TestMemoryStoreSubscriptionKeepsLatestSnapshot(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	sub, err := store.SubscribeTips(ctx, TipQuery{})
	require.NoError(t, err)
	defer sub.Close()

	base := time.Now()
	for _, id := range []string{"a", "b", "c"} {
		_, err := store.CreateTip(ctx, newTip(id, base))
		require.NoError(t, err)
	}

	// Unread snapshots are replaced, so the first read is already current.
	snap := nextSnapshot(t, sub)
	assert.Len(t, snap.Items, 3)
}

func TestMemoryStoreFailTipSubscriptions(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	sub, err := store.SubscribeTips(ctx, TipQuery{})
	require.NoError(t, err)
	nextSnapshot(t, sub)
	assert.Equal(t, 1, store.TipSubscriberCount())

	store.FailTipSubscriptions(errors.New("connection reset"))

	snap := nextSnapshot(t, sub)
	assert.EqualError(t, snap.Err, "connection reset")

	_, ok := <-sub.Snapshots()
	assert.False(t, ok)
	assert.Equal(t, 0, store.TipSubscriberCount())
}

func TestMemoryStoreSubscriptionEndsWithContext(t *testing.T) {
	store := NewMemoryStore()
	ctx, cancel := context.WithCancel(context.Background())
	sub, err := store.SubscribeTips(ctx, TipQuery{})
	require.NoError(t, err)
	nextSnapshot(t, sub)

	cancel()
	assert.Eventually(t, func() bool {
		return store.TipSubscriberCount() == 0
	}, time.Second, 10*time.Millisecond)
}

func TestMemoryStoreHookFailsOperation(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	store.SetHook(func(op string) error {
		if op == OpCreateTip {
			return errors.New("write rejected")
		}
		return nil
	})

	_, err := store.CreateTip(ctx, newTip("t1", time.Now()))
	assert.EqualError(t, err, "write rejected")

	tips, err := store.ListTips(ctx, TipQuery{})
	require.NoError(t, err)
	assert.Empty(t, tips)
}

func TestMemoryStoreVerifications(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	base := time.Now()

	first, err := store.CreateVerification(ctx, &models.VerificationRecord{TipID: "t1", Status: models.StatusWin, CreatedAt: base})
	require.NoError(t, err)
	_, err = store.CreateVerification(ctx, &models.VerificationRecord{TipID: "t1", Status: models.StatusLoss, CreatedAt: base.Add(time.Second)})
	require.NoError(t, err)
	_, err = store.CreateVerification(ctx, &models.VerificationRecord{TipID: "t2", Status: models.StatusVoid, CreatedAt: base})
	require.NoError(t, err)

	records, err := store.ListVerifications(ctx, "t1")
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, models.StatusLoss, records[0].Status)

	all, err := store.ListVerifications(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 3)

	require.NoError(t, store.DeleteVerification(ctx, first))
	err = store.DeleteVerification(ctx, first)
	assert.True(t, utils.IsErrorCode(err, utils.ErrNotFound))
}

func TestMemoryStoreComments(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	base := time.Now()

	id, err := store.CreateComment(ctx, &models.Comment{TipID: "t1", AuthorID: "u1", Content: "first", CreatedAt: base})
	require.NoError(t, err)
	_, err = store.CreateComment(ctx, &models.Comment{TipID: "t1", AuthorID: "u2", Content: "second", CreatedAt: base.Add(time.Second)})
	require.NoError(t, err)

	comments, err := store.ListComments(ctx, "t1")
	require.NoError(t, err)
	require.Len(t, comments, 2)
	assert.Equal(t, "first", comments[0].Content)

	require.NoError(t, store.DeleteComment(ctx, id))
	err = store.DeleteComment(ctx, id)
	assert.True(t, utils.IsErrorCode(err, utils.ErrNotFound))

	comments, err = store.ListComments(ctx, "t1")
	require.NoError(t, err)
	assert.Len(t, comments, 1)
}

func TestTipDocumentRoundTrip(t *testing.T) {
	verifiedAt := time.Date(2024, 5, 2, 9, 0, 0, 0, time.UTC)
	tip := newTip("t1", time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC))
	tip.Status = models.StatusWin
	tip.VerifiedAt = &verifiedAt
	tip.LikedBy = []string{"u1"}
	tip.Likes = 1

	doc := TipToDocument(tip)
	assert.Equal(t, "win", doc.Status)
	assert.Equal(t, []string{}, doc.Tags)

	back := DocumentToTip(doc)
	assert.Equal(t, tip.ID, back.ID)
	assert.Equal(t, models.StatusWin, back.Status)
	assert.Equal(t, verifiedAt, *back.VerifiedAt)
	assert.Equal(t, []string{"u1"}, back.LikedBy)
}

func TestUpdateToSet(t *testing.T) {
	title := "New title"
	status := models.StatusVoid
	set := updateToSet(models.TipUpdate{Title: &title, Status: &status, Tags: []string{" a ", "A", "b"}})

	assert.Equal(t, "New title", set["title"])
	assert.Equal(t, "void", set["status"])
	assert.Equal(t, []string{"a", "b"}, set["tags"])
	assert.NotContains(t, set, "content")
}

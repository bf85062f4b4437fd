package actors

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/blanchy21/TipsterNew-sub000/internal/database"
	"github.com/blanchy21/TipsterNew-sub000/internal/models"
	"github.com/blanchy21/TipsterNew-sub000/internal/tips"
	"github.com/blanchy21/TipsterNew-sub000/internal/utils"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const requestTimeout = 5 * time.Second

type feedEvent struct {
	tips []*models.Tip
	err  error
}

// recordingListener keeps the last feed and history pushed per session.
type recordingListener struct {
	mu      sync.Mutex
	feeds   map[string]feedEvent
	history map[string][]*models.VerificationRecord
}

func newRecordingListener() *recordingListener {
	return &recordingListener{
		feeds:   make(map[string]feedEvent),
		history: make(map[string][]*models.VerificationRecord),
	}
}

func (l *recordingListener) FeedChanged(sessionID string, tips []*models.Tip, err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.feeds[sessionID] = feedEvent{tips: tips, err: err}
}

func (l *recordingListener) HistoryChanged(sessionID, tipID string, records []*models.VerificationRecord, err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.history[sessionID+"/"+tipID] = records
}

func (l *recordingListener) lastFeed(sessionID string) feedEvent {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.feeds[sessionID]
}

func (l *recordingListener) lastHistory(sessionID, tipID string) []*models.VerificationRecord {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.history[sessionID+"/"+tipID]
}

type feedFixture struct {
	system     *actor.ActorSystem
	store      *database.MemoryStore
	listener   *recordingListener
	supervisor *actor.PID
}

func newFeedFixture(t *testing.T) *feedFixture {
	t.Helper()
	return newSizedFeedFixture(t, 50)
}

func newSizedFeedFixture(t *testing.T, pageSize int) *feedFixture {
	t.Helper()
	store := database.NewMemoryStore()
	listener := newRecordingListener()
	system := actor.NewActorSystem()
	deps := FeedDeps{
		Store:      store,
		Engagement: tips.NewEngagement(store, nil),
		PageSize:   pageSize,
		Listener:   listener,
	}
	pid := system.Root.Spawn(actor.PropsFromProducer(func() actor.Actor {
		return NewFeedSupervisor(deps)
	}))
	t.Cleanup(func() { system.Root.Stop(pid) })
	return &feedFixture{system: system, store: store, listener: listener, supervisor: pid}
}

func (f *feedFixture) request(t *testing.T, msg interface{}) interface{} {
	t.Helper()
	result, err := f.system.Root.RequestFuture(f.supervisor, msg, requestTimeout).Result()
	require.NoError(t, err)
	return result
}

func (f *feedFixture) getFeed(t *testing.T, s Session) *FeedResponse {
	t.Helper()
	result := f.request(t, &GetFeedMsg{Session: s})
	resp, ok := result.(*FeedResponse)
	require.True(t, ok, "unexpected reply %T", result)
	return resp
}

func seedTip(t *testing.T, store *database.MemoryStore, authorID, sport string, age time.Duration) *models.Tip {
	t.Helper()
	tip, err := tips.BuildTip(models.Author{ID: authorID, Name: authorID}, tips.NewTipRequest{
		Sport: sport,
		Title: "Tip from " + authorID,
		Odds:  "2.5",
	}, time.Now().Add(-age))
	require.NoError(t, err)
	_, err = store.CreateTip(context.Background(), tip)
	require.NoError(t, err)
	return tip
}

func countID(tipList []*models.Tip, id string) int {
	n := 0
	for _, tip := range tipList {
		if tip.ID == id {
			n++
		}
	}
	return n
}

func TestFeedServesStoreSnapshot(t *testing.T) {
	f := newFeedFixture(t)
	older := seedTip(t, f.store, "alice", "Football", 2*time.Hour)
	newer := seedTip(t, f.store, "bob", "Tennis", time.Hour)

	resp := f.getFeed(t, Session{SessionID: "s1", UserID: "alice"})
	require.Empty(t, resp.Error)
	require.Len(t, resp.Tips, 2)
	assert.Equal(t, newer.ID, resp.Tips[0].ID)
	assert.Equal(t, older.ID, resp.Tips[1].ID)
	assert.Equal(t, 2, resp.Total)
}

func TestFeedRejectsUnknownSelector(t *testing.T) {
	f := newFeedFixture(t)
	msg := &GetFeedMsg{Session: Session{SessionID: "s1"}}
	msg.Config.View = "random"

	result := f.request(t, msg)
	appErr, ok := result.(*utils.AppError)
	require.True(t, ok)
	assert.Equal(t, utils.ErrValidation, appErr.Code)
}

func TestSupervisorRequiresSessionID(t *testing.T) {
	f := newFeedFixture(t)
	result := f.request(t, &GetFeedMsg{})
	appErr, ok := result.(*utils.AppError)
	require.True(t, ok)
	assert.Equal(t, utils.ErrValidation, appErr.Code)
}

func TestPublishedTipAppearsExactlyOnce(t *testing.T) {
	f := newFeedFixture(t)
	seedTip(t, f.store, "bob", "Tennis", time.Hour)
	session := Session{SessionID: "s1", UserID: "alice"}
	f.getFeed(t, session)

	result := f.request(t, &PublishTipMsg{
		Session: session,
		Author:  models.Author{Name: "Alice"},
		Request: tips.NewTipRequest{Sport: "Football", Title: "Home win", Odds: "1.8"},
	})
	created, ok := result.(*models.Tip)
	require.True(t, ok, "unexpected reply %T", result)
	assert.Equal(t, "alice", created.Author.ID)
	assert.Equal(t, models.StatusPending, created.Status)

	assert.Eventually(t, func() bool {
		resp := f.getFeed(t, session)
		return resp.Total == 2 && countID(resp.Tips, created.ID) == 1 && resp.Tips[0].ID == created.ID
	}, time.Second, 10*time.Millisecond)

	stored, err := f.store.GetTip(context.Background(), created.ID)
	require.NoError(t, err)
	assert.Equal(t, "Home win", stored.Title)
}

func TestPublishFailureRemovesLocalCopy(t *testing.T) {
	f := newFeedFixture(t)
	session := Session{SessionID: "s1", UserID: "alice"}
	f.getFeed(t, session)

	f.store.SetHook(func(op string) error {
		if op == database.OpCreateTip {
			return errors.New("write refused")
		}
		return nil
	})

	result := f.request(t, &PublishTipMsg{
		Session: session,
		Request: tips.NewTipRequest{Sport: "Football", Title: "Home win"},
	})
	appErr, ok := result.(*utils.AppError)
	require.True(t, ok, "unexpected reply %T", result)
	assert.Equal(t, utils.ErrStoreUnavailable, appErr.Code)

	resp := f.getFeed(t, session)
	assert.Empty(t, resp.Tips)
}

func TestPublishValidation(t *testing.T) {
	f := newFeedFixture(t)

	result := f.request(t, &PublishTipMsg{
		Session: Session{SessionID: "s1"},
		Request: tips.NewTipRequest{Sport: "Football", Title: "Home win"},
	})
	appErr, ok := result.(*utils.AppError)
	require.True(t, ok)
	assert.Equal(t, utils.ErrUnauthorized, appErr.Code)
}

func TestLikeCommitsToStore(t *testing.T) {
	f := newFeedFixture(t)
	tip := seedTip(t, f.store, "bob", "Tennis", time.Hour)
	session := Session{SessionID: "s1", UserID: "alice"}
	f.getFeed(t, session)

	result := f.request(t, &ToggleLikeMsg{Session: session, TipID: tip.ID})
	like, ok := result.(*LikeResponse)
	require.True(t, ok, "unexpected reply %T", result)
	assert.True(t, like.Liked)
	assert.False(t, like.Demo)

	stored, err := f.store.GetTip(context.Background(), tip.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, stored.Likes)
	assert.Equal(t, []string{"alice"}, stored.LikedBy)

	result = f.request(t, &ToggleLikeMsg{Session: session, TipID: tip.ID})
	like = result.(*LikeResponse)
	assert.False(t, like.Liked)

	stored, err = f.store.GetTip(context.Background(), tip.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, stored.Likes)
	assert.Empty(t, stored.LikedBy)
}

func TestLikeRollsBackWhenStoreRejects(t *testing.T) {
	f := newFeedFixture(t)
	tip := seedTip(t, f.store, "bob", "Tennis", time.Hour)
	session := Session{SessionID: "s1", UserID: "alice"}
	f.getFeed(t, session)

	f.store.SetHook(func(op string) error {
		if op == database.OpSetLike {
			return errors.New("write refused")
		}
		return nil
	})

	result := f.request(t, &ToggleLikeMsg{Session: session, TipID: tip.ID})
	like, ok := result.(*LikeResponse)
	require.True(t, ok, "unexpected reply %T", result)
	assert.True(t, like.RolledBack)
	assert.False(t, like.Liked)
	assert.Equal(t, 0, like.Tip.Likes)

	resp := f.getFeed(t, session)
	require.Len(t, resp.Tips, 1)
	assert.Equal(t, 0, resp.Tips[0].Likes)
	assert.Empty(t, resp.Tips[0].LikedBy)
	assert.Empty(t, resp.Provisional)
}

func TestLikeBeforeFirstSnapshot(t *testing.T) {
	f := newFeedFixture(t)
	tip := seedTip(t, f.store, "bob", "Tennis", time.Hour)

	release := make(chan struct{})
	f.store.SetHook(func(op string) error {
		if op == database.OpSubscribeTips {
			<-release
		}
		return nil
	})

	// The like is the session's first message and lands before any snapshot.
	session := Session{SessionID: "s1", UserID: "alice"}
	future := f.system.Root.RequestFuture(f.supervisor, &ToggleLikeMsg{Session: session, TipID: tip.ID}, requestTimeout)
	time.Sleep(50 * time.Millisecond)
	close(release)

	result, err := future.Result()
	require.NoError(t, err)
	like, ok := result.(*LikeResponse)
	require.True(t, ok, "unexpected reply %T", result)
	assert.True(t, like.Liked)
	assert.Equal(t, 1, like.Tip.Likes)

	stored, err := f.store.GetTip(context.Background(), tip.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"alice"}, stored.LikedBy)
}

func TestLikeTipOutsideWindow(t *testing.T) {
	f := newSizedFeedFixture(t, 1)
	older := seedTip(t, f.store, "bob", "Tennis", 2*time.Hour)
	newer := seedTip(t, f.store, "bob", "Golf", time.Hour)
	session := Session{SessionID: "s1", UserID: "alice"}

	resp := f.getFeed(t, session)
	require.Len(t, resp.Tips, 1)
	assert.Equal(t, newer.ID, resp.Tips[0].ID)

	result := f.request(t, &ToggleLikeMsg{Session: session, TipID: older.ID})
	like, ok := result.(*LikeResponse)
	require.True(t, ok, "unexpected reply %T", result)
	assert.True(t, like.Liked)
	assert.Equal(t, older.ID, like.Tip.ID)
	assert.Equal(t, 1, like.Tip.Likes)

	stored, err := f.store.GetTip(context.Background(), older.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, stored.Likes)

	// The stored tip decides the direction of the next toggle.
	like = f.request(t, &ToggleLikeMsg{Session: session, TipID: older.ID}).(*LikeResponse)
	assert.False(t, like.Liked)
	stored, err = f.store.GetTip(context.Background(), older.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, stored.Likes)

	resp = f.getFeed(t, session)
	require.Len(t, resp.Tips, 1)
	assert.Equal(t, newer.ID, resp.Tips[0].ID)
}

func TestLikeOutsideWindowRejected(t *testing.T) {
	f := newSizedFeedFixture(t, 1)
	older := seedTip(t, f.store, "bob", "Tennis", 2*time.Hour)
	seedTip(t, f.store, "bob", "Golf", time.Hour)
	session := Session{SessionID: "s1", UserID: "alice"}
	f.getFeed(t, session)

	f.store.SetHook(func(op string) error {
		if op == database.OpSetLike {
			return errors.New("write refused")
		}
		return nil
	})

	result := f.request(t, &ToggleLikeMsg{Session: session, TipID: older.ID})
	like, ok := result.(*LikeResponse)
	require.True(t, ok, "unexpected reply %T", result)
	assert.True(t, like.RolledBack)
	assert.False(t, like.Liked)
	assert.Equal(t, 0, like.Tip.Likes)
}

func TestAnonymousLikeIsLocalOnly(t *testing.T) {
	f := newFeedFixture(t)
	tip := seedTip(t, f.store, "bob", "Tennis", time.Hour)
	session := Session{SessionID: "anon"}
	f.getFeed(t, session)

	result := f.request(t, &ToggleLikeMsg{Session: session, TipID: tip.ID})
	like, ok := result.(*LikeResponse)
	require.True(t, ok, "unexpected reply %T", result)
	assert.True(t, like.Demo)
	assert.True(t, like.Liked)
	assert.Equal(t, 1, like.Tip.Likes)

	stored, err := f.store.GetTip(context.Background(), tip.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, stored.Likes)
}

func TestLikeUnknownTip(t *testing.T) {
	f := newFeedFixture(t)
	session := Session{SessionID: "s1", UserID: "alice"}
	f.getFeed(t, session)

	result := f.request(t, &ToggleLikeMsg{Session: session, TipID: "missing"})
	appErr, ok := result.(*utils.AppError)
	require.True(t, ok)
	assert.Equal(t, utils.ErrNotFound, appErr.Code)
}

func TestFeedFailsClosedAndRecoversOnRead(t *testing.T) {
	f := newFeedFixture(t)
	seedTip(t, f.store, "bob", "Tennis", time.Hour)
	session := Session{SessionID: "s1", UserID: "alice"}
	require.Len(t, f.getFeed(t, session).Tips, 1)

	f.store.FailTipSubscriptions(errors.New("connection reset"))

	assert.Eventually(t, func() bool {
		ev := f.listener.lastFeed("s1")
		return ev.err != nil && len(ev.tips) == 0
	}, time.Second, 10*time.Millisecond)
	assert.Equal(t, utils.ErrStoreUnavailable, utils.ErrorCode(f.listener.lastFeed("s1").err))

	// The next read resubscribes.
	resp := f.getFeed(t, session)
	assert.Empty(t, resp.Error)
	assert.Len(t, resp.Tips, 1)
}

func TestFeedReportsSubscribeFailure(t *testing.T) {
	f := newFeedFixture(t)
	f.store.SetHook(func(op string) error {
		if op == database.OpSubscribeTips {
			return errors.New("no route to host")
		}
		return nil
	})

	resp := f.getFeed(t, Session{SessionID: "s1", UserID: "alice"})
	assert.NotEmpty(t, resp.Error)
	assert.Empty(t, resp.Tips)
}

func TestUserChangeResubscribes(t *testing.T) {
	f := newFeedFixture(t)
	tip := seedTip(t, f.store, "bob", "Tennis", time.Hour)
	f.getFeed(t, Session{SessionID: "s1"})

	// An anonymous like is discarded once a user signs in.
	f.request(t, &ToggleLikeMsg{Session: Session{SessionID: "s1"}, TipID: tip.ID})

	resp := f.getFeed(t, Session{SessionID: "s1", UserID: "alice"})
	require.Len(t, resp.Tips, 1)
	assert.Equal(t, 0, resp.Tips[0].Likes)

	assert.Eventually(t, func() bool {
		return f.store.TipSubscriberCount() == 1
	}, time.Second, 10*time.Millisecond)
}

func TestSessionWithoutCredentialsKeepsUser(t *testing.T) {
	f := newFeedFixture(t)
	seedTip(t, f.store, "bob", "Tennis", time.Hour)
	f.getFeed(t, Session{SessionID: "s1", UserID: "alice"})

	// A resubscribe would now fail, so an unchanged feed shows the user was kept.
	f.store.SetHook(func(op string) error {
		if op == database.OpSubscribeTips {
			return errors.New("no route to host")
		}
		return nil
	})

	resp := f.getFeed(t, Session{SessionID: "s1", KeepUser: true})
	assert.Empty(t, resp.Error)
	assert.Len(t, resp.Tips, 1)
	assert.Equal(t, 1, f.store.TipSubscriberCount())
}

func TestDeleteTip(t *testing.T) {
	f := newFeedFixture(t)
	tip := seedTip(t, f.store, "alice", "Tennis", time.Hour)
	f.getFeed(t, Session{SessionID: "s1", UserID: "alice"})

	result := f.request(t, &DeleteTipMsg{Session: Session{SessionID: "s2", UserID: "mallory"}, TipID: tip.ID})
	appErr, ok := result.(*utils.AppError)
	require.True(t, ok)
	assert.Equal(t, utils.ErrForbidden, appErr.Code)

	result = f.request(t, &DeleteTipMsg{Session: Session{SessionID: "s1", UserID: "alice"}, TipID: tip.ID})
	status, ok := result.(*models.StatusResponse)
	require.True(t, ok, "unexpected reply %T", result)
	assert.True(t, status.Success)
	assert.Empty(t, f.getFeed(t, Session{SessionID: "s1", UserID: "alice"}).Tips)

	_, err := f.store.GetTip(context.Background(), tip.ID)
	assert.True(t, utils.IsErrorCode(err, utils.ErrNotFound))
}

func TestViewIncrementsCounter(t *testing.T) {
	f := newFeedFixture(t)
	tip := seedTip(t, f.store, "bob", "Tennis", time.Hour)

	f.request(t, &ViewTipMsg{Session: Session{SessionID: "s1"}, TipID: tip.ID})

	assert.Eventually(t, func() bool {
		stored, err := f.store.GetTip(context.Background(), tip.ID)
		return err == nil && stored.Views == 1
	}, time.Second, 10*time.Millisecond)
}

func TestEndSessionReleasesSubscription(t *testing.T) {
	f := newFeedFixture(t)
	f.getFeed(t, Session{SessionID: "s1"})
	f.getFeed(t, Session{SessionID: "s2"})
	assert.Equal(t, 2, f.request(t, &GetSessionCountMsg{}))

	f.request(t, &EndSessionMsg{SessionID: "s1"})
	assert.Equal(t, 1, f.request(t, &GetSessionCountMsg{}))

	assert.Eventually(t, func() bool {
		return f.store.TipSubscriberCount() == 1
	}, time.Second, 10*time.Millisecond)
}

func TestWatchVerificationHistory(t *testing.T) {
	f := newFeedFixture(t)
	tip := seedTip(t, f.store, "bob", "Horse Racing", time.Hour)
	session := Session{SessionID: "s1"}

	f.request(t, &WatchVerificationsMsg{Session: session, TipID: tip.ID})

	verifier := tips.NewVerifier(f.store, models.NewSportRules(models.DefaultPlacingSports), nil)
	_, _, err := verifier.Verify(context.Background(), tips.VerifyRequest{TipID: tip.ID, Status: "place", ModeratorID: "mod"})
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		records := f.listener.lastHistory("s1", tip.ID)
		return len(records) == 1 && records[0].Status == models.StatusPlace
	}, time.Second, 10*time.Millisecond)
}

func newVerificationActor(t *testing.T, store database.Store) (*actor.ActorSystem, *actor.PID) {
	t.Helper()
	system := actor.NewActorSystem()
	verifier := tips.NewVerifier(store, models.NewSportRules(models.DefaultPlacingSports), nil)
	pid := system.Root.Spawn(actor.PropsFromProducer(func() actor.Actor {
		return NewVerificationActor(store, verifier, nil, utils.NewMetricsCollector())
	}))
	t.Cleanup(func() { system.Root.Stop(pid) })
	return system, pid
}

func TestVerificationActor(t *testing.T) {
	store := database.NewMemoryStore()
	system, pid := newVerificationActor(t, store)
	race := seedTip(t, store, "bob", "Horse Racing", time.Hour)
	match := seedTip(t, store, "bob", "Football", time.Hour)
	logs := logtest.NewLocal(utils.Log.Logger)

	result, err := system.Root.RequestFuture(pid, &VerifyTipMsg{TipID: race.ID, Status: "place", ModeratorID: "mod"}, requestTimeout).Result()
	require.NoError(t, err)
	verified, ok := result.(*VerifyResponse)
	require.True(t, ok, "unexpected reply %T", result)
	assert.Equal(t, models.StatusPlace, verified.Tip.Status)
	assert.Equal(t, "mod", verified.Record.ModeratorID)

	verifiedLines := 0
	for _, entry := range logs.AllEntries() {
		if entry.Message == "Tip verified" {
			verifiedLines++
		}
	}
	assert.Equal(t, 1, verifiedLines, "one log line per verification")

	result, err = system.Root.RequestFuture(pid, &VerifyTipMsg{TipID: match.ID, Status: "place", ModeratorID: "mod"}, requestTimeout).Result()
	require.NoError(t, err)
	appErr, ok := result.(*utils.AppError)
	require.True(t, ok)
	assert.Equal(t, utils.ErrInvalidTransition, appErr.Code)

	result, err = system.Root.RequestFuture(pid, &ListVerificationsMsg{TipID: race.ID}, requestTimeout).Result()
	require.NoError(t, err)
	records, ok := result.([]*models.VerificationRecord)
	require.True(t, ok)
	assert.Len(t, records, 1)
}

func TestVerificationActorRepairsOnDemand(t *testing.T) {
	store := database.NewMemoryStore()
	system, pid := newVerificationActor(t, store)
	tip := seedTip(t, store, "bob", "Football", time.Hour)

	_, err := store.CreateVerification(context.Background(), &models.VerificationRecord{
		TipID:       tip.ID,
		Status:      models.StatusWin,
		ModeratorID: "mod",
		CreatedAt:   time.Now(),
	})
	require.NoError(t, err)

	// The startup repair may already have applied the record.
	result, err := system.Root.RequestFuture(pid, &RepairVerificationsMsg{}, requestTimeout).Result()
	require.NoError(t, err)
	_, ok := result.(int)
	assert.True(t, ok, "unexpected reply %T", result)

	stored, err := store.GetTip(context.Background(), tip.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusWin, stored.Status)
}

func TestCommentActor(t *testing.T) {
	store := database.NewMemoryStore()
	system := actor.NewActorSystem()
	service := tips.NewCommentService(store, tips.NewEngagement(store, nil), nil)
	pid := system.Root.Spawn(actor.PropsFromProducer(func() actor.Actor {
		return NewCommentActor(service, nil)
	}))
	t.Cleanup(func() { system.Root.Stop(pid) })
	tip := seedTip(t, store, "bob", "Tennis", time.Hour)

	result, err := system.Root.RequestFuture(pid, &CreateCommentMsg{TipID: tip.ID, AuthorID: "alice", Content: "Agreed"}, requestTimeout).Result()
	require.NoError(t, err)
	comment, ok := result.(*models.Comment)
	require.True(t, ok, "unexpected reply %T", result)
	assert.Equal(t, "Agreed", comment.Content)

	result, err = system.Root.RequestFuture(pid, &GetCommentsForTipMsg{TipID: tip.ID}, requestTimeout).Result()
	require.NoError(t, err)
	assert.Len(t, result, 1)

	result, err = system.Root.RequestFuture(pid, &DeleteCommentMsg{CommentID: comment.ID, UserID: "bob"}, requestTimeout).Result()
	require.NoError(t, err)
	appErr, ok := result.(*utils.AppError)
	require.True(t, ok)
	assert.Equal(t, utils.ErrForbidden, appErr.Code)

	result, err = system.Root.RequestFuture(pid, &DeleteCommentMsg{CommentID: comment.ID, UserID: "alice"}, requestTimeout).Result()
	require.NoError(t, err)
	_, ok = result.(*models.StatusResponse)
	assert.True(t, ok)

	stored, err := store.GetTip(context.Background(), tip.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, stored.Comments)
}

package actors

import (
	stdctx "context"
	"time"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/blanchy21/TipsterNew-sub000/internal/database"
	"github.com/blanchy21/TipsterNew-sub000/internal/feed"
	"github.com/blanchy21/TipsterNew-sub000/internal/models"
	"github.com/blanchy21/TipsterNew-sub000/internal/tips"
	"github.com/blanchy21/TipsterNew-sub000/internal/utils"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const (
	// DemoUserID owns likes toggled by anonymous sessions. They never reach the store.
	DemoUserID = "demo-user"

	storeTimeout = 10 * time.Second
)

type pendingFeed struct {
	replyTo *actor.PID
	config  feed.Config
}

type pendingLike struct {
	replyTo *actor.PID
	msg     *ToggleLikeMsg
}

type historyWatch struct {
	generation int
	cancel     stdctx.CancelFunc
}

// FeedActor owns one session's feed. Its mailbox is the only writer of the
// feed state: store snapshots, optimistic likes, local prepends and rollbacks
// all arrive as messages, so they apply in a single order.
type FeedActor struct {
	sessionID string
	userID    string
	deps      FeedDeps
	state     *feed.State

	// generation is bumped on every resubscribe; snapshots from an older
	// subscription are discarded.
	generation int
	loaded     bool
	cancelSub  stdctx.CancelFunc
	waiting    []pendingFeed
	likes      []pendingLike

	history    map[string]*historyWatch
	historyGen int
}

// NewFeedActor creates the actor for a session opened by s.
func NewFeedActor(s Session, deps FeedDeps) actor.Actor {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	return &FeedActor{
		sessionID: s.SessionID,
		userID:    s.UserID,
		deps:      deps,
		state:     feed.NewState(deps.PageSize),
		history:   make(map[string]*historyWatch),
	}
}

func (a *FeedActor) Receive(context actor.Context) {
	if msg, ok := context.Message().(sessionMessage); ok && !msg.session().KeepUser {
		a.ensureUser(context, msg.session().UserID)
	}

	switch msg := context.Message().(type) {
	case *actor.Started:
		a.log().Debug("Feed actor started")
		a.resubscribe(context)

	case *actor.Stopping:
		a.unsubscribe()
		for tipID, w := range a.history {
			w.cancel()
			delete(a.history, tipID)
		}

	case *actor.Stopped:
		a.log().Debug("Feed actor stopped")

	case *GetFeedMsg:
		a.handleGetFeed(context, msg)

	case *PublishTipMsg:
		a.handlePublish(context, msg)

	case *ToggleLikeMsg:
		// Until the first snapshot lands the window cannot tell which tips it holds.
		if !a.loaded {
			a.likes = append(a.likes, pendingLike{replyTo: context.Sender(), msg: msg})
			return
		}
		a.handleToggleLike(context, msg, context.Sender())

	case *ViewTipMsg:
		a.handleView(context, msg)

	case *DeleteTipMsg:
		a.handleDelete(context, msg)

	case *WatchVerificationsMsg:
		a.handleWatch(context, msg)

	case *UnwatchVerificationsMsg:
		if w, ok := a.history[msg.TipID]; ok {
			w.cancel()
			delete(a.history, msg.TipID)
		}
		context.Respond(&models.StatusResponse{Success: true})

	case *snapshotMsg:
		a.handleSnapshot(context, msg)

	case *createResultMsg:
		a.handleCreateResult(context, msg)

	case *likeResultMsg:
		a.handleLikeResult(context, msg)

	case *deleteResultMsg:
		a.handleDeleteResult(context, msg)

	case *historyMsg:
		a.handleHistory(msg)
	}
}

// ensureUser resubscribes when the session's authenticated user changes.
// Everything visible belongs to the previous identity and is discarded.
func (a *FeedActor) ensureUser(context actor.Context, userID string) {
	if userID == a.userID {
		return
	}
	a.log().WithField("newUserID", userID).Info("Session user changed, resubscribing feed")
	a.userID = userID
	a.resubscribe(context)
}

func (a *FeedActor) resubscribe(context actor.Context) {
	a.unsubscribe()
	a.state.Reset()
	a.loaded = false
	a.generation++
	a.notify()

	subCtx, cancel := stdctx.WithCancel(stdctx.Background())
	a.cancelSub = cancel

	generation := a.generation
	self := context.Self()
	root := context.ActorSystem().Root
	store := a.deps.Store
	query := database.TipQuery{Limit: a.state.PageSize()}

	go func() {
		sub, err := store.SubscribeTips(subCtx, query)
		if err != nil {
			root.Send(self, &snapshotMsg{generation: generation, err: utils.AsStoreError("subscribe tips", err)})
			return
		}
		defer sub.Close()
		for snap := range sub.Snapshots() {
			root.Send(self, &snapshotMsg{
				generation: generation,
				tips:       snap.Items,
				err:        utils.AsStoreError("tip subscription", snap.Err),
			})
		}
	}()
}

func (a *FeedActor) unsubscribe() {
	if a.cancelSub != nil {
		a.cancelSub()
		a.cancelSub = nil
	}
}

func (a *FeedActor) handleSnapshot(context actor.Context, msg *snapshotMsg) {
	if msg.generation != a.generation {
		return
	}
	a.loaded = true

	if msg.err != nil {
		// Fail closed: nothing stays visible once the subscription breaks.
		a.unsubscribe()
		a.state.Fail(msg.err)
		a.record("feed_subscription_failed")
		a.log().WithError(msg.err).Warn("Feed subscription failed")
	} else {
		a.state.ApplySnapshot(msg.tips)
		a.record("feed_snapshot")
	}

	for _, p := range a.waiting {
		reply(context, p.replyTo, a.feedResponse(p.config))
	}
	a.waiting = nil
	a.notify()

	likes := a.likes
	a.likes = nil
	for _, p := range likes {
		a.handleToggleLike(context, p.msg, p.replyTo)
	}
}

func (a *FeedActor) handleGetFeed(context actor.Context, msg *GetFeedMsg) {
	if err := msg.Config.Validate(); err != nil {
		context.Respond(utils.ToAppError(err))
		return
	}
	// A failed feed retries its subscription on the next read.
	if a.loaded && a.state.Err() != nil && a.cancelSub == nil {
		a.resubscribe(context)
	}
	if !a.loaded {
		a.waiting = append(a.waiting, pendingFeed{replyTo: context.Sender(), config: msg.Config})
		return
	}
	context.Respond(a.feedResponse(msg.Config))
}

func (a *FeedActor) feedResponse(cfg feed.Config) *FeedResponse {
	if err := a.state.Err(); err != nil {
		return &FeedResponse{Tips: []*models.Tip{}, Error: err.Error()}
	}
	all := a.state.Tips()
	visible := feed.DeriveFeed(all, cfg)

	resp := &FeedResponse{Tips: visible, Total: len(all)}
	for _, tip := range visible {
		if a.state.IsProvisional(tip.ID) {
			resp.Provisional = append(resp.Provisional, tip.ID)
		}
	}
	return resp
}

func (a *FeedActor) handlePublish(context actor.Context, msg *PublishTipMsg) {
	author := msg.Author
	author.ID = msg.UserID

	tip, err := tips.BuildTip(author, msg.Request, a.deps.Now())
	if err != nil {
		context.Respond(utils.ToAppError(err))
		return
	}

	// The author sees the tip before the store confirms it.
	a.state.PrependLocal(tip)
	a.notify()

	replyTo := context.Sender()
	self := context.Self()
	root := context.ActorSystem().Root
	store := a.deps.Store
	stored := tip.Clone()

	go func() {
		ctx, cancel := stdctx.WithTimeout(stdctx.Background(), storeTimeout)
		defer cancel()
		_, err := store.CreateTip(ctx, stored)
		root.Send(self, &createResultMsg{tip: stored, err: utils.AsStoreError("create tip", err), replyTo: replyTo})
	}()
}

func (a *FeedActor) handleCreateResult(context actor.Context, msg *createResultMsg) {
	if msg.err != nil {
		a.state.RemoveLocal(msg.tip.ID)
		a.notify()
		a.record("publish_failed")
		a.log().WithError(msg.err).WithField("tipID", msg.tip.ID).Warn("Tip create failed, removed local copy")
		reply(context, msg.replyTo, utils.ToAppError(msg.err))
		return
	}

	a.record("tip_published")
	if a.deps.OnTipsChanged != nil {
		a.deps.OnTipsChanged(msg.tip.Author.ID)
	}
	reply(context, msg.replyTo, msg.tip)
}

func (a *FeedActor) handleToggleLike(context actor.Context, msg *ToggleLikeMsg, replyTo *actor.PID) {
	if msg.UserID == "" {
		wasLiked, err := a.state.ToggleLike(msg.TipID, DemoUserID, "")
		if err != nil {
			reply(context, replyTo, utils.ToAppError(err))
			return
		}
		a.notify()
		tip, _ := a.state.Get(msg.TipID)
		reply(context, replyTo, &LikeResponse{Tip: tip, Liked: !wasLiked, Demo: true})
		return
	}

	if _, ok := a.state.Get(msg.TipID); !ok {
		a.likeStoredTip(context, msg, replyTo)
		return
	}

	mutationID := uuid.New().String()
	wasLiked, err := a.state.ToggleLike(msg.TipID, msg.UserID, mutationID)
	if err != nil {
		reply(context, replyTo, utils.ToAppError(err))
		return
	}
	a.notify()

	liked := !wasLiked
	self := context.Self()
	root := context.ActorSystem().Root
	engagement := a.deps.Engagement
	tipID, userID := msg.TipID, msg.UserID

	go func() {
		ctx, cancel := stdctx.WithTimeout(stdctx.Background(), storeTimeout)
		defer cancel()
		err := engagement.CommitLike(ctx, tipID, userID, liked)
		root.Send(self, &likeResultMsg{
			tipID:      tipID,
			mutationID: mutationID,
			userID:     userID,
			liked:      liked,
			err:        err,
			replyTo:    replyTo,
		})
	}()
}

// likeStoredTip toggles a like on a tip the window does not hold. The stored
// tip decides the direction; nothing local changes.
func (a *FeedActor) likeStoredTip(context actor.Context, msg *ToggleLikeMsg, replyTo *actor.PID) {
	self := context.Self()
	root := context.ActorSystem().Root
	store := a.deps.Store
	engagement := a.deps.Engagement
	tipID, userID := msg.TipID, msg.UserID

	go func() {
		ctx, cancel := stdctx.WithTimeout(stdctx.Background(), storeTimeout)
		defer cancel()
		tip, err := store.GetTip(ctx, tipID)
		if err != nil {
			root.Send(self, &likeResultMsg{tipID: tipID, userID: userID, lookupErr: utils.AsStoreError("get tip", err), replyTo: replyTo})
			return
		}
		liked := !tip.IsLikedBy(userID)
		err = engagement.CommitLike(ctx, tipID, userID, liked)
		root.Send(self, &likeResultMsg{
			tipID:   tipID,
			userID:  userID,
			liked:   liked,
			stored:  tip,
			err:     err,
			replyTo: replyTo,
		})
	}()
}

// handleLikeResult answers a like. A rejected write is not an error for the
// caller: the reply carries the reverted tip with RolledBack set.
func (a *FeedActor) handleLikeResult(context actor.Context, msg *likeResultMsg) {
	if msg.lookupErr != nil {
		reply(context, msg.replyTo, utils.ToAppError(msg.lookupErr))
		return
	}

	if msg.mutationID == "" {
		tip := msg.stored
		if msg.err != nil {
			a.rejectedLike(msg)
			reply(context, msg.replyTo, &LikeResponse{Tip: tip, Liked: tip.IsLikedBy(msg.userID), RolledBack: true})
			return
		}
		if msg.liked {
			tip.AddLike(msg.userID)
		} else {
			tip.RemoveLike(msg.userID)
		}
		reply(context, msg.replyTo, &LikeResponse{Tip: tip, Liked: msg.liked})
		return
	}

	if msg.err != nil {
		if a.state.RollbackMutation(msg.tipID, msg.mutationID) {
			a.notify()
		}
		a.rejectedLike(msg)
		liked := !msg.liked
		tip, ok := a.state.Get(msg.tipID)
		if ok {
			liked = tip.IsLikedBy(msg.userID)
		}
		reply(context, msg.replyTo, &LikeResponse{Tip: tip, Liked: liked, RolledBack: true})
		return
	}

	if a.state.ConfirmMutation(msg.tipID, msg.mutationID) {
		a.notify()
	}
	tip, _ := a.state.Get(msg.tipID)
	reply(context, msg.replyTo, &LikeResponse{Tip: tip, Liked: msg.liked})
}

func (a *FeedActor) rejectedLike(msg *likeResultMsg) {
	a.record("like_rolled_back")
	a.log().WithError(msg.err).WithField("tipID", msg.tipID).Warn("Like rejected by store, rolled back")
}

func (a *FeedActor) handleView(context actor.Context, msg *ViewTipMsg) {
	engagement := a.deps.Engagement
	tipID := msg.TipID
	go func() {
		ctx, cancel := stdctx.WithTimeout(stdctx.Background(), storeTimeout)
		defer cancel()
		engagement.IncrementViews(ctx, tipID)
	}()
	context.Respond(&models.StatusResponse{Success: true})
}

func (a *FeedActor) handleDelete(context actor.Context, msg *DeleteTipMsg) {
	if msg.UserID == "" {
		context.Respond(utils.NewUnauthorizedError("sign in to delete tips"))
		return
	}

	replyTo := context.Sender()
	self := context.Self()
	root := context.ActorSystem().Root
	store := a.deps.Store
	tipID, userID := msg.TipID, msg.UserID

	go func() {
		ctx, cancel := stdctx.WithTimeout(stdctx.Background(), storeTimeout)
		defer cancel()
		root.Send(self, &deleteResultMsg{tipID: tipID, err: deleteOwnTip(ctx, store, tipID, userID), replyTo: replyTo})
	}()
}

func deleteOwnTip(ctx stdctx.Context, store database.Store, tipID, userID string) error {
	tip, err := store.GetTip(ctx, tipID)
	if err != nil {
		return utils.AsStoreError("get tip", err)
	}
	if tip.Author.ID != userID {
		return utils.NewAppError(utils.ErrForbidden, "only the author can delete this tip", nil)
	}
	return utils.AsStoreError("delete tip", store.DeleteTip(ctx, tipID))
}

func (a *FeedActor) handleDeleteResult(context actor.Context, msg *deleteResultMsg) {
	if msg.err != nil {
		reply(context, msg.replyTo, utils.ToAppError(msg.err))
		return
	}
	a.state.Remove(msg.tipID)
	a.notify()
	if a.deps.OnTipsChanged != nil {
		a.deps.OnTipsChanged(a.userID)
	}
	reply(context, msg.replyTo, &models.StatusResponse{Success: true, Message: "tip deleted"})
}

func (a *FeedActor) handleWatch(context actor.Context, msg *WatchVerificationsMsg) {
	if w, ok := a.history[msg.TipID]; ok {
		w.cancel()
	}
	a.historyGen++
	ctx, cancel := stdctx.WithCancel(stdctx.Background())
	a.history[msg.TipID] = &historyWatch{generation: a.historyGen, cancel: cancel}

	generation := a.historyGen
	self := context.Self()
	root := context.ActorSystem().Root
	store := a.deps.Store
	tipID := msg.TipID

	go func() {
		sub, err := store.SubscribeVerifications(ctx, tipID)
		if err != nil {
			root.Send(self, &historyMsg{tipID: tipID, generation: generation, err: utils.AsStoreError("subscribe verifications", err)})
			return
		}
		defer sub.Close()
		for snap := range sub.Snapshots() {
			root.Send(self, &historyMsg{
				tipID:      tipID,
				generation: generation,
				records:    snap.Items,
				err:        utils.AsStoreError("verification subscription", snap.Err),
			})
		}
	}()
	context.Respond(&models.StatusResponse{Success: true})
}

func (a *FeedActor) handleHistory(msg *historyMsg) {
	w, ok := a.history[msg.tipID]
	if !ok || w.generation != msg.generation {
		return
	}
	records := msg.records
	if msg.err != nil {
		w.cancel()
		delete(a.history, msg.tipID)
		records = nil
	}
	if a.deps.Listener != nil {
		a.deps.Listener.HistoryChanged(a.sessionID, msg.tipID, records, msg.err)
	}
}

func (a *FeedActor) notify() {
	if a.deps.Listener != nil {
		a.deps.Listener.FeedChanged(a.sessionID, a.state.Tips(), a.state.Err())
	}
}

func (a *FeedActor) record(event string) {
	if a.deps.Metrics != nil {
		a.deps.Metrics.RecordEvent(event)
	}
}

func (a *FeedActor) log() *logrus.Entry {
	return utils.Log.WithFields(logrus.Fields{
		"sessionID": a.sessionID,
		"userID":    a.userID,
	})
}

// reply answers a request whose sender was captured before the actor moved on.
func reply(context actor.Context, to *actor.PID, msg interface{}) {
	if to != nil {
		context.Send(to, msg)
	}
}

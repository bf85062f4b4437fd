package database

import (
	"context"
	"sort"
	"sync"

	"github.com/blanchy21/TipsterNew-sub000/internal/models"
	"github.com/blanchy21/TipsterNew-sub000/internal/utils"
	"github.com/google/uuid"
)

// Operation names passed to the MemoryStore hook.
const (
	OpCreateTip          = "CreateTip"
	OpGetTip             = "GetTip"
	OpUpdateTip          = "UpdateTip"
	OpDeleteTip          = "DeleteTip"
	OpListTips           = "ListTips"
	OpSubscribeTips      = "SubscribeTips"
	OpIncrementTipField  = "IncrementTipField"
	OpDecrementTipField  = "DecrementTipFieldClamped"
	OpSetLike            = "SetLike"
	OpApplyVerification  = "ApplyVerification"
	OpCreateVerification = "CreateVerification"
	OpDeleteVerification = "DeleteVerification"
	OpListVerifications  = "ListVerifications"
	OpGetUser            = "GetUser"
	OpListUsers          = "ListUsers"
	OpCreateComment      = "CreateComment"
	OpDeleteComment      = "DeleteComment"
)

// MemoryStore is an in-process Store. Subscribers receive a fresh snapshot
// after every write, in write order.
type MemoryStore struct {
	// notifyMu serializes write+publish so snapshots arrive in write order.
	notifyMu sync.Mutex
	mu       sync.RWMutex

	tips          map[string]*models.Tip
	verifications map[string]*models.VerificationRecord
	users         map[string]*models.User
	comments      map[string]*models.Comment

	tipSubs   map[int]*tipSubscriber
	verSubs   map[int]*verificationSubscriber
	nextSubID int

	hook func(op string) error
}

var _ Store = (*MemoryStore)(nil)

type tipSubscriber struct {
	query TipQuery
	feed  *feed[*models.Tip]
}

type verificationSubscriber struct {
	tipID string
	feed  *feed[*models.VerificationRecord]
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		tips:          make(map[string]*models.Tip),
		verifications: make(map[string]*models.VerificationRecord),
		users:         make(map[string]*models.User),
		comments:      make(map[string]*models.Comment),
		tipSubs:       make(map[int]*tipSubscriber),
		verSubs:       make(map[int]*verificationSubscriber),
	}
}

// SetHook installs a function called before every operation. A non-nil
// return fails the operation; the hook may also block to hold a call in flight.
func (s *MemoryStore) SetHook(hook func(op string) error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hook = hook
}

func (s *MemoryStore) before(op string) error {
	s.mu.RLock()
	hook := s.hook
	s.mu.RUnlock()
	if hook == nil {
		return nil
	}
	return hook(op)
}

// FailTipSubscriptions ends every open tip subscription with err.
func (s *MemoryStore) FailTipSubscriptions(err error) {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()

	s.mu.RLock()
	feeds := make([]*feed[*models.Tip], 0, len(s.tipSubs))
	for _, sub := range s.tipSubs {
		feeds = append(feeds, sub.feed)
	}
	s.mu.RUnlock()

	for _, f := range feeds {
		f.publish(Snapshot[*models.Tip]{Err: err})
	}
}

// TipSubscriberCount is the number of open tip subscriptions.
func (s *MemoryStore) TipSubscriberCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.tipSubs)
}

func (s *MemoryStore) Close(ctx context.Context) error {
	s.mu.RLock()
	var closers []func()
	for _, sub := range s.tipSubs {
		closers = append(closers, sub.feed.Close)
	}
	for _, sub := range s.verSubs {
		closers = append(closers, sub.feed.Close)
	}
	s.mu.RUnlock()

	for _, c := range closers {
		c()
	}
	return nil
}

// write runs fn under the write lock and then publishes fresh snapshots to
// every subscriber.
func (s *MemoryStore) write(op string, fn func() error) error {
	if err := s.before(op); err != nil {
		return err
	}

	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()

	s.mu.Lock()
	if err := fn(); err != nil {
		s.mu.Unlock()
		return err
	}
	tipSnaps, verSnaps := s.collectSnapshotsLocked()
	s.mu.Unlock()

	for f, items := range tipSnaps {
		f.publish(Snapshot[*models.Tip]{Items: items})
	}
	for f, items := range verSnaps {
		f.publish(Snapshot[*models.VerificationRecord]{Items: items})
	}
	return nil
}

func (s *MemoryStore) collectSnapshotsLocked() (map[*feed[*models.Tip]][]*models.Tip, map[*feed[*models.VerificationRecord]][]*models.VerificationRecord) {
	tipSnaps := make(map[*feed[*models.Tip]][]*models.Tip, len(s.tipSubs))
	for _, sub := range s.tipSubs {
		tipSnaps[sub.feed] = s.queryTipsLocked(sub.query)
	}
	verSnaps := make(map[*feed[*models.VerificationRecord]][]*models.VerificationRecord, len(s.verSubs))
	for _, sub := range s.verSubs {
		verSnaps[sub.feed] = s.queryVerificationsLocked(sub.tipID)
	}
	return tipSnaps, verSnaps
}

func (s *MemoryStore) queryTipsLocked(q TipQuery) []*models.Tip {
	out := make([]*models.Tip, 0, len(s.tips))
	for _, tip := range s.tips {
		if q.AuthorID != "" && tip.Author.ID != q.AuthorID {
			continue
		}
		out = append(out, tip.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out
}

func (s *MemoryStore) queryVerificationsLocked(tipID string) []*models.VerificationRecord {
	out := make([]*models.VerificationRecord, 0)
	for _, rec := range s.verifications {
		if tipID != "" && rec.TipID != tipID {
			continue
		}
		c := *rec
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (s *MemoryStore) CreateTip(ctx context.Context, tip *models.Tip) (string, error) {
	stored := tip.Clone()
	if stored.ID == "" {
		stored.ID = uuid.New().String()
	}
	err := s.write(OpCreateTip, func() error {
		if _, exists := s.tips[stored.ID]; exists {
			return utils.NewValidationError("tip already exists: " + stored.ID)
		}
		s.tips[stored.ID] = stored
		return nil
	})
	if err != nil {
		return "", err
	}
	return stored.ID, nil
}

func (s *MemoryStore) GetTip(ctx context.Context, id string) (*models.Tip, error) {
	if err := s.before(OpGetTip); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	tip, ok := s.tips[id]
	if !ok {
		return nil, utils.NewNotFoundError("tip", id)
	}
	return tip.Clone(), nil
}

func (s *MemoryStore) UpdateTip(ctx context.Context, id string, update models.TipUpdate) error {
	return s.write(OpUpdateTip, func() error {
		tip, ok := s.tips[id]
		if !ok {
			return utils.NewNotFoundError("tip", id)
		}
		update.Apply(tip)
		return nil
	})
}

func (s *MemoryStore) DeleteTip(ctx context.Context, id string) error {
	return s.write(OpDeleteTip, func() error {
		if _, ok := s.tips[id]; !ok {
			return utils.NewNotFoundError("tip", id)
		}
		delete(s.tips, id)
		return nil
	})
}

func (s *MemoryStore) ListTips(ctx context.Context, q TipQuery) ([]*models.Tip, error) {
	if err := s.before(OpListTips); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.queryTipsLocked(q), nil
}

func (s *MemoryStore) SubscribeTips(ctx context.Context, q TipQuery) (Subscription[*models.Tip], error) {
	if err := s.before(OpSubscribeTips); err != nil {
		return nil, err
	}

	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()

	s.mu.Lock()
	id := s.nextSubID
	s.nextSubID++
	f := newFeed[*models.Tip](ctx, func() {
		s.mu.Lock()
		delete(s.tipSubs, id)
		s.mu.Unlock()
	})
	s.tipSubs[id] = &tipSubscriber{query: q, feed: f}
	initial := s.queryTipsLocked(q)
	s.mu.Unlock()

	f.publish(Snapshot[*models.Tip]{Items: initial})
	return f, nil
}

func (s *MemoryStore) IncrementTipField(ctx context.Context, id string, field TipCounter, delta int) error {
	if !field.Valid() {
		return utils.NewValidationError("unknown counter: " + string(field))
	}
	return s.write(OpIncrementTipField, func() error {
		tip, ok := s.tips[id]
		if !ok {
			return utils.NewNotFoundError("tip", id)
		}
		*counterRef(tip, field) += delta
		return nil
	})
}

func (s *MemoryStore) DecrementTipFieldClamped(ctx context.Context, id string, field TipCounter) error {
	if !field.Valid() {
		return utils.NewValidationError("unknown counter: " + string(field))
	}
	return s.write(OpDecrementTipField, func() error {
		tip, ok := s.tips[id]
		if !ok {
			return utils.NewNotFoundError("tip", id)
		}
		if ref := counterRef(tip, field); *ref > 0 {
			*ref--
		}
		return nil
	})
}

func counterRef(tip *models.Tip, field TipCounter) *int {
	switch field {
	case CounterLikes:
		return &tip.Likes
	case CounterComments:
		return &tip.Comments
	default:
		return &tip.Views
	}
}

func (s *MemoryStore) SetLike(ctx context.Context, tipID, userID string, liked bool) error {
	return s.write(OpSetLike, func() error {
		tip, ok := s.tips[tipID]
		if !ok {
			return utils.NewNotFoundError("tip", tipID)
		}
		if liked {
			tip.AddLike(userID)
		} else {
			tip.RemoveLike(userID)
		}
		return nil
	})
}

func (s *MemoryStore) ApplyVerification(ctx context.Context, id string, update models.TipUpdate, expectedRevision int) error {
	return s.write(OpApplyVerification, func() error {
		tip, ok := s.tips[id]
		if !ok {
			return utils.NewNotFoundError("tip", id)
		}
		if tip.Revision != expectedRevision {
			return utils.NewAppError(utils.ErrConflict, "tip was verified concurrently: "+id, nil)
		}
		update.Apply(tip)
		tip.Revision++
		return nil
	})
}

func (s *MemoryStore) CreateVerification(ctx context.Context, rec *models.VerificationRecord) (string, error) {
	stored := *rec
	if stored.ID == "" {
		stored.ID = uuid.New().String()
	}
	err := s.write(OpCreateVerification, func() error {
		s.verifications[stored.ID] = &stored
		return nil
	})
	if err != nil {
		return "", err
	}
	return stored.ID, nil
}

func (s *MemoryStore) DeleteVerification(ctx context.Context, id string) error {
	return s.write(OpDeleteVerification, func() error {
		if _, ok := s.verifications[id]; !ok {
			return utils.NewNotFoundError("verification", id)
		}
		delete(s.verifications, id)
		return nil
	})
}

func (s *MemoryStore) ListVerifications(ctx context.Context, tipID string) ([]*models.VerificationRecord, error) {
	if err := s.before(OpListVerifications); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.queryVerificationsLocked(tipID), nil
}

func (s *MemoryStore) SubscribeVerifications(ctx context.Context, tipID string) (Subscription[*models.VerificationRecord], error) {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()

	s.mu.Lock()
	id := s.nextSubID
	s.nextSubID++
	f := newFeed[*models.VerificationRecord](ctx, func() {
		s.mu.Lock()
		delete(s.verSubs, id)
		s.mu.Unlock()
	})
	s.verSubs[id] = &verificationSubscriber{tipID: tipID, feed: f}
	initial := s.queryVerificationsLocked(tipID)
	s.mu.Unlock()

	f.publish(Snapshot[*models.VerificationRecord]{Items: initial})
	return f, nil
}

func (s *MemoryStore) SaveUser(ctx context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := *user
	c.Specializations = append([]string(nil), user.Specializations...)
	s.users[user.ID] = &c
	return nil
}

func (s *MemoryStore) GetUser(ctx context.Context, id string) (*models.User, error) {
	if err := s.before(OpGetUser); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	user, ok := s.users[id]
	if !ok {
		return nil, utils.NewNotFoundError("user", id)
	}
	c := *user
	return &c, nil
}

func (s *MemoryStore) ListUsers(ctx context.Context) ([]*models.User, error) {
	if err := s.before(OpListUsers); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.User, 0, len(s.users))
	for _, user := range s.users {
		c := *user
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MemoryStore) CreateComment(ctx context.Context, comment *models.Comment) (string, error) {
	if err := s.before(OpCreateComment); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	c := *comment
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	s.comments[c.ID] = &c
	return c.ID, nil
}

func (s *MemoryStore) GetComment(ctx context.Context, id string) (*models.Comment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	comment, ok := s.comments[id]
	if !ok {
		return nil, utils.NewNotFoundError("comment", id)
	}
	c := *comment
	return &c, nil
}

// DeleteComment soft-deletes; deleting an already deleted comment reports not found.
func (s *MemoryStore) DeleteComment(ctx context.Context, id string) error {
	if err := s.before(OpDeleteComment); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	comment, ok := s.comments[id]
	if !ok || comment.IsDeleted {
		return utils.NewNotFoundError("comment", id)
	}
	comment.IsDeleted = true
	return nil
}

func (s *MemoryStore) ListComments(ctx context.Context, tipID string) ([]*models.Comment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.Comment, 0)
	for _, comment := range s.comments {
		if comment.TipID != tipID || comment.IsDeleted {
			continue
		}
		c := *comment
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

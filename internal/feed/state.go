package feed

import (
	"github.com/blanchy21/TipsterNew-sub000/internal/models"
	"github.com/blanchy21/TipsterNew-sub000/internal/utils"
)

// DefaultPageSize bounds the live feed when no size is configured.
const DefaultPageSize = 50

// State is one session's canonical tip list. It is not safe for concurrent
// use; the owning session serializes every call.
type State struct {
	pageSize int

	snapshot []*models.Tip // last authoritative list
	local    []*models.Tip // created here, not yet seen in a snapshot; newest first

	provisional *Provisional
	err         error
}

func NewState(pageSize int) *State {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return &State{
		pageSize:    pageSize,
		provisional: NewProvisional(),
	}
}

func (s *State) PageSize() int {
	return s.pageSize
}

// ApplySnapshot replaces the authoritative list. Local copies of tips the
// snapshot contains are discarded and their provisional tags dropped.
func (s *State) ApplySnapshot(tips []*models.Tip) {
	seen := make(map[string]bool, len(tips))
	snapshot := make([]*models.Tip, 0, len(tips))
	for _, t := range tips {
		if t == nil || seen[t.ID] {
			continue
		}
		seen[t.ID] = true
		snapshot = append(snapshot, t.Clone())
	}

	local := s.local[:0:0]
	for _, t := range s.local {
		if !seen[t.ID] {
			local = append(local, t)
		}
	}

	s.snapshot = snapshot
	s.local = local
	s.provisional.Refresh(snapshot)
	s.err = nil
}

// Fail empties the list and records err. Nothing stale stays visible.
func (s *State) Fail(err error) {
	s.Reset()
	s.err = err
}

// Reset empties the list without recording an error.
func (s *State) Reset() {
	s.snapshot = nil
	s.local = nil
	s.provisional.Clear()
	s.err = nil
}

func (s *State) Err() error {
	return s.err
}

// PrependLocal puts a tip the session just created at the head of the list.
func (s *State) PrependLocal(tip *models.Tip) {
	s.RemoveLocal(tip.ID)
	s.local = append([]*models.Tip{tip.Clone()}, s.local...)
}

// RemoveLocal drops a local copy, used when its create call failed.
func (s *State) RemoveLocal(id string) bool {
	for i, t := range s.local {
		if t.ID == id {
			s.local = append(s.local[:i:i], s.local[i+1:]...)
			return true
		}
	}
	return false
}

// Remove drops a tip from both lists, used after a confirmed delete.
func (s *State) Remove(id string) {
	s.RemoveLocal(id)
	kept := s.snapshot[:0:0]
	for _, t := range s.snapshot {
		if t.ID != id {
			kept = append(kept, t)
		}
	}
	s.snapshot = kept
	s.provisional.Drop(id)
}

// Tips returns a copy of the visible list: unconfirmed local tips first,
// then the snapshot, duplicates collapsed (first wins), bounded by page size.
func (s *State) Tips() []*models.Tip {
	out := make([]*models.Tip, 0, len(s.local)+len(s.snapshot))
	seen := make(map[string]bool, cap(out))
	for _, list := range [][]*models.Tip{s.local, s.snapshot} {
		for _, t := range list {
			if seen[t.ID] {
				continue
			}
			seen[t.ID] = true
			out = append(out, t.Clone())
			if len(out) == s.pageSize {
				return out
			}
		}
	}
	return out
}

// Get returns a copy of the visible tip with id.
func (s *State) Get(id string) (*models.Tip, bool) {
	if t := s.find(id); t != nil {
		return t.Clone(), true
	}
	return nil, false
}

func (s *State) find(id string) *models.Tip {
	for _, list := range [][]*models.Tip{s.local, s.snapshot} {
		for _, t := range list {
			if t.ID == id {
				return t
			}
		}
	}
	return nil
}

func (s *State) IsProvisional(tipID string) bool {
	return s.provisional.IsProvisional(tipID)
}

// ToggleLike flips userID's like on the visible tip and tags the change as
// provisional under mutationID. It returns whether the user liked the tip
// before the toggle. An empty mutationID applies the change untagged.
func (s *State) ToggleLike(tipID, userID, mutationID string) (bool, error) {
	tip := s.find(tipID)
	if tip == nil {
		return false, utils.NewNotFoundError("tip", tipID)
	}

	wasLiked := tip.IsLikedBy(userID)
	beforeLikes := tip.Likes
	beforeLikedBy := append([]string(nil), tip.LikedBy...)

	setLike := func(t *models.Tip) {
		if wasLiked {
			t.RemoveLike(userID)
		} else {
			t.AddLike(userID)
		}
	}
	setLike(tip)

	if mutationID != "" {
		s.provisional.Tag(tipID, mutationID, func(t *models.Tip) {
			t.Likes = beforeLikes
			t.LikedBy = append([]string(nil), beforeLikedBy...)
		}, setLike)
	}
	return wasLiked, nil
}

// ConfirmMutation records that the store accepted mutationID. It reports
// whether the tip settled.
func (s *State) ConfirmMutation(tipID, mutationID string) bool {
	return s.resolve(tipID, mutationID, true)
}

// RollbackMutation records that the store rejected mutationID. While newer
// mutations on the tip are still in flight nothing changes; once the last one
// resolves the tip returns to its state before the oldest of them, with the
// accepted ones re-applied. A snapshot in between wins and the rollback is
// skipped. It reports whether the tip settled.
func (s *State) RollbackMutation(tipID, mutationID string) bool {
	return s.resolve(tipID, mutationID, false)
}

func (s *State) resolve(tipID, mutationID string, ok bool) bool {
	settle, _ := s.provisional.Resolve(tipID, mutationID, ok)
	if settle == nil {
		return false
	}
	if tip := s.find(tipID); tip != nil {
		settle(tip)
	}
	return true
}

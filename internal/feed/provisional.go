package feed

import "github.com/blanchy21/TipsterNew-sub000/internal/models"

// Provisional tags tips carrying optimistic local changes the store has not
// confirmed yet. A tip's tag keeps the state from before its oldest
// unresolved mutation. The tip settles once every mutation on it has
// resolved: that base state with the confirmed mutations re-applied in issue
// order. A fresh authoritative value for the tip drops the tag entirely.
type Provisional struct {
	tags map[string]*provisionalTag
}

type provisionalTag struct {
	undo      func(*models.Tip)
	mutations []*mutation // issue order
}

type mutation struct {
	id       string
	redo     func(*models.Tip)
	resolved bool
	ok       bool
}

func NewProvisional() *Provisional {
	return &Provisional{tags: make(map[string]*provisionalTag)}
}

// Tag records that tipID carries mutationID. undo restores the state the tip
// had right before it; redo re-applies it and must be idempotent. When the
// tip is already tagged, the older undo is kept.
func (p *Provisional) Tag(tipID, mutationID string, undo, redo func(*models.Tip)) {
	tag, ok := p.tags[tipID]
	if !ok {
		tag = &provisionalTag{undo: undo}
		p.tags[tipID] = tag
	}
	tag.mutations = append(tag.mutations, &mutation{id: mutationID, redo: redo})
}

func (p *Provisional) IsProvisional(tipID string) bool {
	_, ok := p.tags[tipID]
	return ok
}

// Resolve records the store's verdict on mutationID. owned is false when the
// tag is gone (a snapshot won) or never held the mutation. settle is non-nil
// once the last outstanding mutation resolves; applying it brings the tip to
// the state the store accepted.
func (p *Provisional) Resolve(tipID, mutationID string, ok bool) (settle func(*models.Tip), owned bool) {
	tag, found := p.tags[tipID]
	if !found {
		return nil, false
	}

	var m *mutation
	for _, candidate := range tag.mutations {
		if candidate.id == mutationID && !candidate.resolved {
			m = candidate
			break
		}
	}
	if m == nil {
		return nil, false
	}
	m.resolved, m.ok = true, ok

	for _, other := range tag.mutations {
		if !other.resolved {
			return nil, true
		}
	}

	delete(p.tags, tipID)
	return func(t *models.Tip) {
		tag.undo(t)
		for _, done := range tag.mutations {
			if done.ok {
				done.redo(t)
			}
		}
	}, true
}

// Refresh drops the tags of every tip in an authoritative snapshot.
func (p *Provisional) Refresh(tips []*models.Tip) {
	for _, t := range tips {
		delete(p.tags, t.ID)
	}
}

// Drop removes the tag for tipID regardless of owner.
func (p *Provisional) Drop(tipID string) {
	delete(p.tags, tipID)
}

// Clear drops every tag.
func (p *Provisional) Clear() {
	p.tags = make(map[string]*provisionalTag)
}

func (p *Provisional) Len() int {
	return len(p.tags)
}

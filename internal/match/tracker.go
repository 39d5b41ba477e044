package match

import (
	"errors"
	"fmt"

	"github.com/ernie/arena/internal/domain"
	"github.com/google/uuid"
)

// ErrAlreadyAdmitted is returned when a player is admitted twice in one match
var ErrAlreadyAdmitted = errors.New("player already admitted")

// Tracker partitions the players of the current match into alive and dead
// and remembers party membership and kit choices. The alive and dead sets
// are always disjoint, and a dead player never returns to alive within a
// match. Tracker is confined to the tick goroutine.
type Tracker struct {
	alive   map[uuid.UUID]struct{}
	dead    map[uuid.UUID]struct{}
	order   []uuid.UUID // admission order, for stable listings
	parties map[uuid.UUID]domain.Party
	kits    map[uuid.UUID]string

	newParty func() domain.Party
}

// NewTracker creates an empty tracker. newParty supplies a fresh party
// whenever a player is admitted without one.
func NewTracker(newParty func() domain.Party) *Tracker {
	t := &Tracker{newParty: newParty}
	t.Reset()
	return t
}

// Reset forgets every player, party and kit
func (t *Tracker) Reset() {
	t.alive = make(map[uuid.UUID]struct{})
	t.dead = make(map[uuid.UUID]struct{})
	t.order = nil
	t.parties = make(map[uuid.UUID]domain.Party)
	t.kits = make(map[uuid.UUID]string)
}

// Admit adds id to the alive set. A nil party assigns a freshly generated one.
func (t *Tracker) Admit(id uuid.UUID, party *domain.Party) (domain.Party, error) {
	if t.IsAlive(id) || t.IsDead(id) {
		return domain.Party{}, fmt.Errorf("admitting %s: %w", id, ErrAlreadyAdmitted)
	}
	var p domain.Party
	if party != nil {
		p = *party
	} else {
		p = t.newParty()
	}
	t.alive[id] = struct{}{}
	t.parties[id] = p
	t.order = append(t.order, id)
	return p, nil
}

// RecordDeath moves id from alive to dead. It returns false, changing
// nothing, when id is not alive.
func (t *Tracker) RecordDeath(id uuid.UUID) bool {
	if _, ok := t.alive[id]; !ok {
		return false
	}
	delete(t.alive, id)
	t.dead[id] = struct{}{}
	return true
}

// Withdraw removes an alive player who left before the match started.
// Dead players are never withdrawn.
func (t *Tracker) Withdraw(id uuid.UUID) bool {
	if _, ok := t.alive[id]; !ok {
		return false
	}
	delete(t.alive, id)
	delete(t.parties, id)
	delete(t.kits, id)
	for i, o := range t.order {
		if o == id {
			t.order = append(t.order[:i], t.order[i+1:]...)
			break
		}
	}
	return true
}

// AliveCount returns the number of alive players
func (t *Tracker) AliveCount() int {
	return len(t.alive)
}

// IsAlive reports whether id is alive
func (t *Tracker) IsAlive(id uuid.UUID) bool {
	_, ok := t.alive[id]
	return ok
}

// IsDead reports whether id died this match
func (t *Tracker) IsDead(id uuid.UUID) bool {
	_, ok := t.dead[id]
	return ok
}

// PartyOf returns the party of id
func (t *Tracker) PartyOf(id uuid.UUID) (domain.Party, bool) {
	p, ok := t.parties[id]
	return p, ok
}

// AliveIDs returns alive players in admission order
func (t *Tracker) AliveIDs() []uuid.UUID {
	return t.filter(t.alive)
}

// DeadIDs returns dead players in admission order
func (t *Tracker) DeadIDs() []uuid.UUID {
	return t.filter(t.dead)
}

func (t *Tracker) filter(set map[uuid.UUID]struct{}) []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(set))
	for _, id := range t.order {
		if _, ok := set[id]; ok {
			ids = append(ids, id)
		}
	}
	return ids
}

// PartyMates returns the other alive members of id's party
func (t *Tracker) PartyMates(id uuid.UUID) []uuid.UUID {
	p, ok := t.parties[id]
	if !ok {
		return nil
	}
	var mates []uuid.UUID
	for _, other := range t.AliveIDs() {
		if other != id && t.parties[other].ID == p.ID {
			mates = append(mates, other)
		}
	}
	return mates
}

// Parties returns every distinct party in order of first admission
func (t *Tracker) Parties() []domain.Party {
	seen := make(map[uuid.UUID]bool)
	var out []domain.Party
	for _, id := range t.order {
		p := t.parties[id]
		if !seen[p.ID] {
			seen[p.ID] = true
			out = append(out, p)
		}
	}
	return out
}

// PartyCount returns the number of distinct parties this match
func (t *Tracker) PartyCount() int {
	return len(t.Parties())
}

// PartySize returns how many admitted players belong to party
func (t *Tracker) PartySize(party uuid.UUID) int {
	n := 0
	for _, p := range t.parties {
		if p.ID == party {
			n++
		}
	}
	return n
}

// LatestParty returns the party of the most recently admitted player
func (t *Tracker) LatestParty() (domain.Party, bool) {
	if len(t.order) == 0 {
		return domain.Party{}, false
	}
	return t.PartyOf(t.order[len(t.order)-1])
}

// SetKit records id's kit choice
func (t *Tracker) SetKit(id uuid.UUID, kit string) {
	t.kits[id] = kit
}

// Kit returns id's kit choice
func (t *Tracker) Kit(id uuid.UUID) (string, bool) {
	k, ok := t.kits[id]
	return k, ok
}

// AllAliveHaveKits reports whether every alive player picked a kit
func (t *Tracker) AllAliveHaveKits() bool {
	for id := range t.alive {
		if _, ok := t.kits[id]; !ok {
			return false
		}
	}
	return len(t.alive) > 0
}

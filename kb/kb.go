package kb

import (
	"errors"
	"fmt"
	"reflect"
	"sort"
	"sync"

	"github.com/signalsfoundry/orrery/model"
)

var (
	// ErrBodyExists indicates a body id (or one of its moon ids) is already registered.
	ErrBodyExists = errors.New("body already exists")
	// ErrBodyNotFound indicates a requested body was not found.
	ErrBodyNotFound = errors.New("body not found")
)

// EventType indicates what kind of change happened in the KB.
type EventType int

const (
	EventBodyAdded EventType = iota
	EventBodyUpdated
	EventBodyRemoved
)

func (t EventType) String() string {
	switch t {
	case EventBodyAdded:
		return "added"
	case EventBodyUpdated:
		return "updated"
	case EventBodyRemoved:
		return "removed"
	default:
		return fmt.Sprintf("EventType(%d)", int(t))
	}
}

// Event is emitted to subscribers when a definition changes.
// Body is the new definition for added/updated events and the old one for
// removals. Definitions are never mutated after insertion.
type Event struct {
	Type EventType
	ID   string
	Body *model.BodyDefinition
}

// KnowledgeBase is an in-memory, thread-safe store of body definitions.
type KnowledgeBase struct {
	mu sync.RWMutex

	bodies map[string]*model.BodyDefinition
	// owner maps every id (top-level and moon) to its top-level id.
	owner map[string]string

	subs   map[int]func(Event)
	nextID int
}

// NewKnowledgeBase constructs an empty KB.
func NewKnowledgeBase() *KnowledgeBase {
	return &KnowledgeBase{
		bodies: make(map[string]*model.BodyDefinition),
		owner:  make(map[string]string),
		subs:   make(map[int]func(Event)),
	}
}

// AddBody validates and inserts a new definition. It fails with
// ErrBodyExists if the id or any moon id is taken, or with a
// *model.ConfigError if validation fails.
func (kb *KnowledgeBase) AddBody(def *model.BodyDefinition) error {
	if def == nil {
		return &model.ConfigError{Reason: "definition is nil"}
	}
	if err := def.Validate(); err != nil {
		return err
	}

	kb.mu.Lock()
	if err := kb.checkIDsLocked(def, ""); err != nil {
		kb.mu.Unlock()
		return err
	}
	kb.insertLocked(def)
	subs := kb.subscribersLocked()
	kb.mu.Unlock()

	notify(subs, Event{Type: EventBodyAdded, ID: def.ID, Body: def})
	return nil
}

// ReplaceBody inserts def, replacing any existing definition with the same id.
func (kb *KnowledgeBase) ReplaceBody(def *model.BodyDefinition) error {
	if def == nil {
		return &model.ConfigError{Reason: "definition is nil"}
	}
	if err := def.Validate(); err != nil {
		return err
	}

	kb.mu.Lock()
	if err := kb.checkIDsLocked(def, def.ID); err != nil {
		kb.mu.Unlock()
		return err
	}
	typ := EventBodyAdded
	if old, ok := kb.bodies[def.ID]; ok {
		kb.deleteLocked(old)
		typ = EventBodyUpdated
	}
	kb.insertLocked(def)
	subs := kb.subscribersLocked()
	kb.mu.Unlock()

	notify(subs, Event{Type: typ, ID: def.ID, Body: def})
	return nil
}

// RemoveBody deletes a top-level definition and its moons.
func (kb *KnowledgeBase) RemoveBody(id string) error {
	kb.mu.Lock()
	def, ok := kb.bodies[id]
	if !ok {
		kb.mu.Unlock()
		return fmt.Errorf("%w: %q", ErrBodyNotFound, id)
	}
	kb.deleteLocked(def)
	subs := kb.subscribersLocked()
	kb.mu.Unlock()

	notify(subs, Event{Type: EventBodyRemoved, ID: id, Body: def})
	return nil
}

// GetBody returns the top-level definition with the given id, or nil.
func (kb *KnowledgeBase) GetBody(id string) *model.BodyDefinition {
	kb.mu.RLock()
	defer kb.mu.RUnlock()
	return kb.bodies[id]
}

// Owner returns the top-level definition that declares id, which may be
// the definition itself or a planet listing id as a moon.
func (kb *KnowledgeBase) Owner(id string) *model.BodyDefinition {
	kb.mu.RLock()
	defer kb.mu.RUnlock()
	top, ok := kb.owner[id]
	if !ok {
		return nil
	}
	return kb.bodies[top]
}

// ListBodies returns a snapshot of all definitions sorted by id.
func (kb *KnowledgeBase) ListBodies() []*model.BodyDefinition {
	kb.mu.RLock()
	defer kb.mu.RUnlock()

	res := make([]*model.BodyDefinition, 0, len(kb.bodies))
	for _, d := range kb.bodies {
		res = append(res, d)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].ID < res[j].ID })
	return res
}

// Len returns the number of top-level definitions.
func (kb *KnowledgeBase) Len() int {
	kb.mu.RLock()
	defer kb.mu.RUnlock()
	return len(kb.bodies)
}

// SyncResult lists what Sync changed.
type SyncResult struct {
	Added   []string
	Updated []string
	Removed []string
}

// Changed reports whether Sync modified the KB.
func (r SyncResult) Changed() bool {
	return len(r.Added)+len(r.Updated)+len(r.Removed) > 0
}

// Sync makes the KB contain exactly defs. All definitions are validated
// before anything changes; on error the KB is left untouched. Unchanged
// definitions keep their existing pointer and emit no event.
func (kb *KnowledgeBase) Sync(defs []*model.BodyDefinition) (SyncResult, error) {
	want := make(map[string]*model.BodyDefinition, len(defs))
	ids := make(map[string]string)
	for _, d := range defs {
		if d == nil {
			continue
		}
		if err := d.Validate(); err != nil {
			return SyncResult{}, err
		}
		for _, id := range d.BodyIDs() {
			if prev, dup := ids[id]; dup {
				return SyncResult{}, fmt.Errorf("%w: %q declared by %q and %q", ErrBodyExists, id, prev, d.ID)
			}
			ids[id] = d.ID
		}
		want[d.ID] = d
	}

	var (
		res    SyncResult
		events []Event
	)

	kb.mu.Lock()
	for id, old := range kb.bodies {
		if _, keep := want[id]; !keep {
			kb.deleteLocked(old)
			res.Removed = append(res.Removed, id)
			events = append(events, Event{Type: EventBodyRemoved, ID: id, Body: old})
		}
	}
	for id, d := range want {
		old, exists := kb.bodies[id]
		switch {
		case !exists:
			kb.insertLocked(d)
			res.Added = append(res.Added, id)
			events = append(events, Event{Type: EventBodyAdded, ID: id, Body: d})
		case !reflect.DeepEqual(old, d):
			kb.deleteLocked(old)
			kb.insertLocked(d)
			res.Updated = append(res.Updated, id)
			events = append(events, Event{Type: EventBodyUpdated, ID: id, Body: d})
		}
	}
	subs := kb.subscribersLocked()
	kb.mu.Unlock()

	sort.Strings(res.Added)
	sort.Strings(res.Updated)
	sort.Strings(res.Removed)
	sort.SliceStable(events, func(i, j int) bool {
		if events[i].Type != events[j].Type {
			// removals first so a moon can move between planets
			return events[i].Type == EventBodyRemoved
		}
		return events[i].ID < events[j].ID
	})
	for _, ev := range events {
		notify(subs, ev)
	}
	return res, nil
}

// Subscribe registers a callback for KB events. It returns an unsubscribe function.
// Callbacks run on the mutating goroutine, outside the lock.
func (kb *KnowledgeBase) Subscribe(fn func(Event)) (unsubscribe func()) {
	kb.mu.Lock()
	defer kb.mu.Unlock()
	id := kb.nextID
	kb.nextID++
	kb.subs[id] = fn

	return func() {
		kb.mu.Lock()
		defer kb.mu.Unlock()
		delete(kb.subs, id)
	}
}

// checkIDsLocked fails if any id of def is owned by a definition other than replacing.
func (kb *KnowledgeBase) checkIDsLocked(def *model.BodyDefinition, replacing string) error {
	for _, id := range def.BodyIDs() {
		if top, taken := kb.owner[id]; taken && top != replacing {
			return fmt.Errorf("%w: %q", ErrBodyExists, id)
		}
	}
	return nil
}

func (kb *KnowledgeBase) insertLocked(def *model.BodyDefinition) {
	kb.bodies[def.ID] = def
	for _, id := range def.BodyIDs() {
		kb.owner[id] = def.ID
	}
}

func (kb *KnowledgeBase) deleteLocked(def *model.BodyDefinition) {
	delete(kb.bodies, def.ID)
	for _, id := range def.BodyIDs() {
		if kb.owner[id] == def.ID {
			delete(kb.owner, id)
		}
	}
}

func (kb *KnowledgeBase) subscribersLocked() []func(Event) {
	keys := make([]int, 0, len(kb.subs))
	for k := range kb.subs {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	subs := make([]func(Event), 0, len(keys))
	for _, k := range keys {
		subs = append(subs, kb.subs[k])
	}
	return subs
}

// Notify subscribers outside the lock to avoid deadlocks.
func notify(subs []func(Event), ev Event) {
	for _, sub := range subs {
		sub(ev)
	}
}

package core

import (
	"fmt"
	"sort"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/signalsfoundry/orrery/model"
	"github.com/signalsfoundry/orrery/scene"
)

// Body is a focusable, pickable entity: its Node is the visible sphere.
type Body struct {
	ID   string
	Kind model.BodyKind
	Node *scene.Node
}

// OrbitingBody revolves by rotating Node (its orbit pivot) about Axis.
type OrbitingBody struct {
	ID     string
	Period float64
	Node   *scene.Node
	Axis   mgl64.Vec3
	// Angle is the last angle applied by the Animator.
	Angle float64
}

// MoonOrbit is an OrbitingBody whose pivot hangs under Parent, so its
// rotation is applied in the parent's local frame.
type MoonOrbit struct {
	ID     string
	Period float64
	Node   *scene.Node
	Axis   mgl64.Vec3
	Parent *scene.Node
	Angle  float64
}

// TrackedBody has its node position driven by a MotionModel.
type TrackedBody struct {
	ID     string
	Node   *scene.Node
	Motion MotionModel
}

// Installation is everything one registry definition contributes. Install
// validates all of it before changing the world.
type Installation struct {
	// Group is the top-level definition id the entries belong to.
	Group string
	// Top is attached under the world root.
	Top *scene.Node

	Bodies []Body
	Orbits []OrbitingBody
	Moons  []MoonOrbit
	Tracks []TrackedBody
}

// WorldEventType describes a world change.
type WorldEventType int

const (
	WorldRegistered WorldEventType = iota
	WorldRemoved
)

// WorldEvent is emitted after Install or Remove.
type WorldEvent struct {
	Type  WorldEventType
	Group string
	IDs   []string
}

// AnimationWorld owns the id → body, orbit and moon maps and the scene root
// they hang from. It is confined to the frame goroutine.
type AnimationWorld struct {
	Root *scene.Node

	bodies map[string]*Body
	orbits map[string]*OrbitingBody
	moons  map[string]*MoonOrbit
	tracks map[string]*TrackedBody

	groups   map[string]*group
	memberOf map[string]string

	subs []func(WorldEvent)
}

type group struct {
	top *scene.Node
	ids []string
}

// NewAnimationWorld creates an empty world with a fresh root node.
func NewAnimationWorld() *AnimationWorld {
	return &AnimationWorld{
		Root:     scene.NewNode("solar-system"),
		bodies:   make(map[string]*Body),
		orbits:   make(map[string]*OrbitingBody),
		moons:    make(map[string]*MoonOrbit),
		tracks:   make(map[string]*TrackedBody),
		groups:   make(map[string]*group),
		memberOf: make(map[string]string),
	}
}

// Subscribe registers a callback for world events.
func (w *AnimationWorld) Subscribe(fn func(WorldEvent)) {
	w.subs = append(w.subs, fn)
}

// RegisterBody adds a focusable body whose node is already in the graph.
func (w *AnimationWorld) RegisterBody(b Body) error {
	return w.Install(Installation{Group: b.ID, Bodies: []Body{b}})
}

// RegisterOrbit adds an orbiting body. A non-positive period is a ConfigError.
func (w *AnimationWorld) RegisterOrbit(o OrbitingBody) error {
	return w.Install(Installation{Group: o.ID, Orbits: []OrbitingBody{o}})
}

// RegisterMoon adds a moon orbit attached under its parent's node.
func (w *AnimationWorld) RegisterMoon(m MoonOrbit) error {
	return w.Install(Installation{Group: m.ID, Moons: []MoonOrbit{m}})
}

// Install validates and commits in as one step: either every entry is
// registered and Top attached under Root, or nothing changes.
func (w *AnimationWorld) Install(in Installation) error {
	if _, exists := w.groups[in.Group]; exists {
		return fmt.Errorf("%w: group %q", ErrAlreadyRegistered, in.Group)
	}
	if err := w.validate(in); err != nil {
		return err
	}
	w.commit(in)
	return nil
}

// Replace installs in in place of the group with the same id, which may be
// absent. Ids the old group holds may be reused; ids held by any other group
// are a conflict. On error the old group stays registered untouched.
func (w *AnimationWorld) Replace(in Installation) error {
	if err := w.validate(in); err != nil {
		return err
	}
	if _, exists := w.groups[in.Group]; exists {
		w.Remove(in.Group)
	}
	w.commit(in)
	return nil
}

// GroupOf returns the group that registered id.
func (w *AnimationWorld) GroupOf(id string) (string, bool) {
	g, ok := w.memberOf[id]
	return g, ok
}

func (w *AnimationWorld) validate(in Installation) error {
	if in.Group == "" {
		return &ConfigError{Field: "group", Reason: "must not be empty"}
	}

	ids := make(map[string]struct{})
	claim := func(kind, id string) error {
		if id == "" {
			return &ConfigError{Body: in.Group, Field: kind + ".id", Reason: "must not be empty"}
		}
		key := kind + "/" + id
		if _, dup := ids[key]; dup {
			return fmt.Errorf("%w: %s %q listed twice", ErrAlreadyRegistered, kind, id)
		}
		ids[key] = struct{}{}
		if g, held := w.memberOf[id]; held && g != in.Group {
			return fmt.Errorf("%w: %s %q held by %q", ErrAlreadyRegistered, kind, id, g)
		}
		return nil
	}

	for _, b := range in.Bodies {
		if err := claim("body", b.ID); err != nil {
			return err
		}
		if b.Node == nil {
			return &ConfigError{Body: b.ID, Field: "node", Reason: "must not be nil"}
		}
	}
	for _, o := range in.Orbits {
		if err := claim("orbit", o.ID); err != nil {
			return err
		}
		if err := validateOrbit(o.ID, o.Period, o.Node, o.Axis); err != nil {
			return err
		}
	}
	for _, m := range in.Moons {
		if err := claim("moon", m.ID); err != nil {
			return err
		}
		if err := validateOrbit(m.ID, m.Period, m.Node, m.Axis); err != nil {
			return err
		}
		if m.Parent == nil {
			return &ConfigError{Body: m.ID, Field: "parent", Reason: "must not be nil"}
		}
	}
	for _, t := range in.Tracks {
		if err := claim("track", t.ID); err != nil {
			return err
		}
		if t.Node == nil || t.Motion == nil {
			return &ConfigError{Body: t.ID, Field: "motion", Reason: "needs a node and a motion model"}
		}
	}
	return nil
}

func (w *AnimationWorld) commit(in Installation) {
	if in.Top != nil {
		w.Root.Add(in.Top)
	}
	g := &group{top: in.Top}
	member := func(id string) {
		if w.memberOf[id] != in.Group {
			g.ids = append(g.ids, id)
		}
		w.memberOf[id] = in.Group
	}
	for i := range in.Bodies {
		b := in.Bodies[i]
		w.bodies[b.ID] = &b
		member(b.ID)
	}
	for i := range in.Orbits {
		o := in.Orbits[i]
		o.Axis = o.Axis.Normalize()
		w.orbits[o.ID] = &o
		member(o.ID)
	}
	for i := range in.Moons {
		m := in.Moons[i]
		m.Axis = m.Axis.Normalize()
		w.moons[m.ID] = &m
		member(m.ID)
	}
	for i := range in.Tracks {
		t := in.Tracks[i]
		w.tracks[t.ID] = &t
		member(t.ID)
	}
	sort.Strings(g.ids)
	w.groups[in.Group] = g

	w.emit(WorldEvent{Type: WorldRegistered, Group: in.Group, IDs: append([]string(nil), g.ids...)})
}

func validateOrbit(id string, period float64, node *scene.Node, axis mgl64.Vec3) error {
	if !(period > 0) {
		return &ConfigError{Body: id, Field: "orbit_period", Reason: fmt.Sprintf("must be > 0, got %v", period)}
	}
	if node == nil {
		return &ConfigError{Body: id, Field: "node", Reason: "must not be nil"}
	}
	if axis.Len() < 1e-12 {
		return &ConfigError{Body: id, Field: "axis", Reason: "must be non-zero"}
	}
	return nil
}

// Remove unregisters id. A group id removes everything it installed and
// detaches its top node; any other member id removes just that entity and
// detaches its own node. It reports whether anything was removed.
func (w *AnimationWorld) Remove(id string) bool {
	if g, ok := w.groups[id]; ok {
		for _, member := range g.ids {
			w.dropMember(member)
		}
		if g.top != nil {
			g.top.Detach()
		}
		delete(w.groups, id)
		w.emit(WorldEvent{Type: WorldRemoved, Group: id, IDs: g.ids})
		return true
	}

	grp, ok := w.memberOf[id]
	if !ok {
		return false
	}
	var node *scene.Node
	if m, ok := w.moons[id]; ok {
		node = m.Node
	} else if o, ok := w.orbits[id]; ok {
		node = o.Node
	} else if b, ok := w.bodies[id]; ok {
		node = b.Node
	} else if t, ok := w.tracks[id]; ok {
		node = t.Node
	}
	w.dropMember(id)
	if node != nil {
		node.Detach()
	}
	if g := w.groups[grp]; g != nil {
		g.ids = removeString(g.ids, id)
	}
	w.emit(WorldEvent{Type: WorldRemoved, Group: grp, IDs: []string{id}})
	return true
}

func (w *AnimationWorld) dropMember(id string) {
	delete(w.bodies, id)
	delete(w.orbits, id)
	delete(w.moons, id)
	delete(w.tracks, id)
	delete(w.memberOf, id)
}

// Clear removes every group and detaches all nodes from the root.
func (w *AnimationWorld) Clear() {
	for _, id := range w.Groups() {
		w.Remove(id)
	}
	for _, c := range w.Root.Children() {
		w.Root.Remove(c)
	}
}

// Body resolves id to a live body: registered and still attached under Root.
func (w *AnimationWorld) Body(id string) (*Body, bool) {
	b, ok := w.bodies[id]
	if !ok || b.Node == nil || !b.Node.Attached(w.Root) {
		return nil, false
	}
	return b, true
}

// HasGroup reports whether a definition group is installed.
func (w *AnimationWorld) HasGroup(id string) bool {
	_, ok := w.groups[id]
	return ok
}

// Orbit returns the orbit registered under id.
func (w *AnimationWorld) Orbit(id string) (*OrbitingBody, bool) {
	o, ok := w.orbits[id]
	return o, ok
}

// Moon returns the moon orbit registered under id.
func (w *AnimationWorld) Moon(id string) (*MoonOrbit, bool) {
	m, ok := w.moons[id]
	return m, ok
}

// BodyIDs returns registered body ids, sorted.
func (w *AnimationWorld) BodyIDs() []string {
	return sortedKeys(w.bodies)
}

// Groups returns installed group ids, sorted.
func (w *AnimationWorld) Groups() []string {
	return sortedKeys(w.groups)
}

// Counts returns the number of bodies, orbits, moons and tracks.
func (w *AnimationWorld) Counts() (bodies, orbits, moons, tracks int) {
	return len(w.bodies), len(w.orbits), len(w.moons), len(w.tracks)
}

func (w *AnimationWorld) emit(ev WorldEvent) {
	for _, fn := range w.subs {
		fn(ev)
	}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func removeString(s []string, v string) []string {
	out := s[:0]
	for _, x := range s {
		if x != v {
			out = append(out, x)
		}
	}
	return out
}

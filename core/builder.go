package core

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/go-gl/mathgl/mgl64"
	colorful "github.com/lucasb-eyer/go-colorful"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/signalsfoundry/orrery/internal/assets"
	"github.com/signalsfoundry/orrery/internal/logging"
	"github.com/signalsfoundry/orrery/model"
	"github.com/signalsfoundry/orrery/scene"
)

// BuilderConfig controls how registry rows become scene nodes.
type BuilderConfig struct {
	// FallbackPeriod is used for planets without a declared period.
	FallbackPeriod float64
	// MoonFallbackPeriod is used for moons without a declared period.
	MoonFallbackPeriod float64
	// PositionOffset is added to every planet's base position.
	PositionOffset mgl64.Vec3
	PlanetAxis     mgl64.Vec3
	MoonAxis       mgl64.Vec3
	// DefaultColor is used when a row has neither colour nor texture.
	DefaultColor string
}

// DefaultBuilderConfig returns the classic layout.
func DefaultBuilderConfig() BuilderConfig {
	return BuilderConfig{
		FallbackPeriod:     60,
		MoonFallbackPeriod: 24,
		PositionOffset:     mgl64.Vec3{15, 15, 15},
		PlanetAxis:         scene.AxisY,
		MoonAxis:           scene.AxisX,
		DefaultColor:       "#9E9E9E",
	}
}

// TextureSource starts asynchronous texture loads.
type TextureSource interface {
	Load(ctx context.Context, name string) *assets.Future[*assets.Texture]
}

// DefinitionSource answers whether a definition is still current. The
// knowledge base satisfies it.
type DefinitionSource interface {
	GetBody(id string) *model.BodyDefinition
}

// AssetRecorder counts bodies dropped for missing assets.
type AssetRecorder interface {
	IncMissingAsset(body string)
}

// BuilderOption configures a Builder.
type BuilderOption func(*Builder)

// WithTextures enables texture loading. Without it every body is drawn in
// its flat colour.
func WithTextures(src TextureSource) BuilderOption {
	return func(b *Builder) { b.textures = src }
}

// WithDefinitions enables the staleness check against the registry.
func WithDefinitions(src DefinitionSource) BuilderOption {
	return func(b *Builder) { b.defs = src }
}

// WithAssetRecorder reports missing assets to rec.
func WithAssetRecorder(rec AssetRecorder) BuilderOption {
	return func(b *Builder) { b.recorder = rec }
}

// WithBuilderLogger sets the builder's logger.
func WithBuilderLogger(log logging.Logger) BuilderOption {
	return func(b *Builder) {
		if log != nil {
			b.log = log
		}
	}
}

// Builder turns body definitions into scene nodes. Build starts the work,
// Apply registers whatever has finished. Both run on the frame goroutine;
// only texture decoding happens elsewhere.
type Builder struct {
	cfg      BuilderConfig
	textures TextureSource
	defs     DefinitionSource
	recorder AssetRecorder
	log      logging.Logger
	tracer   trace.Tracer

	pending map[string]*PendingBuild
}

// NewBuilder creates a builder. Zero config fields take defaults.
func NewBuilder(cfg BuilderConfig, opts ...BuilderOption) *Builder {
	def := DefaultBuilderConfig()
	if !(cfg.FallbackPeriod > 0) {
		cfg.FallbackPeriod = def.FallbackPeriod
	}
	if !(cfg.MoonFallbackPeriod > 0) {
		cfg.MoonFallbackPeriod = def.MoonFallbackPeriod
	}
	if cfg.PlanetAxis.Len() < 1e-12 {
		cfg.PlanetAxis = def.PlanetAxis
	}
	if cfg.MoonAxis.Len() < 1e-12 {
		cfg.MoonAxis = def.MoonAxis
	}
	if cfg.DefaultColor == "" {
		cfg.DefaultColor = def.DefaultColor
	}
	b := &Builder{
		cfg:     cfg,
		log:     logging.Noop(),
		tracer:  otel.Tracer("github.com/signalsfoundry/orrery/core"),
		pending: make(map[string]*PendingBuild),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

type slotRole int

const (
	slotBody slotRole = iota
	slotMoon
	slotRing
)

// textureSlot is one outstanding texture for a pending build.
type textureSlot struct {
	role   slotRole
	body   string
	path   string
	node   *scene.Node
	future *assets.Future[*assets.Texture]
}

// PendingBuild is a definition whose nodes exist but whose textures may
// still be loading.
type PendingBuild struct {
	Def *model.BodyDefinition

	inst  Installation
	slots []textureSlot
	// moonNodes maps a moon id to the pivot (or satellite node) to drop
	// when its texture fails.
	moonNodes map[string]*scene.Node
}

// Ready reports whether every texture has resolved.
func (p *PendingBuild) Ready() bool {
	for _, s := range p.slots {
		if !s.future.Done() {
			return false
		}
	}
	return true
}

// Pending returns the ids with builds in flight, sorted.
func (b *Builder) Pending() []string {
	return sortedKeys(b.pending)
}

// Cancel drops any in-flight build for id.
func (b *Builder) Cancel(id string) {
	delete(b.pending, id)
}

// Build constructs the node tree for def and starts its texture loads. A
// newer Build for the same id supersedes an older one still in flight.
func (b *Builder) Build(ctx context.Context, def *model.BodyDefinition) (*PendingBuild, error) {
	ctx, span := b.tracer.Start(ctx, "builder.Build", trace.WithAttributes(attribute.String("body.id", def.ID)))
	defer span.End()

	if err := def.Validate(); err != nil {
		return nil, err
	}
	p := &PendingBuild{Def: def, moonNodes: make(map[string]*scene.Node)}
	p.inst.Group = def.ID

	body := scene.NewNode(def.ID)
	body.BodyID = def.ID
	body.Pickable = true
	body.Scale = def.DisplayScale
	body.Look = b.appearance(def.Color)
	p.inst.Bodies = append(p.inst.Bodies, Body{ID: def.ID, Kind: defKind(def.Kind), Node: body})
	b.track(ctx, p, slotBody, def.ID, def.Texture, body)

	if def.Orbits() {
		period, err := ResolvePeriod(def.ID, def.OrbitPeriod, b.cfg.FallbackPeriod)
		if err != nil {
			return nil, err
		}
		pivot := scene.NewNode(def.ID + ".orbit")
		base := mgl64.Vec3{def.BasePosition.X, def.BasePosition.Y, def.BasePosition.Z}
		body.Position = base.Add(b.cfg.PositionOffset)
		pivot.Add(body)
		p.inst.Top = pivot
		p.inst.Orbits = append(p.inst.Orbits, OrbitingBody{ID: def.ID, Period: period, Node: pivot, Axis: b.cfg.PlanetAxis})
	} else {
		body.Position = mgl64.Vec3{def.BasePosition.X, def.BasePosition.Y, def.BasePosition.Z}
		body.Look.Emissive = def.Kind == model.KindStar
		p.inst.Top = body
	}

	for _, m := range def.Moons {
		if err := b.buildMoon(ctx, p, body, m); err != nil {
			// A bad satellite element set loses that satellite only.
			b.log.Warn(ctx, "skipping moon", logging.Body(def.ID), logging.String("moon", m.ID), logging.Err(err))
			continue
		}
	}

	if r := def.Ring; r != nil {
		ring := scene.NewNode(def.ID + ".ring")
		ring.Pickable = true
		ring.Look = b.appearance(r.Color)
		ring.Look.Shape = scene.ShapeRing
		ring.Look.Inner, ring.Look.Outer = r.Inner, r.Outer
		body.Add(ring)
		b.track(ctx, p, slotRing, def.ID, r.Texture, ring)
	}

	span.SetAttributes(attribute.Int("textures", len(p.slots)))
	b.pending[def.ID] = p
	return p, nil
}

func (b *Builder) buildMoon(ctx context.Context, p *PendingBuild, parent *scene.Node, m model.MoonDefinition) error {
	node := scene.NewNode(m.ID)
	node.BodyID = m.ID
	node.Pickable = true
	node.Scale = m.DisplayScale
	node.Look = b.appearance(m.Color)

	if m.Kind == model.KindSatellite {
		motion, err := NewSGP4Model(*m.TLE)
		if err != nil {
			return err
		}
		parent.Add(node)
		p.moonNodes[m.ID] = node
		p.inst.Bodies = append(p.inst.Bodies, Body{ID: m.ID, Kind: model.KindSatellite, Node: node})
		p.inst.Tracks = append(p.inst.Tracks, TrackedBody{ID: m.ID, Node: node, Motion: motion})
		b.track(ctx, p, slotMoon, m.ID, m.Texture, node)
		return nil
	}

	period, err := ResolvePeriod(m.ID, m.OrbitPeriod, b.cfg.MoonFallbackPeriod)
	if err != nil {
		return err
	}
	pivot := scene.NewNode(m.ID + ".orbit")
	node.Position = perpendicular(b.cfg.MoonAxis).Mul(m.Distance)
	pivot.Add(node)
	parent.Add(pivot)
	p.moonNodes[m.ID] = pivot

	p.inst.Bodies = append(p.inst.Bodies, Body{ID: m.ID, Kind: model.KindMoon, Node: node})
	p.inst.Moons = append(p.inst.Moons, MoonOrbit{ID: m.ID, Period: period, Node: pivot, Axis: b.cfg.MoonAxis, Parent: parent})
	b.track(ctx, p, slotMoon, m.ID, m.Texture, node)
	return nil
}

func (b *Builder) track(ctx context.Context, p *PendingBuild, role slotRole, body, path string, node *scene.Node) {
	if path == "" || b.textures == nil {
		return
	}
	p.slots = append(p.slots, textureSlot{
		role:   role,
		body:   body,
		path:   path,
		node:   node,
		future: b.textures.Load(ctx, path),
	})
}

// ApplyResult summarises one Apply call.
type ApplyResult struct {
	// Installed lists definition ids registered in the world.
	Installed []string
	// Stale lists finished builds dropped because their definition changed.
	Stale []string
	// Errors holds MissingAssetErrors and registration failures.
	Errors []error
}

// Apply registers every finished build in w, one atomic Replace per
// definition. Builds whose definition was removed or replaced meanwhile are
// dropped. A failed body texture omits the body and all its moons; a failed
// moon texture omits that moon; a failed ring texture omits the ring.
//
// A build that needs an id still held by another group waits while that
// group has a rebuild pending, so a moon moving between planets never leaves
// either planet unregistered. Finished builds that only wait on each other
// are swapped in together.
func (b *Builder) Apply(ctx context.Context, w *AnimationWorld) ApplyResult {
	var res ApplyResult
	for len(b.pending) > 0 {
		progress := false
		waiting := make(map[string][]string)
		for _, id := range sortedKeys(b.pending) {
			p := b.pending[id]
			if !p.Ready() {
				continue
			}
			if b.defs != nil && b.defs.GetBody(id) != p.Def {
				delete(b.pending, id)
				progress = true
				b.log.Debug(ctx, "dropping stale build", logging.Body(id))
				res.Stale = append(res.Stale, id)
				continue
			}
			if holders := b.holders(w, p); len(holders) > 0 {
				waiting[id] = holders
				continue
			}
			delete(b.pending, id)
			progress = true
			installed, errs := b.install(ctx, w, p)
			res.add(id, installed, errs)
		}
		if progress {
			continue
		}

		swap := swapSet(waiting)
		if len(swap) == 0 {
			for id, holders := range waiting {
				b.log.Debug(ctx, "build waits for another body", logging.Body(id), logging.Any("holders", holders))
			}
			break
		}
		for _, id := range swap {
			w.Remove(id)
		}
		for _, id := range swap {
			p := b.pending[id]
			delete(b.pending, id)
			installed, errs := b.install(ctx, w, p)
			res.add(id, installed, errs)
		}
	}
	return res
}

func (r *ApplyResult) add(id string, installed bool, errs []error) {
	r.Errors = append(r.Errors, errs...)
	if installed {
		r.Installed = append(r.Installed, id)
	}
}

// holders lists the other groups holding ids p registers, as long as at
// least one of them has a build of its own pending. Otherwise the conflict
// is permanent and install reports it.
func (b *Builder) holders(w *AnimationWorld, p *PendingBuild) []string {
	seen := make(map[string]struct{})
	var out []string
	rebuilding := false
	for _, id := range memberIDs(p.inst) {
		g, ok := w.GroupOf(id)
		if !ok || g == p.Def.ID {
			continue
		}
		if _, dup := seen[g]; dup {
			continue
		}
		seen[g] = struct{}{}
		out = append(out, g)
		if _, ok := b.pending[g]; ok {
			rebuilding = true
		}
	}
	if !rebuilding {
		return nil
	}
	sort.Strings(out)
	return out
}

// swapSet narrows waiting to the builds whose holders are all themselves
// finished and waiting.
func swapSet(waiting map[string][]string) []string {
	set := make(map[string]struct{}, len(waiting))
	for id := range waiting {
		set[id] = struct{}{}
	}
	for changed := true; changed; {
		changed = false
		for id := range set {
			for _, h := range waiting[id] {
				if _, ok := set[h]; !ok {
					delete(set, id)
					changed = true
					break
				}
			}
		}
	}
	return sortedKeys(set)
}

func memberIDs(in Installation) []string {
	ids := make([]string, 0, len(in.Bodies)+len(in.Moons)+len(in.Tracks))
	for _, x := range in.Bodies {
		ids = append(ids, x.ID)
	}
	for _, x := range in.Orbits {
		ids = append(ids, x.ID)
	}
	for _, x := range in.Moons {
		ids = append(ids, x.ID)
	}
	for _, x := range in.Tracks {
		ids = append(ids, x.ID)
	}
	return ids
}

func (b *Builder) install(ctx context.Context, w *AnimationWorld, p *PendingBuild) (bool, []error) {
	ctx, span := b.tracer.Start(ctx, "builder.Install", trace.WithAttributes(attribute.String("body.id", p.Def.ID)))
	defer span.End()

	var errs []error
	inst := p.inst
	dropped := make(map[string]struct{})

	for _, s := range p.slots {
		tex, err := s.future.Result()
		if err == nil {
			s.node.Look.Texture = tex
			continue
		}
		missing := &MissingAssetError{Body: s.body, Path: s.path, Err: err}
		errs = append(errs, missing)
		b.log.Warn(ctx, "texture failed to load; omitting", logging.Body(s.body), logging.String("path", s.path), logging.Err(err))
		if b.recorder != nil {
			b.recorder.IncMissingAsset(s.body)
		}
		switch s.role {
		case slotBody:
			span.RecordError(missing)
			return false, errs
		case slotMoon:
			dropped[s.body] = struct{}{}
			if n := p.moonNodes[s.body]; n != nil {
				n.Detach()
			}
		case slotRing:
			s.node.Detach()
		}
	}
	if len(dropped) > 0 {
		inst = withoutMembers(inst, dropped)
	}

	if err := w.Replace(inst); err != nil {
		span.RecordError(err)
		b.log.Error(ctx, "registration failed; keeping previous", logging.Body(inst.Group), logging.Err(err))
		return false, append(errs, err)
	}
	nb, no, nm, nt := len(inst.Bodies), len(inst.Orbits), len(inst.Moons), len(inst.Tracks)
	b.log.Info(ctx, "body registered",
		logging.Body(inst.Group),
		logging.Int("bodies", nb),
		logging.Int("orbits", no),
		logging.Int("moons", nm),
		logging.Int("satellites", nt),
	)
	return true, errs
}

func withoutMembers(in Installation, drop map[string]struct{}) Installation {
	out := Installation{Group: in.Group, Top: in.Top}
	for _, x := range in.Bodies {
		if _, ok := drop[x.ID]; !ok {
			out.Bodies = append(out.Bodies, x)
		}
	}
	out.Orbits = in.Orbits
	for _, x := range in.Moons {
		if _, ok := drop[x.ID]; !ok {
			out.Moons = append(out.Moons, x)
		}
	}
	for _, x := range in.Tracks {
		if _, ok := drop[x.ID]; !ok {
			out.Tracks = append(out.Tracks, x)
		}
	}
	return out
}

// BuildAll builds every definition, collecting errors rather than stopping.
func (b *Builder) BuildAll(ctx context.Context, defs []*model.BodyDefinition) error {
	var errs []error
	sorted := append([]*model.BodyDefinition(nil), defs...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })
	for _, def := range sorted {
		if _, err := b.Build(ctx, def); err != nil {
			errs = append(errs, fmt.Errorf("build %s: %w", def.ID, err))
		}
	}
	return errors.Join(errs...)
}

func (b *Builder) appearance(hex string) scene.Appearance {
	look := scene.Appearance{Shape: scene.ShapeSphere, Color: parseColor(b.cfg.DefaultColor, [3]uint8{158, 158, 158})}
	if hex != "" {
		look.Color = parseColor(hex, look.Color)
	}
	return look
}

// parseColor reads a #rrggbb colour, returning fallback when it is invalid.
func parseColor(hex string, fallback [3]uint8) [3]uint8 {
	c, err := colorful.Hex(hex)
	if err != nil {
		return fallback
	}
	r, g, bl := c.RGB255()
	return [3]uint8{r, g, bl}
}

// perpendicular returns a unit vector at right angles to axis, so a node
// placed along it sweeps a full circle as the pivot rotates.
func perpendicular(axis mgl64.Vec3) mgl64.Vec3 {
	axis = axis.Normalize()
	p := axis.Cross(scene.AxisY)
	if p.Len() < 1e-9 {
		p = axis.Cross(scene.AxisZ)
	}
	return p.Normalize()
}

func defKind(k model.BodyKind) model.BodyKind {
	if k == "" {
		return model.KindPlanet
	}
	return k
}

package state

import (
	"context"
	"testing"

	"github.com/signalsfoundry/orrery/core"
	"github.com/signalsfoundry/orrery/internal/logging"
	"github.com/signalsfoundry/orrery/kb"
	"github.com/signalsfoundry/orrery/model"
)

func planet(id string, period float64) *model.BodyDefinition {
	return &model.BodyDefinition{
		ID:           id,
		Kind:         model.KindPlanet,
		DisplayScale: 1,
		OrbitPeriod:  model.Period(period),
	}
}

func newTestState(t *testing.T, defs []*model.BodyDefinition, opts ...SceneStateOption) (*SceneState, *kb.KnowledgeBase) {
	t.Helper()
	store := kb.NewKnowledgeBase()
	if _, err := kb.Populate(store, defs); err != nil {
		t.Fatalf("Populate: %v", err)
	}
	s := NewSceneState(store, core.NewAnimationWorld(), logging.Noop(), opts...)
	t.Cleanup(s.Close)
	return s, store
}

func step(t *testing.T, s *SceneState, elapsed float64) {
	t.Helper()
	if err := s.Frame(context.Background(), elapsed); err != nil {
		t.Fatalf("Frame(%v): %v", elapsed, err)
	}
}

package kb

import "github.com/signalsfoundry/orrery/model"

// ISS element set used for the default satellite overlay.
const (
	issTLE1 = "1 25544U 98067A   21275.59097222  .00000204  00000-0  10270-4 0  9990"
	issTLE2 = "2 25544  51.6459 115.9059 0001817  61.3028  35.9198 15.49370953257760"
)

// DefaultBodies returns the built-in solar system table. Each call
// returns fresh definitions that the caller may hand to a KB. Texture
// names are relative to the viewer's texture directory.
func DefaultBodies() []*model.BodyDefinition {
	return []*model.BodyDefinition{
		{
			ID:           "sun",
			Name:         "Sun",
			Kind:         model.KindStar,
			DisplayScale: 10,
			Color:        "#FDB813",
			Texture:      "sun.jpg",
		},
		{
			ID:           "mercury",
			Name:         "Mercury",
			Kind:         model.KindPlanet,
			DisplayScale: 0.35,
			BasePosition: model.Position{X: -2.85, Y: 6.57, Z: 0.57},
			OrbitPeriod:  model.Period(14.4),
			Color:        "#B5B5B5",
			Texture:      "mercury.jpg",
		},
		{
			ID:           "venus",
			Name:         "Venus",
			Kind:         model.KindPlanet,
			DisplayScale: 0.87,
			BasePosition: model.Position{X: 10.11, Y: -8.33, Z: -0.86},
			OrbitPeriod:  model.Period(37.2),
			Color:        "#E8CDA2",
			Texture:      "venus.jpg",
		},
		{
			ID:           "earth",
			Name:         "Earth",
			Kind:         model.KindPlanet,
			DisplayScale: 0.91,
			BasePosition: model.Position{X: -19.42, Y: 4.74, Z: 0},
			OrbitPeriod:  model.Period(60),
			Color:        "#2B82C9",
			Texture:      "earth.jpg",
			Moons: []model.MoonDefinition{
				{ID: "moon", Kind: model.KindMoon, DisplayScale: 0.25, Distance: 2.5, Color: "#C8C8C8", Texture: "moons/earthMoon.jpg"},
				{
					ID:           "iss",
					Kind:         model.KindSatellite,
					DisplayScale: 0.03,
					Color:        "#FFFFFF",
					TLE:          &model.TLE{Line1: issTLE1, Line2: issTLE2},
				},
			},
		},
		{
			ID:           "mars",
			Name:         "Mars",
			Kind:         model.KindPlanet,
			DisplayScale: 0.49,
			BasePosition: model.Position{X: -29.86, Y: -5.15, Z: 0.61},
			OrbitPeriod:  model.Period(112.8),
			Color:        "#C1440E",
			Texture:      "mars.jpg",
			Moons: []model.MoonDefinition{
				{ID: "phobos", Kind: model.KindMoon, DisplayScale: 0.0016, Distance: 1.8, Color: "#8B7D6B", Texture: "moons/phobos.jpg"},
				{ID: "deimos", Kind: model.KindMoon, DisplayScale: 0.00086, Distance: 3.2, Color: "#A89F91", Texture: "moons/deimos.jpg"},
			},
		},
		{
			ID:           "jupiter",
			Name:         "Jupiter",
			Kind:         model.KindPlanet,
			DisplayScale: 10.49,
			BasePosition: model.Position{X: 78.29, Y: 55.15, Z: -1.69},
			OrbitPeriod:  model.Period(711.6),
			Color:        "#D8CA9D",
			Texture:      "jupiter.jpg",
		},
		{
			ID:           "saturn",
			Name:         "Saturn",
			Kind:         model.KindPlanet,
			DisplayScale: 8.63,
			BasePosition: model.Position{X: 91.78, Y: -171.20, Z: 8.40},
			OrbitPeriod:  model.Period(1767.6),
			Color:        "#F4D47C",
			Texture:      "saturn.jpg",
			Ring:         &model.RingDefinition{Inner: 1.2, Outer: 2.2, Color: "#C2B280", Texture: "misc/saturn-rings.png"},
		},
		{
			ID:           "uranus",
			Name:         "Uranus",
			Kind:         model.KindPlanet,
			DisplayScale: 3.64,
			BasePosition: model.Position{X: 348.49, Y: 42.32, Z: -3.74},
			OrbitPeriod:  model.Period(5040.6),
			Color:        "#D1E7E7",
			Texture:      "uranus.jpg",
		},
		{
			ID:           "neptune",
			Name:         "Neptune",
			Kind:         model.KindPlanet,
			DisplayScale: 3.53,
			BasePosition: model.Position{X: 527.35, Y: -330.94, Z: -8.92},
			OrbitPeriod:  model.Period(9888.0),
			Color:        "#3E66F9",
			Texture:      "neptune.jpg",
		},
	}
}

package geo

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"soldeser/internal/models"
)

func site(id uint, lat, lng, radius float64) models.Worksite {
	return models.Worksite{Model: gorm.Model{ID: id}, Name: "site", Latitude: lat, Longitude: lng, RadiusMeters: radius, IsActive: true}
}

func TestEvaluate_Boundary(t *testing.T) {
	center := Point{40.4168, -3.7038}
	edge := Point{40.4200, -3.7038}
	d := DistanceMeters(center, edge)

	onEdge := site(1, center.Latitude, center.Longitude, d)
	assert.True(t, Evaluate(edge, onEdge).IsWithin, "a point exactly at the radius is inside")

	oneMeterShort := site(1, center.Latitude, center.Longitude, d-1)
	assert.False(t, Evaluate(edge, oneMeterShort).IsWithin, "a point at radius+1m is outside")
}

func TestEvaluate_RoundsDisplayDistance(t *testing.T) {
	w := site(1, 40.4168, -3.7038, 150)

	v := Evaluate(Point{40.4200, -3.7038}, w)

	assert.False(t, v.IsWithin)
	assert.Equal(t, 356, v.DistanceMeters)
	assert.InDelta(t, 355.8, v.Exact, 0.5)

	v = Evaluate(Point{40.4168, -3.7038}, w)
	assert.True(t, v.IsWithin)
	assert.Equal(t, 0, v.DistanceMeters)
}

func TestNearest_Empty(t *testing.T) {
	assert.Nil(t, Nearest(Point{40, -3}, nil))
	assert.Nil(t, Nearest(Point{40, -3}, []models.Worksite{}))
}

func TestNearest_PicksClosest(t *testing.T) {
	candidates := []models.Worksite{
		site(1, 41.3874, 2.1686, 100),  // Barcelona
		site(2, 40.4170, -3.7040, 100), // next door
		site(3, 37.3891, -5.9845, 100), // Sevilla
	}

	m := Nearest(Point{40.4168, -3.7038}, candidates)

	require.NotNil(t, m)
	assert.Equal(t, uint(2), m.Worksite.ID)
	assert.Less(t, m.DistanceMeters, 50)
}

func TestNearest_TieGoesToFirst(t *testing.T) {
	position := Point{40.0, -3.0}
	// Mirror images across the meridian through position are equidistant.
	candidates := []models.Worksite{
		site(7, 40.0, -3.5, 100),
		site(4, 40.0, -2.5, 100),
	}
	require.Equal(t, DistanceMeters(position, Center(candidates[0])), DistanceMeters(position, Center(candidates[1])))

	for i := 0; i < 20; i++ {
		m := Nearest(position, candidates)
		require.NotNil(t, m)
		assert.Equal(t, uint(7), m.Worksite.ID)
	}
}

func TestBounds(t *testing.T) {
	assert.True(t, SpainBounds.Contains(Point{40.4168, -3.7038}))
	assert.True(t, SpainBounds.Contains(Point{28.1235, -15.4363})) // Las Palmas
	assert.False(t, SpainBounds.Contains(Point{48.8566, 2.3522}))  // Paris
	assert.True(t, Bounds{}.IsZero())
	assert.False(t, SpainBounds.IsZero())
}

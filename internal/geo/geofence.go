package geo

import (
	"math"

	"soldeser/internal/models"
)

// Verdict is the outcome of checking a position against one worksite.
type Verdict struct {
	IsWithin       bool    `json:"is_within"`
	DistanceMeters int     `json:"distance_meters"` // rounded for display
	Exact          float64 `json:"-"`
}

// Match is a worksite picked by Nearest together with its distance.
type Match struct {
	Worksite       models.Worksite
	Distance       float64
	DistanceMeters int
}

// Center returns the worksite's geofence center.
func Center(w models.Worksite) Point {
	return Point{Latitude: w.Latitude, Longitude: w.Longitude}
}

// Evaluate classifies position against the worksite's radius. The comparison uses
// the unrounded distance, so a point exactly on the boundary is inside.
func Evaluate(position Point, w models.Worksite) Verdict {
	d := DistanceMeters(position, Center(w))
	return Verdict{
		IsWithin:       d <= w.RadiusMeters,
		DistanceMeters: int(math.Round(d)),
		Exact:          d,
	}
}

// Nearest returns the candidate closest to position, or nil when there are no candidates.
// Ties go to the earliest candidate.
func Nearest(position Point, candidates []models.Worksite) *Match {
	var best *Match
	for _, w := range candidates {
		d := DistanceMeters(position, Center(w))
		if best == nil || d < best.Distance {
			best = &Match{Worksite: w, Distance: d, DistanceMeters: int(math.Round(d))}
		}
	}
	return best
}

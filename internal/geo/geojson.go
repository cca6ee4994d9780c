package geo

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/twpayne/go-geom"
	gjson "github.com/twpayne/go-geom/encoding/geojson"

	"soldeser/internal/models"
)

// WorksitesGeoJSON renders worksites as a FeatureCollection of points, one per site,
// carrying the geofence radius so the mobile app can evaluate fences offline.
func WorksitesGeoJSON(sites []models.Worksite) ([]byte, error) {
	fc := gjson.FeatureCollection{Features: make([]*gjson.Feature, 0, len(sites))}
	for _, w := range sites {
		pt := geom.NewPointFlat(geom.XY, []float64{w.Longitude, w.Latitude})
		fc.Features = append(fc.Features, &gjson.Feature{
			ID:       strconv.FormatUint(uint64(w.ID), 10),
			Geometry: pt,
			Properties: map[string]interface{}{
				"name":          w.Name,
				"address":       w.Address,
				"city":          w.City,
				"radius_meters": w.RadiusMeters,
			},
		})
	}
	return json.Marshal(&fc)
}

// PointFromGeoJSON parses a GeoJSON Point geometry into a Point.
func PointFromGeoJSON(raw string) (Point, error) {
	if raw == "" {
		return Point{}, errors.New("empty geometry")
	}
	var g geom.T
	if err := gjson.Unmarshal([]byte(raw), &g); err != nil {
		return Point{}, fmt.Errorf("invalid geojson: %w", err)
	}
	pt, ok := g.(*geom.Point)
	if !ok {
		return Point{}, fmt.Errorf("expected Point geometry, got %T", g)
	}
	p := Point{Latitude: pt.Y(), Longitude: pt.X()}
	if !ValidCoordinates(p) {
		return Point{}, fmt.Errorf("coordinates out of range: lat %v, lng %v", p.Latitude, p.Longitude)
	}
	return p, nil
}

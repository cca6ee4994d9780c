package geo

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"soldeser/internal/models"
)

func TestWorksitesGeoJSON(t *testing.T) {
	sites := []models.Worksite{site(3, 40.4168, -3.7038, 150)}
	sites[0].Name = "Obra Sol"

	raw, err := WorksitesGeoJSON(sites)
	require.NoError(t, err)

	var doc struct {
		Type     string `json:"type"`
		Features []struct {
			ID       string `json:"id"`
			Geometry struct {
				Type        string    `json:"type"`
				Coordinates []float64 `json:"coordinates"`
			} `json:"geometry"`
			Properties map[string]interface{} `json:"properties"`
		} `json:"features"`
	}
	require.NoError(t, json.Unmarshal(raw, &doc))

	assert.Equal(t, "FeatureCollection", doc.Type)
	require.Len(t, doc.Features, 1)
	f := doc.Features[0]
	assert.Equal(t, "3", f.ID)
	assert.Equal(t, "Point", f.Geometry.Type)
	assert.Equal(t, []float64{-3.7038, 40.4168}, f.Geometry.Coordinates)
	assert.Equal(t, "Obra Sol", f.Properties["name"])
	assert.Equal(t, 150.0, f.Properties["radius_meters"])
}

func TestPointFromGeoJSON(t *testing.T) {
	p, err := PointFromGeoJSON(`{"type":"Point","coordinates":[-3.7038,40.4168]}`)
	require.NoError(t, err)
	assert.Equal(t, Point{Latitude: 40.4168, Longitude: -3.7038}, p)

	_, err = PointFromGeoJSON(`{"type":"LineString","coordinates":[[0,0],[1,1]]}`)
	assert.Error(t, err)

	_, err = PointFromGeoJSON("")
	assert.Error(t, err)

	_, err = PointFromGeoJSON(`{"type":"Point","coordinates":[500,200]}`)
	assert.Error(t, err)

	edge, err := PointFromGeoJSON(`{"type":"Point","coordinates":[180,-90]}`)
	require.NoError(t, err)
	assert.Equal(t, Point{Latitude: -90, Longitude: 180}, edge)
}

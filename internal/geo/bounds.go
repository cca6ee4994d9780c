package geo

// Bounds is a lat/lng rectangle used for the "suspicious coordinates" advisory.
type Bounds struct {
	MinLat, MaxLat float64
	MinLng, MaxLng float64
}

// SpainBounds covers the peninsula, the Balearics and the Canary Islands.
var SpainBounds = Bounds{MinLat: 27.0, MaxLat: 44.0, MinLng: -18.5, MaxLng: 5.0}

// IsZero reports whether no bounds were configured.
func (b Bounds) IsZero() bool {
	return b == Bounds{}
}

// Contains reports whether p lies inside b (edges included).
func (b Bounds) Contains(p Point) bool {
	return p.Latitude >= b.MinLat && p.Latitude <= b.MaxLat &&
		p.Longitude >= b.MinLng && p.Longitude <= b.MaxLng
}

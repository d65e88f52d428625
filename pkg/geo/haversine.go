package geo

import "math"

const earthRadiusMeters = 6_371_000.0

// metersPerDegreeLat is the length of one degree of latitude.
const metersPerDegreeLat = math.Pi / 180 * earthRadiusMeters

// Haversine returns the great-circle distance in meters between two points.
func Haversine(lat1, lon1, lat2, lon2 float64) float64 {
	lat1r := lat1 * math.Pi / 180
	lat2r := lat2 * math.Pi / 180
	dLat := (lat2 - lat1) * math.Pi / 180
	dLon := (lon2 - lon1) * math.Pi / 180

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1r)*math.Cos(lat2r)*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return earthRadiusMeters * c
}

// RoadLength returns the haversine distance rounded to whole meters, never
// less than 1 so that distinct points never yield a free road.
func RoadLength(lat1, lon1, lat2, lon2 float64) int64 {
	m := int64(math.Round(Haversine(lat1, lon1, lat2, lon2)))
	if m < 1 {
		return 1
	}
	return m
}

// BoundingBox returns the [lat, lon] corners of a box that contains every
// point within radius meters of (lat, lon). Longitude span is clamped near
// the poles.
func BoundingBox(lat, lon, radius float64) (minPt, maxPt [2]float64) {
	dLat := radius / metersPerDegreeLat
	cosLat := math.Cos(lat * math.Pi / 180)
	dLon := 180.0
	if cosLat > 1e-9 {
		dLon = math.Min(180, dLat/cosLat)
	}
	return [2]float64{lat - dLat, lon - dLon}, [2]float64{lat + dLat, lon + dLon}
}

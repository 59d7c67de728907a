// Package geo provides great-circle distance calculation between coordinates.
package geo

import (
	"fmt"
	"math"
)

// earthRadiusKm is the mean Earth radius used by the haversine formula.
const earthRadiusKm = 6371.0

// Distance returns the haversine distance in kilometres between two points.
// Latitudes must be within [-90, 90] and longitudes within [-180, 180];
// out-of-range input is an error, never a silent clamp.
func Distance(lat1, lon1, lat2, lon2 float64) (float64, error) {
	for _, lat := range []float64{lat1, lat2} {
		if lat < -90 || lat > 90 {
			return 0, fmt.Errorf("latitude %v out of range [-90, 90]", lat)
		}
	}
	for _, lon := range []float64{lon1, lon2} {
		if lon < -180 || lon > 180 {
			return 0, fmt.Errorf("longitude %v out of range [-180, 180]", lon)
		}
	}

	phi1 := lat1 * math.Pi / 180
	phi2 := lat2 * math.Pi / 180
	dPhi := (lat2 - lat1) * math.Pi / 180
	dLambda := (lon2 - lon1) * math.Pi / 180

	a := math.Sin(dPhi/2)*math.Sin(dPhi/2) +
		math.Cos(phi1)*math.Cos(phi2)*math.Sin(dLambda/2)*math.Sin(dLambda/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return earthRadiusKm * c, nil
}

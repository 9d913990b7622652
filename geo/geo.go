package geo

import (
	"math"
	"sort"
)

// EarthRadiusKm is Earth's radius in kilometres for the Haversine formula.
const EarthRadiusKm = 6371.0

// HaversineKm calculates the great-circle distance between two points on a
// spherical earth in kilometres. The spherical approximation is fine at
// delivery-radius scales (<= 50 km).
func HaversineKm(lat1, lng1, lat2, lng2 float64) float64 {
	const degToRad = math.Pi / 180
	dLat := (lat2 - lat1) * degToRad
	dLng := (lng2 - lng1) * degToRad
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1*degToRad)*math.Cos(lat2*degToRad)*math.Sin(dLng/2)*math.Sin(dLng/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return EarthRadiusKm * c
}

// Candidate is anything with an id and an optional location. Nil coordinates
// mean the location is unknown.
type Candidate struct {
	ID  string
	Lat *float64
	Lng *float64
}

// Match is a candidate that survived the radius filter.
type Match struct {
	ID         string
	DistanceKm float64
}

// Nearby returns the candidates within radiusKm of the origin, sorted by
// ascending distance. Candidates without a location are skipped. The sort is
// stable, so ties keep their input order.
func Nearby(originLat, originLng float64, candidates []Candidate, radiusKm float64) []Match {
	matches := make([]Match, 0, len(candidates))
	for _, c := range candidates {
		if c.Lat == nil || c.Lng == nil {
			continue
		}
		d := HaversineKm(originLat, originLng, *c.Lat, *c.Lng)
		if d <= radiusKm {
			matches = append(matches, Match{ID: c.ID, DistanceKm: d})
		}
	}
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].DistanceKm < matches[j].DistanceKm
	})
	return matches
}

// Package geo holds the pure geometric routines used to shape retrieved
// candidates into day-sized, low-backtracking groups. No I/O happens here;
// everything is deterministic for identical input ordering.
package geo

import (
	"math"

	"github.com/tripweaver/tripweaver/internal/types"
)

const (
	earthRadiusKm = 6371.0088

	maxKMeansRounds = 10
	convergenceKm   = 0.1
)

// Distance returns the great-circle (haversine) distance between two
// coordinates in kilometres.
func Distance(a, b types.Coordinates) float64 {
	lat1 := a.Latitude * math.Pi / 180
	lat2 := b.Latitude * math.Pi / 180
	dLat := (b.Latitude - a.Latitude) * math.Pi / 180
	dLon := (b.Longitude - a.Longitude) * math.Pi / 180

	sinLat := math.Sin(dLat / 2)
	sinLon := math.Sin(dLon / 2)
	h := sinLat*sinLat + math.Cos(lat1)*math.Cos(lat2)*sinLon*sinLon
	return 2 * earthRadiusKm * math.Asin(math.Min(1, math.Sqrt(h)))
}

// Centroid returns the arithmetic mean coordinate of the given candidates.
// ok is false for an empty input.
func Centroid(points []types.Candidate) (types.Coordinates, bool) {
	if len(points) == 0 {
		return types.Coordinates{}, false
	}
	var sumLat, sumLon float64
	for _, p := range points {
		sumLat += p.Coordinates.Latitude
		sumLon += p.Coordinates.Longitude
	}
	n := float64(len(points))
	return types.Coordinates{Latitude: sumLat / n, Longitude: sumLon / n}, true
}

// Cluster partitions points into at most k geographically coherent clusters
// using constrained k-means. Centroids are seeded by evenly indexing the input
// order so identical inputs always produce identical assignments. Empty
// clusters are dropped and the remainder renumbered densely from 0.
func Cluster(points []types.Candidate, k int) []types.DayCluster {
	if len(points) == 0 {
		return nil
	}
	if k < 1 {
		k = 1
	}
	if k >= len(points) {
		clusters := make([]types.DayCluster, len(points))
		for i, p := range points {
			clusters[i] = types.DayCluster{
				DayIndex: i,
				Centroid: p.Coordinates,
				Members:  []types.Candidate{p},
			}
		}
		return clusters
	}

	centroids := make([]types.Coordinates, k)
	for i := 0; i < k; i++ {
		centroids[i] = points[i*len(points)/k].Coordinates
	}

	assignments := make([]int, len(points))
	for round := 0; round < maxKMeansRounds; round++ {
		// Assignment step: nearest centroid, ties go to the lowest index.
		for i, p := range points {
			best := 0
			bestDist := Distance(p.Coordinates, centroids[0])
			for j := 1; j < k; j++ {
				if d := Distance(p.Coordinates, centroids[j]); d < bestDist {
					best, bestDist = j, d
				}
			}
			assignments[i] = best
		}

		// Update step: recompute centroids, track movement for convergence.
		converged := true
		for j := 0; j < k; j++ {
			var members []types.Candidate
			for i, p := range points {
				if assignments[i] == j {
					members = append(members, p)
				}
			}
			next, ok := Centroid(members)
			if !ok {
				continue // empty cluster keeps its old centroid this round
			}
			if Distance(centroids[j], next) > convergenceKm {
				converged = false
			}
			centroids[j] = next
		}
		if converged {
			break
		}
	}

	clusters := make([]types.DayCluster, 0, k)
	for j := 0; j < k; j++ {
		var members []types.Candidate
		for i, p := range points {
			if assignments[i] == j {
				members = append(members, p)
			}
		}
		if len(members) == 0 {
			continue
		}
		centroid, _ := Centroid(members)
		clusters = append(clusters, types.DayCluster{
			DayIndex: len(clusters),
			Centroid: centroid,
			Members:  members,
		})
	}
	return clusters
}

// FilterByRadius keeps points within maxKm of the centroid, but never returns
// fewer than min(floor, len(points)): when the radius cut would undershoot the
// floor, the nearest points are kept regardless of distance. Output preserves
// the input order.
func FilterByRadius(points []types.Candidate, centroid types.Coordinates, maxKm float64, floor int) []types.Candidate {
	if len(points) == 0 {
		return nil
	}
	if floor > len(points) {
		floor = len(points)
	}

	keep := make([]bool, len(points))
	kept := 0
	for i, p := range points {
		if Distance(p.Coordinates, centroid) <= maxKm {
			keep[i] = true
			kept++
		}
	}

	// Top up to the floor with the nearest excluded points.
	for kept < floor {
		best := -1
		bestDist := math.Inf(1)
		for i, p := range points {
			if keep[i] {
				continue
			}
			if d := Distance(p.Coordinates, centroid); d < bestDist {
				best, bestDist = i, d
			}
		}
		keep[best] = true
		kept++
	}

	out := make([]types.Candidate, 0, kept)
	for i, p := range points {
		if keep[i] {
			out = append(out, p)
		}
	}
	return out
}

// NearestNeighborOrder orders points as a greedy tour: start at the first
// point, then repeatedly append the unvisited point nearest to the last one
// (ties go to the earliest original index). Every input point appears exactly
// once. O(n^2), fine for daily stop counts.
func NearestNeighborOrder(points []types.Candidate) []types.Candidate {
	if len(points) < 2 {
		return append([]types.Candidate(nil), points...)
	}

	visited := make([]bool, len(points))
	tour := make([]types.Candidate, 0, len(points))
	current := 0
	visited[0] = true
	tour = append(tour, points[0])

	for len(tour) < len(points) {
		next := -1
		nextDist := math.Inf(1)
		for i := range points {
			if visited[i] {
				continue
			}
			if d := Distance(points[current].Coordinates, points[i].Coordinates); d < nextDist {
				next, nextDist = i, d
			}
		}
		visited[next] = true
		tour = append(tour, points[next])
		current = next
	}
	return tour
}

// TourLength sums consecutive haversine distances along an ordered tour.
func TourLength(points []types.Candidate) float64 {
	var total float64
	for i := 1; i < len(points); i++ {
		total += Distance(points[i-1].Coordinates, points[i].Coordinates)
	}
	return total
}

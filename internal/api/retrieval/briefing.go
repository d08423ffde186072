package retrieval

import (
	"fmt"
	"sort"
	"strings"

	"github.com/tripweaver/tripweaver/internal/api/geo"
	"github.com/tripweaver/tripweaver/internal/types"
)

// FormatBriefing renders the retrieved candidates into the grounding document
// handed to the language model. With a day count the attractions are clustered
// geographically, trimmed to each day's radius (respecting the floor) and
// ordered as a greedy tour; without one they are listed flat. Restaurants are
// always a flat section after the attraction days. Pure and byte-stable for
// identical inputs so prompts can be cached and asserted on.
func (s *ServiceImpl) FormatBriefing(result *types.RetrievalResult, days int) string {
	var b strings.Builder

	if days > 0 && len(result.Attractions) > 0 {
		fmt.Fprintf(&b, "=== 行程候選景點（規劃 %d 天）===\n", days)
		bySimilarity := similarityIndex(result.Attractions)
		for _, cluster := range s.clusterForDays(result.Attractions, days) {
			fmt.Fprintf(&b, "\n【第 %d 天候選】中心點 (%.4f, %.4f)\n",
				cluster.DayIndex+1, cluster.Centroid.Latitude, cluster.Centroid.Longitude)
			for _, m := range cluster.Members {
				writeCandidateLine(&b, m, bySimilarity[m.Name])
			}
		}
	} else if len(result.Attractions) > 0 {
		b.WriteString("=== 候選景點 ===\n")
		for _, a := range result.Attractions {
			writeCandidateLine(&b, a.Candidate, a.Similarity)
		}
	}

	if len(result.Restaurants) > 0 {
		b.WriteString("\n【美食候選】\n")
		for _, r := range result.Restaurants {
			writeCandidateLine(&b, r.Candidate, r.Similarity)
		}
	}

	if b.Len() == 0 {
		b.WriteString("（無符合條件的候選資料）\n")
	}
	return b.String()
}

// clusterForDays groups attractions into day clusters, applies the radius
// filter with the policy floor, and orders each day's stops starting near the
// centroid.
func (s *ServiceImpl) clusterForDays(attractions []types.ScoredCandidate, days int) []types.DayCluster {
	points := make([]types.Candidate, len(attractions))
	for i, a := range attractions {
		points[i] = a.Candidate
	}

	clusters := geo.Cluster(points, days)
	for i, cluster := range clusters {
		members := geo.FilterByRadius(cluster.Members, cluster.Centroid, s.policy.MaxDayRadiusKm, s.policy.MinPerDay)

		// Pre-sort by distance to the centroid so the greedy tour starts
		// near the middle of the day's area.
		sort.SliceStable(members, func(a, b int) bool {
			return geo.Distance(members[a].Coordinates, cluster.Centroid) <
				geo.Distance(members[b].Coordinates, cluster.Centroid)
		})
		clusters[i].Members = geo.NearestNeighborOrder(members)
	}
	return clusters
}

func similarityIndex(scored []types.ScoredCandidate) map[string]float64 {
	idx := make(map[string]float64, len(scored))
	for _, sc := range scored {
		idx[sc.Name] = sc.Similarity
	}
	return idx
}

func writeCandidateLine(b *strings.Builder, c types.Candidate, similarity float64) {
	fmt.Fprintf(b, "- %s｜%s｜%s%s｜(%.4f, %.4f)｜相關度 %.2f", c.Name, c.Category, c.District, c.Address,
		c.Coordinates.Latitude, c.Coordinates.Longitude, similarity)
	if c.Rating != nil {
		fmt.Fprintf(b, "｜評分 %.1f", *c.Rating)
		if c.RatingCount != nil {
			fmt.Fprintf(b, " (%d)", *c.RatingCount)
		}
	}
	b.WriteString("\n")
	if c.Description != "" {
		fmt.Fprintf(b, "  %s\n", c.Description)
	}
	if len(c.Features) > 0 {
		fmt.Fprintf(b, "  特色: %s\n", strings.Join(c.Features, "、"))
	}
}

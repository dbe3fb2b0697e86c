package assess

import "sort"

// clusterBand is the maximum score distance from a cluster's first member for
// adjacent candidates to join it.
const clusterBand = 0.05

// densityBonus scales a cluster's rank by its size. Many near-identical
// corpus rules agreeing on a score are stronger evidence than one isolated
// high scorer that may be an embedding artifact.
const densityBonus = 0.1

type cluster struct {
	members []MatchResult
	rank    float64
}

// ClusterCandidates reorders a similarity-sorted candidate list so that dense
// clusters of near-identical scores surface first. Adjacent candidates within
// clusterBand of the cluster's first member form a cluster; clusters of two
// or more are ranked by average similarity times a size bonus and emitted
// first, then the remaining singletons follow in their original order.
func ClusterCandidates(candidates []MatchResult) []MatchResult {
	if len(candidates) < 2 {
		return candidates
	}

	var clusters []cluster
	var singles []MatchResult

	i := 0
	for i < len(candidates) {
		anchor := candidates[i].Weighted
		j := i + 1
		for j < len(candidates) && anchor-candidates[j].Weighted <= clusterBand {
			j++
		}

		if j-i >= 2 {
			members := append([]MatchResult(nil), candidates[i:j]...)
			clusters = append(clusters, cluster{
				members: members,
				rank:    averageWeighted(members) * (1 + densityBonus*float64(len(members))),
			})
		} else {
			singles = append(singles, candidates[i])
		}
		i = j
	}

	sort.SliceStable(clusters, func(a, b int) bool {
		return clusters[a].rank > clusters[b].rank
	})

	out := make([]MatchResult, 0, len(candidates))
	for _, c := range clusters {
		sort.SliceStable(c.members, func(a, b int) bool {
			return c.members[a].Weighted > c.members[b].Weighted
		})
		out = append(out, c.members...)
	}
	return append(out, singles...)
}

func averageWeighted(members []MatchResult) float64 {
	var sum float64
	for _, m := range members {
		sum += m.Weighted
	}
	return sum / float64(len(members))
}

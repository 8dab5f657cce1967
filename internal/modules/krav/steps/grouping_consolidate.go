package steps

import "github.com/google/uuid"

// ConsolidateBatches merges groups from sub-batches of the same category by
// unioning members and averaging similarity scores. Only needed when a
// category was too large to send in one clustering call.
func ConsolidateBatches(groups []Group) []Group {
	if len(groups) < 2 {
		return groups
	}
	byCategory := map[string][]Group{}
	order := []string{}
	for _, g := range groups {
		if _, ok := byCategory[g.Category]; !ok {
			order = append(order, g.Category)
		}
		byCategory[g.Category] = append(byCategory[g.Category], g)
	}

	out := make([]Group, 0, len(groups))
	for _, category := range order {
		batch := byCategory[category]
		if len(batch) == 1 {
			out = append(out, batch[0])
			continue
		}
		merged := Group{
			GroupID:          batch[0].GroupID,
			RepresentativeID: batch[0].RepresentativeID,
			Category:         category,
		}
		seen := map[uuid.UUID]bool{}
		scoreSum := 0
		for _, g := range batch {
			scoreSum += g.SimilarityScore
			for _, id := range g.Members {
				if !seen[id] {
					seen[id] = true
					merged.Members = append(merged.Members, id)
				}
			}
		}
		merged.SimilarityScore = scoreSum / len(batch)
		out = append(out, merged)
	}
	return out
}

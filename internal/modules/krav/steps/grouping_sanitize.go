package steps

import (
	"github.com/google/uuid"
)

// Group is one cluster of near-duplicate requirements as produced by a
// clustering run. Ephemeral: it is materialized onto requirement rows, never
// stored as its own entity.
type Group struct {
	GroupID          uuid.UUID   `json:"group_id"`
	RepresentativeID uuid.UUID   `json:"representative_id"`
	Members          []uuid.UUID `json:"members"`
	SimilarityScore  int         `json:"similarity_score"`
	Category         string      `json:"category"`
}

// RawGroup mirrors the model's reply before sanitation. Scores may arrive as
// 0-1 fractions or 0-100 values, members may repeat or be unknown.
type RawGroup struct {
	RepresentativeID string   `json:"representativeId"`
	Members          []string `json:"members"`
	SimilarityScore  float64  `json:"similarityScore"`
	Category         string   `json:"category"`
}

// RawClusterOutput is the model's reply for one category batch.
type RawClusterOutput struct {
	Groups                []RawGroup `json:"groups"`
	UngroupedRequirements []string   `json:"ungroupedRequirements"`
}

type SanitizeOutcome string

const (
	// SanitizeValid means the output already satisfied every rule.
	SanitizeValid SanitizeOutcome = "valid"
	// SanitizeRepaired means violations were found and fixed locally.
	SanitizeRepaired SanitizeOutcome = "repaired"
	// SanitizeRejected means nothing usable remained; everything is ungrouped.
	SanitizeRejected SanitizeOutcome = "rejected"
)

type SanitizeResult struct {
	Outcome   SanitizeOutcome
	Groups    []Group
	Ungrouped []uuid.UUID
}

// SanitizeClusterOutput enforces the clustering contract on untrusted model
// output: deduplicated members, minimum group size 2, first assignment wins
// across groups, scores normalized to 0-100 integers, and full coverage of
// the known id set. Pure; no network dependency.
func SanitizeClusterOutput(raw RawClusterOutput, knownIDs []uuid.UUID, category string) SanitizeResult {
	known := make(map[uuid.UUID]bool, len(knownIDs))
	for _, id := range knownIDs {
		known[id] = true
	}

	repaired := false
	assigned := make(map[uuid.UUID]bool, len(knownIDs))
	groups := make([]Group, 0, len(raw.Groups))

	for _, rg := range raw.Groups {
		members := make([]uuid.UUID, 0, len(rg.Members))
		seen := map[uuid.UUID]bool{}
		for _, m := range rg.Members {
			id, err := uuid.Parse(m)
			if err != nil || !known[id] {
				repaired = true
				continue
			}
			if seen[id] {
				repaired = true
				continue
			}
			if assigned[id] {
				// First assignment wins; drop from later groups.
				repaired = true
				continue
			}
			seen[id] = true
			members = append(members, id)
		}
		if len(members) < 2 {
			repaired = true
			continue
		}
		for _, id := range members {
			assigned[id] = true
		}

		rep := uuid.Nil
		if id, err := uuid.Parse(rg.RepresentativeID); err == nil && seen[id] {
			rep = id
		} else {
			rep = members[0]
			repaired = true
		}

		groups = append(groups, Group{
			GroupID:          uuid.New(),
			RepresentativeID: rep,
			Members:          members,
			SimilarityScore:  normalizeScore(rg.SimilarityScore),
			Category:         category,
		})
	}

	ungrouped := make([]uuid.UUID, 0, len(knownIDs))
	listed := map[uuid.UUID]bool{}
	for _, m := range raw.UngroupedRequirements {
		id, err := uuid.Parse(m)
		if err != nil || !known[id] || assigned[id] || listed[id] {
			repaired = true
			continue
		}
		listed[id] = true
		ungrouped = append(ungrouped, id)
	}
	// Coverage repair: anything missing from both sides becomes ungrouped.
	for _, id := range knownIDs {
		if !assigned[id] && !listed[id] {
			listed[id] = true
			ungrouped = append(ungrouped, id)
			repaired = true
		}
	}

	outcome := SanitizeValid
	if repaired {
		outcome = SanitizeRepaired
	}
	if len(groups) == 0 && len(raw.Groups) > 0 {
		outcome = SanitizeRejected
	}
	return SanitizeResult{Outcome: outcome, Groups: groups, Ungrouped: ungrouped}
}

// normalizeScore maps a model-reported similarity to an integer 0-100.
// Values in (0,1] are treated as fractions.
func normalizeScore(score float64) int {
	if score > 0 && score <= 1 {
		score = score * 100
	}
	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}
	return int(score + 0.5)
}

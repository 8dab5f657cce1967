package steps

import (
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/kravdesk/kravdesk-backend/internal/domain"
)

const (
	compareMemberMinScore    = 80
	compareTokenOverlapFloor = 0.30
	compareTokenMinLength    = 3
)

// CompareResult is the verdict for one draft against the historical corpus.
type CompareResult struct {
	Draft                    Draft                 `json:"draft"`
	RequirementKey           string                `json:"requirement_key"`
	MatchedExactRequirements []*domain.Requirement `json:"matchedExactRequirements"`
	IsIdentical              bool                  `json:"isIdentical"`
	SimilarityScore          float64               `json:"similarityScore"`
	AIGroupedRequirements    []*domain.Requirement `json:"aiGroupedRequirements,omitempty"`
}

// CompareAgainstHistory matches drafts from a new upload against the
// persisted, grouped corpus. Exact text matches expand into the matched
// requirements' full groups; non-matches fall back to a category, score and
// token-overlap heuristic over group members. Pure.
func CompareAgainstHistory(drafts []Draft, history []*domain.Requirement) []CompareResult {
	byText := map[string][]*domain.Requirement{}
	groups := map[uuid.UUID][]*domain.Requirement{}
	for _, r := range history {
		if r == nil {
			continue
		}
		byText[normalizeText(r.Text)] = append(byText[normalizeText(r.Text)], r)
		if r.GroupID != nil {
			groups[*r.GroupID] = append(groups[*r.GroupID], r)
		}
	}

	results := make([]CompareResult, 0, len(drafts))
	for _, draft := range drafts {
		res := CompareResult{
			Draft:                    draft,
			RequirementKey:           GenerateRequirementKey(draft.SheetName, draft.SheetOrder, draft.SheetRowIndex, draft.Text),
			MatchedExactRequirements: []*domain.Requirement{},
		}

		exact := byText[normalizeText(draft.Text)]
		if len(exact) > 0 {
			res.IsIdentical = true
			res.SimilarityScore = 1.0
			res.MatchedExactRequirements = exact
			res.AIGroupedRequirements = expandExactGroups(exact, groups)
		} else {
			res.AIGroupedRequirements = expandHeuristicGroups(draft, groups)
			if len(res.AIGroupedRequirements) > 0 {
				res.SimilarityScore = 0.7
			}
		}
		if len(res.AIGroupedRequirements) == 0 {
			res.AIGroupedRequirements = nil
		}
		results = append(results, res)
	}
	return results
}

// expandExactGroups unions in every member of every group a matched
// requirement belongs to, deduplicated by id.
func expandExactGroups(matched []*domain.Requirement, groups map[uuid.UUID][]*domain.Requirement) []*domain.Requirement {
	seen := map[uuid.UUID]bool{}
	var out []*domain.Requirement
	for _, r := range matched {
		if r.GroupID == nil {
			continue
		}
		members := groups[*r.GroupID]
		if len(members) < 2 {
			continue
		}
		for _, m := range members {
			if !seen[m.ID] {
				seen[m.ID] = true
				out = append(out, m)
			}
		}
	}
	return out
}

// expandHeuristicGroups pulls in full groups where any member shares the
// draft's best category, scores at least the similarity floor, and overlaps
// the draft's vocabulary.
func expandHeuristicGroups(draft Draft, groups map[uuid.UUID][]*domain.Requirement) []*domain.Requirement {
	bestCategory := draft.PrecedingCategory()
	if strings.TrimSpace(bestCategory) == "" {
		bestCategory = draft.SheetCategory()
	}

	groupIDs := make([]uuid.UUID, 0, len(groups))
	for id := range groups {
		groupIDs = append(groupIDs, id)
	}
	sort.Slice(groupIDs, func(i, j int) bool { return groupIDs[i].String() < groupIDs[j].String() })

	seen := map[uuid.UUID]bool{}
	var out []*domain.Requirement
	for _, id := range groupIDs {
		members := groups[id]
		if len(members) < 2 {
			continue
		}
		qualified := false
		for _, m := range members {
			if m.Category != bestCategory {
				continue
			}
			if m.SimilarityScore == nil || *m.SimilarityScore < compareMemberMinScore {
				continue
			}
			if TokenOverlap(draft.Text, m.Text) > compareTokenOverlapFloor {
				qualified = true
				break
			}
		}
		if !qualified {
			continue
		}
		for _, m := range members {
			if !seen[m.ID] {
				seen[m.ID] = true
				out = append(out, m)
			}
		}
	}
	return out
}

// TokenOverlap measures shared vocabulary between two texts: the number of
// common lowercase words longer than three characters over the larger
// word-set size.
func TokenOverlap(a, b string) float64 {
	wordsA := tokenSet(a)
	wordsB := tokenSet(b)
	if len(wordsA) == 0 || len(wordsB) == 0 {
		return 0
	}
	common := 0
	for w := range wordsA {
		if wordsB[w] {
			common++
		}
	}
	max := len(wordsA)
	if len(wordsB) > max {
		max = len(wordsB)
	}
	return float64(common) / float64(max)
}

func tokenSet(text string) map[string]bool {
	out := map[string]bool{}
	for _, w := range strings.Fields(strings.ToLower(text)) {
		w = strings.Trim(w, ".,;:!?()\"'")
		if len([]rune(w)) > compareTokenMinLength {
			out[w] = true
		}
	}
	return out
}

func normalizeText(text string) string {
	return strings.ToLower(strings.TrimSpace(text))
}

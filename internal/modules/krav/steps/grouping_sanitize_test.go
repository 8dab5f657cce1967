package steps

import (
	"testing"

	"github.com/google/uuid"
)

func ids(n int) []uuid.UUID {
	out := make([]uuid.UUID, n)
	for i := range out {
		out[i] = uuid.New()
	}
	return out
}

func strs(in []uuid.UUID) []string {
	out := make([]string, len(in))
	for i, id := range in {
		out[i] = id.String()
	}
	return out
}

func TestSanitizeClusterOutput_Valid(t *testing.T) {
	known := ids(4)
	raw := RawClusterOutput{
		Groups: []RawGroup{{
			RepresentativeID: known[0].String(),
			Members:          strs(known[:3]),
			SimilarityScore:  85,
		}},
		UngroupedRequirements: []string{known[3].String()},
	}
	res := SanitizeClusterOutput(raw, known, "Säkerhetskrav")
	if res.Outcome != SanitizeValid {
		t.Fatalf("expected valid, got %s", res.Outcome)
	}
	if len(res.Groups) != 1 || len(res.Groups[0].Members) != 3 {
		t.Fatalf("unexpected groups: %+v", res.Groups)
	}
	if res.Groups[0].SimilarityScore != 85 {
		t.Fatalf("score = %d, want 85", res.Groups[0].SimilarityScore)
	}
	if res.Groups[0].Category != "Säkerhetskrav" {
		t.Fatalf("category = %q", res.Groups[0].Category)
	}
	if len(res.Ungrouped) != 1 || res.Ungrouped[0] != known[3] {
		t.Fatalf("unexpected ungrouped: %v", res.Ungrouped)
	}
}

func TestSanitizeClusterOutput_FractionalScore(t *testing.T) {
	known := ids(2)
	raw := RawClusterOutput{
		Groups: []RawGroup{{
			RepresentativeID: known[0].String(),
			Members:          strs(known),
			SimilarityScore:  0.92,
		}},
	}
	res := SanitizeClusterOutput(raw, known, "K")
	if len(res.Groups) != 1 {
		t.Fatalf("unexpected groups: %+v", res.Groups)
	}
	if res.Groups[0].SimilarityScore != 92 {
		t.Fatalf("score = %d, want 92", res.Groups[0].SimilarityScore)
	}
}

func TestSanitizeClusterOutput_ScoreClamped(t *testing.T) {
	known := ids(2)
	raw := RawClusterOutput{
		Groups: []RawGroup{{
			RepresentativeID: known[0].String(),
			Members:          strs(known),
			SimilarityScore:  240,
		}},
	}
	res := SanitizeClusterOutput(raw, known, "K")
	if res.Groups[0].SimilarityScore != 100 {
		t.Fatalf("score = %d, want 100", res.Groups[0].SimilarityScore)
	}
}

func TestSanitizeClusterOutput_DropsUnknownAndDuplicates(t *testing.T) {
	known := ids(3)
	raw := RawClusterOutput{
		Groups: []RawGroup{{
			RepresentativeID: known[0].String(),
			Members: []string{
				known[0].String(),
				known[0].String(), // duplicate in same group
				uuid.New().String(),
				"not-a-uuid",
				known[1].String(),
			},
			SimilarityScore: 80,
		}},
		UngroupedRequirements: []string{known[2].String()},
	}
	res := SanitizeClusterOutput(raw, known, "K")
	if res.Outcome != SanitizeRepaired {
		t.Fatalf("expected repaired, got %s", res.Outcome)
	}
	if len(res.Groups) != 1 || len(res.Groups[0].Members) != 2 {
		t.Fatalf("unexpected groups: %+v", res.Groups)
	}
}

func TestSanitizeClusterOutput_MinGroupSize(t *testing.T) {
	known := ids(2)
	raw := RawClusterOutput{
		Groups: []RawGroup{{
			RepresentativeID: known[0].String(),
			Members:          []string{known[0].String()},
			SimilarityScore:  90,
		}},
	}
	res := SanitizeClusterOutput(raw, known, "K")
	if res.Outcome != SanitizeRejected {
		t.Fatalf("expected rejected when no group survives, got %s", res.Outcome)
	}
	if len(res.Groups) != 0 {
		t.Fatalf("singleton group must be dissolved: %+v", res.Groups)
	}
	if len(res.Ungrouped) != 2 {
		t.Fatalf("coverage repair should list both ids, got %v", res.Ungrouped)
	}
}

func TestSanitizeClusterOutput_FirstAssignmentWins(t *testing.T) {
	known := ids(4)
	raw := RawClusterOutput{
		Groups: []RawGroup{
			{
				RepresentativeID: known[0].String(),
				Members:          strs(known[:2]),
				SimilarityScore:  90,
			},
			{
				RepresentativeID: known[1].String(),
				Members:          []string{known[1].String(), known[2].String(), known[3].String()},
				SimilarityScore:  88,
			},
		},
	}
	res := SanitizeClusterOutput(raw, known, "K")
	if res.Outcome != SanitizeRepaired {
		t.Fatalf("expected repaired, got %s", res.Outcome)
	}
	if len(res.Groups) != 2 {
		t.Fatalf("expected both groups to survive, got %+v", res.Groups)
	}
	second := res.Groups[1]
	for _, m := range second.Members {
		if m == known[1] {
			t.Fatalf("id assigned twice: %v", second.Members)
		}
	}
	if second.RepresentativeID != second.Members[0] {
		t.Fatalf("representative must fall back to first member, got %v", second.RepresentativeID)
	}
}

func TestSanitizeClusterOutput_CoverageRepair(t *testing.T) {
	known := ids(5)
	raw := RawClusterOutput{
		Groups: []RawGroup{{
			RepresentativeID: known[0].String(),
			Members:          strs(known[:2]),
			SimilarityScore:  85,
		}},
		// known[2:] never mentioned
	}
	res := SanitizeClusterOutput(raw, known, "K")
	if res.Outcome != SanitizeRepaired {
		t.Fatalf("expected repaired, got %s", res.Outcome)
	}
	total := len(res.Ungrouped)
	for _, g := range res.Groups {
		total += len(g.Members)
	}
	if total != len(known) {
		t.Fatalf("coverage broken: %d of %d ids accounted for", total, len(known))
	}
}

func TestSanitizeClusterOutput_EmptyModelOutputIsNotRejected(t *testing.T) {
	known := ids(3)
	res := SanitizeClusterOutput(RawClusterOutput{}, known, "K")
	if res.Outcome == SanitizeRejected {
		t.Fatalf("no groups from the model is legitimate, got rejected")
	}
	if len(res.Ungrouped) != 3 {
		t.Fatalf("expected all ids ungrouped, got %v", res.Ungrouped)
	}
}

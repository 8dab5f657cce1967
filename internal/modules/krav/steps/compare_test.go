package steps

import (
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/kravdesk/kravdesk-backend/internal/domain"
)

func histRequirement(text, category string, groupID *uuid.UUID, score *int) *domain.Requirement {
	now := time.Now().UTC()
	return &domain.Requirement{
		ID:              uuid.New(),
		Text:            text,
		Type:            domain.TypeSkall,
		Category:        category,
		GroupID:         groupID,
		SimilarityScore: score,
		FirstSeenDate:   now,
		LastSeenDate:    now,
	}
}

func ptrInt(v int) *int { return &v }

func ptrUUID(v uuid.UUID) *uuid.UUID { return &v }

func TestCompareAgainstHistory_ExactMatchExpandsGroup(t *testing.T) {
	gid := uuid.New()
	r1 := histRequirement("Systemet ska kryptera all data i vila.", "Säkerhetskrav", ptrUUID(gid), ptrInt(90))
	r2 := histRequirement("Lagrad data ska alltid vara krypterad.", "Säkerhetskrav", ptrUUID(gid), ptrInt(90))
	r3 := histRequirement("Kryptering av data i vila ska tillämpas.", "Säkerhetskrav", ptrUUID(gid), ptrInt(90))
	history := []*domain.Requirement{r1, r2, r3}

	drafts := []Draft{{
		Text:          "Systemet ska kryptera all data i vila.",
		Type:          domain.TypeSkall,
		Categories:    [2]string{"Krav", "Säkerhetskrav"},
		SheetName:     "Krav",
		SheetOrder:    0,
		SheetRowIndex: 3,
	}}
	results := CompareAgainstHistory(drafts, history)
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	res := results[0]
	if !res.IsIdentical {
		t.Fatalf("expected identical match")
	}
	if res.SimilarityScore != 1.0 {
		t.Fatalf("score = %v, want 1.0", res.SimilarityScore)
	}
	if len(res.MatchedExactRequirements) != 1 || res.MatchedExactRequirements[0].ID != r1.ID {
		t.Fatalf("unexpected exact matches: %+v", res.MatchedExactRequirements)
	}
	if len(res.AIGroupedRequirements) != 3 {
		t.Fatalf("expected full group expansion {r1,r2,r3}, got %d members", len(res.AIGroupedRequirements))
	}
	if res.RequirementKey == "" {
		t.Fatalf("requirement key must be set")
	}
}

func TestCompareAgainstHistory_ExactMatchCaseInsensitive(t *testing.T) {
	r1 := histRequirement("Systemet ska stödja engångsinloggning.", "Säkerhetskrav", nil, nil)
	drafts := []Draft{{
		Text:       "  SYSTEMET SKA STÖDJA ENGÅNGSINLOGGNING.  ",
		Categories: [2]string{"Krav", "Säkerhetskrav"},
		SheetName:  "Krav",
	}}
	results := CompareAgainstHistory(drafts, []*domain.Requirement{r1})
	if !results[0].IsIdentical {
		t.Fatalf("expected case and whitespace insensitive match")
	}
	if results[0].AIGroupedRequirements != nil {
		t.Fatalf("ungrouped match must not expand a group: %+v", results[0].AIGroupedRequirements)
	}
}

func TestCompareAgainstHistory_HeuristicExpansion(t *testing.T) {
	gid := uuid.New()
	r1 := histRequirement("Leverantören ska tillhandahålla incidenthantering dygnet runt.", "Säkerhetskrav", ptrUUID(gid), ptrInt(85))
	r2 := histRequirement("Incidenter ska hanteras av leverantören utan avbrott.", "Säkerhetskrav", ptrUUID(gid), ptrInt(85))
	history := []*domain.Requirement{r1, r2}

	drafts := []Draft{{
		Text:       "Leverantören ska erbjuda incidenthantering dygnet runt för alla system.",
		Categories: [2]string{"Krav", "Säkerhetskrav"},
		SheetName:  "Krav",
	}}
	results := CompareAgainstHistory(drafts, history)
	res := results[0]
	if res.IsIdentical {
		t.Fatalf("texts differ, must not be identical")
	}
	if len(res.AIGroupedRequirements) != 2 {
		t.Fatalf("expected heuristic group expansion, got %+v", res.AIGroupedRequirements)
	}
	if res.SimilarityScore != 0.7 {
		t.Fatalf("score = %v, want 0.7", res.SimilarityScore)
	}
}

func TestCompareAgainstHistory_HeuristicExpansionIsOrdered(t *testing.T) {
	gidA := uuid.New()
	gidB := uuid.New()
	if gidB.String() < gidA.String() {
		gidA, gidB = gidB, gidA
	}
	a1 := histRequirement("Leverantören ska tillhandahålla incidenthantering dygnet runt.", "Säkerhetskrav", ptrUUID(gidA), ptrInt(85))
	a2 := histRequirement("Incidenter ska hanteras av leverantören utan avbrott.", "Säkerhetskrav", ptrUUID(gidA), ptrInt(85))
	b1 := histRequirement("Incidenthantering ska erbjudas för alla system dygnet runt.", "Säkerhetskrav", ptrUUID(gidB), ptrInt(85))
	b2 := histRequirement("Alla system ska omfattas av incidenthantering.", "Säkerhetskrav", ptrUUID(gidB), ptrInt(85))
	history := []*domain.Requirement{b1, a1, b2, a2}

	drafts := []Draft{{
		Text:       "Leverantören ska erbjuda incidenthantering dygnet runt för alla system.",
		Categories: [2]string{"Krav", "Säkerhetskrav"},
		SheetName:  "Krav",
	}}
	want := []uuid.UUID{a1.ID, a2.ID, b1.ID, b2.ID}
	for run := 0; run < 2; run++ {
		got := CompareAgainstHistory(drafts, history)[0].AIGroupedRequirements
		if len(got) != len(want) {
			t.Fatalf("run %d: expected both groups expanded, got %+v", run, got)
		}
		for i, r := range got {
			if r.ID != want[i] {
				t.Fatalf("run %d: expanded members out of group-id order at %d: got %v, want %v", run, i, r.ID, want[i])
			}
		}
	}
}

func TestCompareAgainstHistory_HeuristicRequiresCategoryMatch(t *testing.T) {
	gid := uuid.New()
	r1 := histRequirement("Leverantören ska tillhandahålla incidenthantering dygnet runt.", "Driftskrav", ptrUUID(gid), ptrInt(85))
	r2 := histRequirement("Incidenter ska hanteras av leverantören utan avbrott.", "Driftskrav", ptrUUID(gid), ptrInt(85))

	drafts := []Draft{{
		Text:       "Leverantören ska erbjuda incidenthantering dygnet runt för alla system.",
		Categories: [2]string{"Krav", "Säkerhetskrav"},
		SheetName:  "Krav",
	}}
	results := CompareAgainstHistory(drafts, []*domain.Requirement{r1, r2})
	res := results[0]
	if res.AIGroupedRequirements != nil {
		t.Fatalf("category mismatch must block expansion: %+v", res.AIGroupedRequirements)
	}
	if res.SimilarityScore != 0.0 {
		t.Fatalf("score = %v, want 0.0", res.SimilarityScore)
	}
}

func TestCompareAgainstHistory_HeuristicRequiresScore(t *testing.T) {
	gid := uuid.New()
	r1 := histRequirement("Leverantören ska tillhandahålla incidenthantering dygnet runt.", "Säkerhetskrav", ptrUUID(gid), ptrInt(60))
	r2 := histRequirement("Incidenter ska hanteras av leverantören utan avbrott.", "Säkerhetskrav", ptrUUID(gid), ptrInt(60))

	drafts := []Draft{{
		Text:       "Leverantören ska erbjuda incidenthantering dygnet runt för alla system.",
		Categories: [2]string{"Krav", "Säkerhetskrav"},
		SheetName:  "Krav",
	}}
	results := CompareAgainstHistory(drafts, []*domain.Requirement{r1, r2})
	if results[0].AIGroupedRequirements != nil {
		t.Fatalf("low-scored group must not expand: %+v", results[0].AIGroupedRequirements)
	}
}

func TestCompareAgainstHistory_FallsBackToSheetCategory(t *testing.T) {
	gid := uuid.New()
	r1 := histRequirement("Leverantören ska tillhandahålla incidenthantering dygnet runt.", "Krav", ptrUUID(gid), ptrInt(85))
	r2 := histRequirement("Incidenter ska hanteras av leverantören utan avbrott.", "Krav", ptrUUID(gid), ptrInt(85))

	drafts := []Draft{{
		Text:       "Leverantören ska erbjuda incidenthantering dygnet runt för alla system.",
		Categories: [2]string{"Krav", ""},
		SheetName:  "Krav",
	}}
	results := CompareAgainstHistory(drafts, []*domain.Requirement{r1, r2})
	if len(results[0].AIGroupedRequirements) != 2 {
		t.Fatalf("expected sheet-category fallback expansion, got %+v", results[0].AIGroupedRequirements)
	}
}

func TestTokenOverlap(t *testing.T) {
	cases := []struct {
		name string
		a, b string
		min  float64
		max  float64
	}{
		{"identical", "Systemet ska kryptera data", "Systemet ska kryptera data", 0.99, 1.01},
		{"disjoint", "helt andra ordval överallt", "ingenting gemensamt finns kvar", -0.01, 0.01},
		{"short words ignored", "ska bör kan får", "ska bör kan får", -0.01, 0.01},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := TokenOverlap(tc.a, tc.b)
			if got < tc.min || got > tc.max {
				t.Fatalf("TokenOverlap = %v, want within [%v, %v]", got, tc.min, tc.max)
			}
		})
	}
}

func TestTokenOverlap_PunctuationTrimmed(t *testing.T) {
	got := TokenOverlap("kryptering.", "kryptering")
	if got != 1.0 {
		t.Fatalf("TokenOverlap = %v, want 1.0", got)
	}
}

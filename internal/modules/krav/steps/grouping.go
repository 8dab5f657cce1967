package steps

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/kravdesk/kravdesk-backend/internal/data/repos"
	"github.com/kravdesk/kravdesk-backend/internal/domain"
	"github.com/kravdesk/kravdesk-backend/internal/pkg/retry"
	"github.com/kravdesk/kravdesk-backend/internal/platform/logger"
	"github.com/kravdesk/kravdesk-backend/internal/platform/openai"
)

const (
	groupingSimilarityThreshold = 80
	groupingMinGroupSize        = 2
)

type GroupingDeps struct {
	Log          *logger.Logger
	Requirements repos.RequirementRepo
	AI           openai.Client
	Normalizer   *CategoryNormalizer

	// Policy covers one category's clustering call. Zero value gets the
	// default: 3 attempts, 150s per attempt, 2^attempt seconds backoff.
	Policy retry.Policy

	// Parallelism bounds concurrent category calls. <=1 means sequential,
	// which keeps cost bounded and progress events in category order.
	Parallelism int

	// BatchSize splits oversized categories into fixed-size sub-batches.
	// 0 sends every category whole.
	BatchSize int
}

type GroupingResult struct {
	Groups    []Group     `json:"groups"`
	Ungrouped []uuid.UUID `json:"ungroupedRequirements"`
}

func defaultGroupingPolicy() retry.Policy {
	return retry.Policy{
		MaxAttempts: 3,
		Timeout:     150 * time.Second,
		Backoff:     retry.ExponentialBackoff,
	}
}

// GroupRequirements partitions the corpus by canonical category, clusters
// each category through the reasoning service, sanitizes the output, and
// commits the new grouping with a clear-then-write pass over the store.
// Reasoning failures degrade to "category ungrouped"; only persistence
// failures abort the run.
func GroupRequirements(ctx context.Context, deps GroupingDeps, tx *gorm.DB, requirements []*domain.Requirement, onProgress ProgressFunc) (GroupingResult, error) {
	result := GroupingResult{Groups: []Group{}, Ungrouped: []uuid.UUID{}}
	if deps.Log == nil || deps.Requirements == nil {
		return result, fmt.Errorf("grouping: missing deps")
	}
	if deps.Policy.MaxAttempts == 0 {
		deps.Policy = defaultGroupingPolicy()
	}
	emitter := newProgressEmitter(onProgress)
	log := deps.Log.With("step", "grouping")

	categories, err := partitionByCategory(ctx, deps, requirements)
	if err != nil {
		emitter.emit(ProgressError, "grouping failed: "+err.Error(), 0, 0)
		return result, err
	}

	names := make([]string, 0, len(categories))
	for name := range categories {
		names = append(names, name)
	}
	sort.Strings(names)

	emitter.emit(ProgressStart, fmt.Sprintf("grouping %d requirements in %d categories", len(requirements), len(names)), 0, len(names))

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	limit := deps.Parallelism
	if limit < 1 {
		limit = 1
	}
	g.SetLimit(limit)

	for i, name := range names {
		// Cancellation is a checkpoint between categories; calls already in
		// flight are not interrupted, but they must finish before the result
		// is handed back or they would mutate it under the caller.
		if err := ctx.Err(); err != nil {
			_ = g.Wait()
			emitter.emit(ProgressError, "grouping cancelled", i, len(names))
			return result, err
		}
		step := i + 1
		name := name
		members := categories[name]

		if len(members) < groupingMinGroupSize {
			emitter.emit(ProgressInfo, fmt.Sprintf("category %q skipped: fewer than %d requirements", name, groupingMinGroupSize), step, len(names))
			mu.Lock()
			for _, r := range members {
				result.Ungrouped = append(result.Ungrouped, r.ID)
			}
			mu.Unlock()
			continue
		}

		g.Go(func() error {
			emitter.emit(ProgressProgress, fmt.Sprintf("clustering category %q (%d requirements)", name, len(members)), step, len(names))
			groups, ungrouped := clusterCategory(gctx, deps, emitter, log, name, members, step, len(names))
			mu.Lock()
			result.Groups = append(result.Groups, groups...)
			result.Ungrouped = append(result.Ungrouped, ungrouped...)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		emitter.emit(ProgressError, "grouping failed: "+err.Error(), 0, len(names))
		return result, err
	}

	sort.Slice(result.Groups, func(i, j int) bool {
		if result.Groups[i].Category != result.Groups[j].Category {
			return result.Groups[i].Category < result.Groups[j].Category
		}
		return result.Groups[i].GroupID.String() < result.Groups[j].GroupID.String()
	})

	if err := commitGrouping(ctx, deps, tx, log, result); err != nil {
		emitter.emit(ProgressError, "grouping commit failed: "+err.Error(), len(names), len(names))
		return result, err
	}

	emitter.emit(ProgressSuccess, fmt.Sprintf("grouping complete: %d groups, %d ungrouped", len(result.Groups), len(result.Ungrouped)), len(names), len(names))
	return result, nil
}

// partitionByCategory buckets requirements by canonical category,
// recomputing the canonical form through the normalizer when a row has none.
func partitionByCategory(ctx context.Context, deps GroupingDeps, requirements []*domain.Requirement) (map[string][]*domain.Requirement, error) {
	out := map[string][]*domain.Requirement{}
	for _, r := range requirements {
		if r == nil {
			continue
		}
		category := strings.TrimSpace(r.Category)
		if category == "" && deps.Normalizer != nil {
			mapped, err := deps.Normalizer.MapCategory(ctx, r.RawCategory)
			if err != nil {
				return nil, err
			}
			category = mapped
		}
		if category == "" {
			category = domain.UncategorizedCategory
		}
		out[category] = append(out[category], r)
	}
	return out, nil
}

// clusterCategory runs the retried clustering call for one category.
// Exhausted retries never surface: the whole category degrades to ungrouped.
func clusterCategory(ctx context.Context, deps GroupingDeps, emitter *progressEmitter, log *logger.Logger, category string, members []*domain.Requirement, step, total int) ([]Group, []uuid.UUID) {
	batches := splitBatches(members, deps.BatchSize)

	allGroups := make([]Group, 0, 4)
	allUngrouped := make([]uuid.UUID, 0, len(members))
	for _, batch := range batches {
		knownIDs := make([]uuid.UUID, 0, len(batch))
		for _, r := range batch {
			knownIDs = append(knownIDs, r.ID)
		}

		var raw RawClusterOutput
		err := deps.Policy.Do(ctx, func(attemptCtx context.Context) error {
			parsed, callErr := callClustering(attemptCtx, deps.AI, category, batch)
			if callErr != nil {
				return callErr
			}
			raw = parsed
			return nil
		}, func(attempt int, err error, delay time.Duration) {
			emitter.emit(ProgressRetry, fmt.Sprintf("category %q attempt %d failed, retrying in %s", category, attempt, delay), step, total)
			log.Warn("clustering attempt failed", "category", category, "attempt", attempt, "error", err.Error())
		})
		if err != nil {
			emitter.emit(ProgressWarning, fmt.Sprintf("category %q left ungrouped after retries: %s", category, err.Error()), step, total)
			log.Warn("clustering exhausted retries, category degrades to ungrouped", "category", category, "error", err.Error())
			allUngrouped = append(allUngrouped, knownIDs...)
			continue
		}

		sanitized := SanitizeClusterOutput(raw, knownIDs, category)
		if sanitized.Outcome == SanitizeRepaired {
			log.Info("clustering output repaired", "category", category)
		}
		if sanitized.Outcome == SanitizeRejected {
			emitter.emit(ProgressWarning, fmt.Sprintf("category %q: model output unusable, all ungrouped", category), step, total)
		}
		allGroups = append(allGroups, sanitized.Groups...)
		allUngrouped = append(allUngrouped, sanitized.Ungrouped...)
	}

	if len(batches) > 1 {
		allGroups = ConsolidateBatches(allGroups)
	}
	emitter.emit(ProgressSuccess, fmt.Sprintf("category %q: %d groups, %d ungrouped", category, len(allGroups), len(allUngrouped)), step, total)
	return allGroups, allUngrouped
}

func splitBatches(members []*domain.Requirement, size int) [][]*domain.Requirement {
	if size <= 0 || len(members) <= size {
		return [][]*domain.Requirement{members}
	}
	var out [][]*domain.Requirement
	for start := 0; start < len(members); start += size {
		end := start + size
		if end > len(members) {
			end = len(members)
		}
		out = append(out, members[start:end])
	}
	return out
}

type clusterRequestItem struct {
	ID       string `json:"id"`
	Text     string `json:"text"`
	Type     string `json:"type,omitempty"`
	Category string `json:"category"`
}

type clusterRequest struct {
	Category     string               `json:"category"`
	Instructions clusterInstructions  `json:"instructions"`
	Requirements []clusterRequestItem `json:"requirements"`
}

type clusterInstructions struct {
	SimilarityThreshold    int  `json:"similarityThreshold"`
	MinimumGroupSize       int  `json:"minimumGroupSize"`
	StrictCategoryMatching bool `json:"strictCategoryMatching"`
	CoverageRequired       bool `json:"coverageRequired"`
}

func callClustering(ctx context.Context, ai openai.Client, category string, members []*domain.Requirement) (RawClusterOutput, error) {
	var out RawClusterOutput
	if ai == nil {
		return out, fmt.Errorf("clustering: no reasoning client configured")
	}

	req := clusterRequest{
		Category: category,
		Instructions: clusterInstructions{
			SimilarityThreshold:    groupingSimilarityThreshold,
			MinimumGroupSize:       groupingMinGroupSize,
			StrictCategoryMatching: true,
			CoverageRequired:       true,
		},
		Requirements: make([]clusterRequestItem, 0, len(members)),
	}
	for _, r := range members {
		req.Requirements = append(req.Requirements, clusterRequestItem{
			ID:       r.ID.String(),
			Text:     r.Text,
			Type:     r.Type,
			Category: category,
		})
	}
	payload, err := json.Marshal(req)
	if err != nil {
		return out, err
	}

	system := "You cluster near-duplicate procurement requirements. Group requirements whose meaning overlaps at or above the similarity threshold. Every group needs at least the minimum group size of members, all from the given category. Every requirement id must appear exactly once, either in a group or in ungroupedRequirements."
	obj, err := ai.GenerateJSON(ctx, system, string(payload), "requirement_clusters", clusterResponseSchema())
	if err != nil {
		return out, err
	}

	// Round-trip through JSON rather than walking the map by hand.
	rawJSON, err := json.Marshal(obj)
	if err != nil {
		return out, err
	}
	if err := json.Unmarshal(rawJSON, &out); err != nil {
		return out, fmt.Errorf("clustering: malformed model output: %w", err)
	}
	return out, nil
}

func clusterResponseSchema() map[string]any {
	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties": map[string]any{
			"groups": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type":                 "object",
					"additionalProperties": false,
					"properties": map[string]any{
						"representativeId": map[string]any{"type": "string"},
						"members":          map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
						"similarityScore":  map[string]any{"type": "number"},
						"category":         map[string]any{"type": "string"},
					},
					"required": []string{"representativeId", "members", "similarityScore", "category"},
				},
			},
			"ungroupedRequirements": map[string]any{
				"type":  "array",
				"items": map[string]any{"type": "string"},
			},
		},
		"required": []string{"groups", "ungroupedRequirements"},
	}
}

// commitGrouping clears every row's group fields, then writes the new
// assignments. Per-group write failures are logged and skipped; the clear
// itself and ungrouped clears are persistence failures that propagate.
func commitGrouping(ctx context.Context, deps GroupingDeps, tx *gorm.DB, log *logger.Logger, result GroupingResult) error {
	if err := deps.Requirements.ClearAllGroupings(ctx, tx); err != nil {
		return fmt.Errorf("clear groupings: %w", err)
	}
	for _, group := range result.Groups {
		for _, id := range group.Members {
			isRep := id == group.RepresentativeID
			if err := deps.Requirements.UpdateGroup(ctx, tx, id, group.GroupID, isRep, group.SimilarityScore, group.Category); err != nil {
				// No run-level transaction: one group's failure does not
				// block the remaining groups' writes.
				log.Error("group write failed, continuing with remaining groups",
					"group_id", group.GroupID.String(), "requirement_id", id.String(), "error", err.Error())
				break
			}
		}
	}
	for _, id := range result.Ungrouped {
		if err := deps.Requirements.ClearGrouping(ctx, tx, id); err != nil {
			return fmt.Errorf("clear grouping for %s: %w", id, err)
		}
	}
	return nil
}

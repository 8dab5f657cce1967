package steps

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/kravdesk/kravdesk-backend/internal/data/repos"
	"github.com/kravdesk/kravdesk-backend/internal/domain"
	"github.com/kravdesk/kravdesk-backend/internal/platform/logger"
	"github.com/kravdesk/kravdesk-backend/internal/platform/openai"
)

const (
	categoryMatchMinConfidence = 0.70

	// Single-item classification is cheap; it must not ride the long
	// clustering timeout on the shared HTTP client.
	categoryClassifyTimeout = 30 * time.Second
)

type CategoryNormalizerDeps struct {
	Mappings repos.CategoryMappingRepo
	AI       openai.Client
	Log      *logger.Logger
	Cache    *CategoryCache
}

// CategoryNormalizer maps raw spreadsheet categories to canonical ones:
// cache → case-insensitive cache → AI best match → synthesized name.
type CategoryNormalizer struct {
	deps CategoryNormalizerDeps
}

func NewCategoryNormalizer(deps CategoryNormalizerDeps) (*CategoryNormalizer, error) {
	if deps.Mappings == nil || deps.Log == nil || deps.Cache == nil {
		return nil, fmt.Errorf("category_normalize: missing deps")
	}
	return &CategoryNormalizer{deps: deps}, nil
}

// MapCategory resolves one raw category. Only persistence failures are
// returned as errors; classifier failures degrade to the synthesized name.
func (n *CategoryNormalizer) MapCategory(ctx context.Context, raw string) (string, error) {
	if strings.TrimSpace(raw) == "" {
		return domain.UncategorizedCategory, nil
	}
	if err := n.deps.Cache.Load(ctx); err != nil {
		return "", fmt.Errorf("load category cache: %w", err)
	}

	if canonical, ok := n.deps.Cache.Get(raw); ok {
		return canonical, nil
	}

	if canonical, ok := n.deps.Cache.GetFold(raw); ok {
		// Persist an exact alias so the next lookup is a direct hit.
		if _, err := n.deps.Mappings.Upsert(ctx, nil, raw, canonical); err != nil {
			return "", fmt.Errorf("persist category alias: %w", err)
		}
		n.deps.Cache.Put(raw, canonical)
		return canonical, nil
	}

	if canonical, ok := n.classifyWithAI(ctx, raw); ok {
		if _, err := n.deps.Mappings.Upsert(ctx, nil, raw, canonical); err != nil {
			return "", fmt.Errorf("persist category mapping: %w", err)
		}
		n.deps.Cache.Put(raw, canonical)
		return canonical, nil
	}

	canonical := CleanCategoryName(raw)
	if canonical == "" {
		canonical = domain.UncategorizedCategory
	}
	if _, err := n.deps.Mappings.Upsert(ctx, nil, raw, canonical); err != nil {
		return "", fmt.Errorf("persist category mapping: %w", err)
	}
	n.deps.Cache.Put(raw, canonical)
	return canonical, nil
}

// MapCategories resolves each distinct raw value once, in order, against the
// evolving cache. A later duplicate may hit the cache an earlier value
// populated within the same batch.
func (n *CategoryNormalizer) MapCategories(ctx context.Context, raws []string) (map[string]string, error) {
	out := make(map[string]string, len(raws))
	for _, raw := range raws {
		if strings.TrimSpace(raw) == "" {
			out[raw] = domain.UncategorizedCategory
			continue
		}
		if _, done := out[raw]; done {
			continue
		}
		canonical, err := n.MapCategory(ctx, raw)
		if err != nil {
			return nil, err
		}
		out[raw] = canonical
	}
	return out, nil
}

// classifyWithAI asks the reasoning service for the best match among known
// canonical categories. Any failure is treated as "no match".
func (n *CategoryNormalizer) classifyWithAI(ctx context.Context, raw string) (string, bool) {
	if n.deps.AI == nil {
		return "", false
	}
	known := n.deps.Cache.Canonicals()
	if len(known) == 0 {
		return "", false
	}

	schema := map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties": map[string]any{
			"match":      map[string]any{"type": []string{"string", "null"}},
			"confidence": map[string]any{"type": "number"},
		},
		"required": []string{"match", "confidence"},
	}
	system := "You normalize procurement requirement categories. Given a raw category label and a list of known canonical categories, pick the single best matching canonical category. If none fits well, return null."
	user := fmt.Sprintf("Raw category: %q\nKnown canonical categories:\n- %s\nReturn the best match and your confidence (0-1).",
		raw, strings.Join(known, "\n- "))

	callCtx, cancel := context.WithTimeout(ctx, categoryClassifyTimeout)
	defer cancel()
	obj, err := n.deps.AI.GenerateJSON(callCtx, system, user, "category_match", schema)
	if err != nil {
		n.deps.Log.Warn("category classifier failed, falling back to synthesized name",
			"raw_category", raw, "error", err.Error())
		return "", false
	}

	match, _ := obj["match"].(string)
	confidence, _ := obj["confidence"].(float64)
	match = strings.TrimSpace(match)
	if match == "" || confidence < categoryMatchMinConfidence {
		return "", false
	}
	for _, k := range known {
		if strings.EqualFold(k, match) {
			return k, true
		}
	}
	return "", false
}

var (
	enumPrefixRe = regexp.MustCompile(`^[A-ZÅÄÖ]\d?\.\s*`)
	bareLetterRe = regexp.MustCompile(`^[A-ZÅÄÖ]\s+`)
	multiSpaceRe = regexp.MustCompile(`\s+`)
)

// CleanCategoryName synthesizes a canonical category from a raw label by
// stripping a leading enumerator ("A. ", "F1. ") or bare letter prefix
// ("F Backup") and collapsing whitespace.
func CleanCategoryName(raw string) string {
	s := strings.TrimSpace(raw)
	s = enumPrefixRe.ReplaceAllString(s, "")
	s = bareLetterRe.ReplaceAllString(s, "")
	s = multiSpaceRe.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

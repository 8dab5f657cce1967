package steps

import (
	"os"
	"regexp"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/kravdesk/kravdesk-backend/internal/domain"
)

// ExtractorConfig holds the extraction heuristics. The bounds and phrase
// lists are tuned to one procurement spreadsheet template and are kept
// configurable rather than hard-coded.
type ExtractorConfig struct {
	MinLength      int      `yaml:"min_length"`
	MaxLength      int      `yaml:"max_length"`
	MinWords       int      `yaml:"min_words"`
	MaxWords       int      `yaml:"max_words"`
	MaxSentences   int      `yaml:"max_sentences"`
	Keywords       []string `yaml:"keywords"`
	SkallKeywords  []string `yaml:"skall_keywords"`
	BorKeywords    []string `yaml:"bor_keywords"`
	DenyPhrases    []string `yaml:"deny_phrases"`
	CategoryColumn int      `yaml:"category_column"`
}

func DefaultExtractorConfig() ExtractorConfig {
	return ExtractorConfig{
		MinLength:     30,
		MaxLength:     500,
		MinWords:      5,
		MaxWords:      100,
		MaxSentences:  5,
		Keywords:      []string{"ska", "skall", "bör", "shall", "should", "must"},
		SkallKeywords: []string{"ska", "skall", "must", "shall"},
		BorKeywords:   []string{"bör", "should", "önskas"},
		DenyPhrases: []string{
			"denna flik",
			"följande aktiviteter:",
			"leverantören ska beskriva",
			"svarsinstruktion",
			"informationssäkerhetsklass",
			"säkerhetsskyddsklassificering",
		},
		CategoryColumn: 0,
	}
}

// LoadExtractorConfig reads heuristics from a YAML file, falling back to the
// defaults for any field left unset.
func LoadExtractorConfig(path string) (ExtractorConfig, error) {
	cfg := DefaultExtractorConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	var file ExtractorConfig
	if err := yaml.Unmarshal(data, &file); err != nil {
		return cfg, err
	}
	if file.MinLength > 0 {
		cfg.MinLength = file.MinLength
	}
	if file.MaxLength > 0 {
		cfg.MaxLength = file.MaxLength
	}
	if file.MinWords > 0 {
		cfg.MinWords = file.MinWords
	}
	if file.MaxWords > 0 {
		cfg.MaxWords = file.MaxWords
	}
	if file.MaxSentences > 0 {
		cfg.MaxSentences = file.MaxSentences
	}
	if len(file.Keywords) > 0 {
		cfg.Keywords = file.Keywords
	}
	if len(file.SkallKeywords) > 0 {
		cfg.SkallKeywords = file.SkallKeywords
	}
	if len(file.BorKeywords) > 0 {
		cfg.BorKeywords = file.BorKeywords
	}
	if len(file.DenyPhrases) > 0 {
		cfg.DenyPhrases = file.DenyPhrases
	}
	if file.CategoryColumn > 0 {
		cfg.CategoryColumn = file.CategoryColumn
	}
	return cfg, nil
}

var (
	headerDotRe   = regexp.MustCompile(`^[A-Za-zÅÄÖåäö]\d?\.$`)
	numberedRe    = regexp.MustCompile(`^\d+(\.\d+)*\.?$`)
	cellRefRe     = regexp.MustCompile(`^[A-Za-z]{1,2}\d+$`)
	sectionLikeRe = regexp.MustCompile(`^\d+(\.\d+)*$`)
)

// ExtractRequirements turns raw rows into requirement drafts. Pure: no side
// effects, rows without a qualifying cell are silently skipped.
func ExtractRequirements(rows []Row, cfg ExtractorConfig) []Draft {
	ordered := make([]Row, len(rows))
	copy(ordered, rows)
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].SheetOrder != ordered[j].SheetOrder {
			return ordered[i].SheetOrder < ordered[j].SheetOrder
		}
		return ordered[i].SheetRowIndex < ordered[j].SheetRowIndex
	})

	drafts := make([]Draft, 0, len(ordered))
	for i, row := range ordered {
		text, ok := findRequirementCell(row, cfg)
		if !ok {
			continue
		}
		category := discoverPrecedingCategory(ordered, i, cfg)
		drafts = append(drafts, Draft{
			Text:          text,
			Type:          classifyType(text, cfg),
			Categories:    [2]string{row.SheetName, category},
			SheetName:     row.SheetName,
			SheetOrder:    row.SheetOrder,
			SheetRowIndex: row.SheetRowIndex,
		})
	}
	return drafts
}

// findRequirementCell scans cells left to right; the first qualifying cell
// wins.
func findRequirementCell(row Row, cfg ExtractorConfig) (string, bool) {
	for _, cell := range row.Cells {
		text := strings.TrimSpace(cell)
		if text == "" {
			continue
		}
		if !containsAnyKeyword(text, cfg.Keywords) {
			continue
		}
		if qualifies(text, cfg) {
			return text, true
		}
	}
	return "", false
}

func qualifies(text string, cfg ExtractorConfig) bool {
	if len([]rune(text)) < cfg.MinLength || len([]rune(text)) > cfg.MaxLength {
		return false
	}
	words := len(strings.Fields(text))
	if words < cfg.MinWords || words > cfg.MaxWords {
		return false
	}
	if strings.Count(text, ".") > cfg.MaxSentences {
		return false
	}
	if !strings.HasSuffix(text, ".") {
		return false
	}
	lower := strings.ToLower(text)
	for _, phrase := range cfg.DenyPhrases {
		if phrase != "" && strings.Contains(lower, strings.ToLower(phrase)) {
			return false
		}
	}
	if isHeaderLike(text) {
		return false
	}
	return true
}

func containsAnyKeyword(text string, keywords []string) bool {
	lower := strings.ToLower(text)
	for _, kw := range keywords {
		if kw != "" && strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// classifyType runs the modal keyword priority on the matched cell: mandatory
// keywords first, then desirable ones.
func classifyType(text string, cfg ExtractorConfig) string {
	lower := strings.ToLower(text)
	for _, kw := range cfg.SkallKeywords {
		if kw != "" && strings.Contains(lower, kw) {
			return domain.TypeSkall
		}
	}
	for _, kw := range cfg.BorKeywords {
		if kw != "" && strings.Contains(lower, kw) {
			return domain.TypeBor
		}
	}
	return ""
}

func isHeaderLike(s string) bool {
	t := strings.TrimSpace(s)
	if t == "" {
		return true
	}
	if len([]rune(t)) == 1 {
		return true
	}
	return headerDotRe.MatchString(t) || numberedRe.MatchString(t) || cellRefRe.MatchString(t)
}

func isSectionLike(s string) bool {
	return sectionLikeRe.MatchString(strings.TrimSpace(s))
}

func hasLetters(s string) bool {
	for _, r := range s {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || r >= 0x00C0 {
			return true
		}
	}
	return false
}

// discoverPrecedingCategory walks backward from the requirement row within
// the same sheet looking at rows that are not themselves requirement rows.
// Tier one is a candidate with real text in the designated column; tier two
// keeps the first non-trivial value seen as a fallback.
func discoverPrecedingCategory(rows []Row, idx int, cfg ExtractorConfig) string {
	sheet := rows[idx].SheetName
	fallback := ""
	for i := idx - 1; i >= 0; i-- {
		if rows[i].SheetName != sheet {
			break
		}
		if rowHasKeyword(rows[i], cfg) {
			continue
		}
		candidate := ""
		if cfg.CategoryColumn < len(rows[i].Cells) {
			candidate = strings.TrimSpace(rows[i].Cells[cfg.CategoryColumn])
		}
		if candidate == "" {
			continue
		}
		if len([]rune(candidate)) > 5 && hasLetters(candidate) && !isSectionLike(candidate) {
			return candidate
		}
		if fallback == "" && len([]rune(candidate)) > 2 && !isSectionLike(candidate) && !isHeaderLike(candidate) {
			fallback = candidate
		}
	}
	if fallback != "" {
		return fallback
	}
	return domain.UncategorizedCategory
}

func rowHasKeyword(row Row, cfg ExtractorConfig) bool {
	for _, cell := range row.Cells {
		if containsAnyKeyword(cell, cfg.Keywords) {
			return true
		}
	}
	return false
}

package steps

import (
	"fmt"
	"regexp"
)

var whitespaceRunRe = regexp.MustCompile(`\s+`)

// GenerateRequirementKey builds the deterministic identity string that links
// a draft across the compare and commit phases of one import. It only holds
// as long as extraction produces the same rows for both phases.
func GenerateRequirementKey(sheetName string, sheetOrder, sheetRowIndex int, text string) string {
	snippet := []rune(text)
	if len(snippet) > 50 {
		snippet = snippet[:50]
	}
	compact := whitespaceRunRe.ReplaceAllString(string(snippet), "_")
	return fmt.Sprintf("%s:%d:%d:%s", sheetName, sheetOrder, sheetRowIndex, compact)
}

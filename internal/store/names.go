package store

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"

	"github.com/roach88/onemodel/internal/model"
)

// cleanName returns name in NFC with surrounding space removed, rejecting
// empty names and names over model.MaxNameLength runes. Names are bound as
// query parameters, never spliced into SQL.
func cleanName(op, name string) (string, error) {
	n := strings.TrimSpace(norm.NFC.String(name))
	if n == "" {
		return "", newError(CodeInvalidInput, op, "name must not be empty")
	}
	if count := utf8.RuneCountInString(n); count > model.MaxNameLength {
		return "", newError(CodeInvalidInput, op, fmt.Sprintf("name is %d characters, limit is %d", count, model.MaxNameLength))
	}
	return n, nil
}

// containsFold reports whether s contains substr under Unicode case folding.
// An empty substr matches everything.
func containsFold(s, substr string) bool {
	if substr == "" {
		return true
	}
	// A Caser is stateful and must not be shared between goroutines.
	fold := cases.Fold()
	return strings.Contains(fold.String(s), fold.String(substr))
}

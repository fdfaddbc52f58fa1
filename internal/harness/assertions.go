package harness

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"strings"

	"github.com/roach88/onemodel/internal/model"
	"github.com/roach88/onemodel/internal/store"
)

// AssertionContext provides what assertions need to query the final graph.
type AssertionContext struct {
	Ctx     context.Context
	Store   *store.Store
	Harness *Harness
}

// AssertionError is returned when an assertion fails.
type AssertionError struct {
	Type     string // Assertion type for categorization
	Expected string // Human-readable expected outcome
	Actual   string // Human-readable actual outcome
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s", e.Actual)
	return buf.String()
}

// EvaluateAssertions runs each assertion and returns the failure messages.
func EvaluateAssertions(assertions []Assertion, actx *AssertionContext) []string {
	var errs []string
	for i, a := range assertions {
		if err := evaluate(a, actx); err != nil {
			errs = append(errs, fmt.Sprintf("assertions[%d]: %v", i, err))
		}
	}
	return errs
}

func evaluate(a Assertion, actx *AssertionContext) error {
	switch a.Type {
	case AssertSearch:
		return assertSearch(a, actx)
	case AssertGroupMembers:
		return assertGroupMembers(a, actx)
	case AssertEntityCount:
		return assertEntityCount(a, actx)
	case AssertEntityExists:
		return assertEntityExists(a, actx)
	}
	return fmt.Errorf("unknown assertion type %q", a.Type)
}

// assertSearch compares the entities found from an alias with the expected
// aliases as sets.
func assertSearch(a Assertion, actx *AssertionContext) error {
	h := actx.Harness
	depth := model.DefaultSearchDepth
	if a.Depth != nil {
		depth = *a.Depth
	}
	ids, err := actx.Store.FindContainedLocalEntityIDs(actx.Ctx, h.entities[a.From], store.SearchQuery{
		Text:              a.Text,
		Depth:             depth,
		StopAfterAnyFound: a.StopAfterAny,
		IncludeArchived:   a.IncludeArchived,
	})
	if err != nil {
		return fmt.Errorf("search from %s: %w", a.From, err)
	}

	got := h.labels(ids)
	want := slices.Clone(a.Expect)
	sort.Strings(got)
	sort.Strings(want)
	if !slices.Equal(got, want) {
		return &AssertionError{
			Type:     AssertSearch,
			Expected: fmt.Sprintf("search %q from %s (depth %d) finds %v", a.Text, a.From, depth, want),
			Actual:   fmt.Sprintf("found %v", got),
		}
	}
	return nil
}

// assertGroupMembers compares a group's members, archived ones included,
// with the expected aliases in sorting order.
func assertGroupMembers(a Assertion, actx *AssertionContext) error {
	h := actx.Harness
	members, err := actx.Store.GroupEntries(actx.Ctx, h.groups[a.Group], 0, 0, true)
	if err != nil {
		return fmt.Errorf("group %s entries: %w", a.Group, err)
	}
	ids := make([]int64, len(members))
	for i, m := range members {
		ids[i] = m.Entity.ID
	}
	got := h.labels(ids)
	want := a.Expect
	if want == nil {
		want = []string{}
	}
	if !slices.Equal(got, want) {
		return &AssertionError{
			Type:     AssertGroupMembers,
			Expected: fmt.Sprintf("group %s holds %v", a.Group, want),
			Actual:   fmt.Sprintf("holds %v", got),
		}
	}
	return nil
}

func assertEntityCount(a Assertion, actx *AssertionContext) error {
	n, err := actx.Store.EntityCount(actx.Ctx, a.IncludeArchived)
	if err != nil {
		return fmt.Errorf("entity count: %w", err)
	}
	if n != int64(a.Count) {
		return &AssertionError{
			Type:     AssertEntityCount,
			Expected: fmt.Sprintf("%d entities (include archived: %t)", a.Count, a.IncludeArchived),
			Actual:   fmt.Sprintf("%d entities", n),
		}
	}
	return nil
}

func assertEntityExists(a Assertion, actx *AssertionContext) error {
	ok, err := actx.Store.EntityKeyExists(actx.Ctx, actx.Harness.entities[a.Entity], true)
	if err != nil {
		return fmt.Errorf("entity %s exists: %w", a.Entity, err)
	}
	if ok != *a.Exists {
		return &AssertionError{
			Type:     AssertEntityExists,
			Expected: fmt.Sprintf("entity %s exists: %t", a.Entity, *a.Exists),
			Actual:   fmt.Sprintf("exists: %t", ok),
		}
	}
	return nil
}

// labels maps ids to their aliases, falling back to "#<id>" for entities
// no step named.
func (h *Harness) labels(ids []int64) []string {
	names := h.aliasNames()
	out := make([]string, len(ids))
	for i, id := range ids {
		if name, ok := names[id]; ok {
			out[i] = name
		} else {
			out[i] = fmt.Sprintf("#%d", id)
		}
	}
	return out
}

package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/roach88/onemodel/internal/model"
)

// sortMember is one row of a sorting scope. Group members carry no form.
type sortMember struct {
	form  model.FormID
	id    int64
	index int64
}

// sortingScope is an ordered numbering space: the attributes of one entity,
// or the members of one group.
type sortingScope interface {
	kind() string
	owner() int64
	inUse(ctx context.Context, r runner, index int64) (bool, error)
	count(ctx context.Context, r runner) (int64, error)
	// members returns the scope's rows in ascending sorting order.
	members(ctx context.Context, r runner) ([]sortMember, error)
	setIndex(ctx context.Context, r runner, m sortMember, index int64) error
	nearest(ctx context.Context, r runner, from int64, forward bool) (*int64, error)
}

type attributeScope struct{ entityID int64 }

func (a attributeScope) kind() string  { return "attribute" }
func (a attributeScope) owner() int64 { return a.entityID }

func (a attributeScope) inUse(ctx context.Context, r runner, index int64) (bool, error) {
	var n int64
	err := r.queryRow(ctx, `
		SELECT COUNT(*) FROM AttributeSorting WHERE entity_id = ? AND sorting_index = ?
	`, a.entityID, index).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("attribute sorting index in use: %w", err)
	}
	return n > 0, nil
}

func (a attributeScope) count(ctx context.Context, r runner) (int64, error) {
	var n int64
	err := r.queryRow(ctx, "SELECT COUNT(*) FROM AttributeSorting WHERE entity_id = ?", a.entityID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count attribute sorting rows: %w", err)
	}
	return n, nil
}

func (a attributeScope) members(ctx context.Context, r runner) ([]sortMember, error) {
	rows, err := r.query(ctx, `
		SELECT attribute_form_id, attribute_id, sorting_index FROM AttributeSorting
		WHERE entity_id = ?
		ORDER BY sorting_index ASC
	`, a.entityID)
	if err != nil {
		return nil, fmt.Errorf("list attribute sorting rows: %w", err)
	}
	defer rows.Close()

	members := make([]sortMember, 0)
	for rows.Next() {
		var m sortMember
		if err := rows.Scan(&m.form, &m.id, &m.index); err != nil {
			return nil, fmt.Errorf("scan attribute sorting row: %w", err)
		}
		members = append(members, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate attribute sorting rows: %w", err)
	}
	return members, nil
}

func (a attributeScope) setIndex(ctx context.Context, r runner, m sortMember, index int64) error {
	res, err := r.exec(ctx, `
		UPDATE AttributeSorting SET sorting_index = ?
		WHERE entity_id = ? AND attribute_form_id = ? AND attribute_id = ?
	`, index, a.entityID, m.form, m.id)
	if err != nil {
		return wrap("update attribute sorting index", err, a.entityID, m.id)
	}
	return expectOneRow(res, "update attribute sorting index", "attribute sorting row", a.entityID, m.id)
}

func (a attributeScope) nearest(ctx context.Context, r runner, from int64, forward bool) (*int64, error) {
	q := "SELECT MIN(sorting_index) FROM AttributeSorting WHERE entity_id = ? AND sorting_index > ?"
	if !forward {
		q = "SELECT MAX(sorting_index) FROM AttributeSorting WHERE entity_id = ? AND sorting_index < ?"
	}
	return scanNullableIndex(ctx, r, q, a.entityID, from)
}

type groupScope struct{ groupID int64 }

func (g groupScope) kind() string  { return "group" }
func (g groupScope) owner() int64 { return g.groupID }

func (g groupScope) inUse(ctx context.Context, r runner, index int64) (bool, error) {
	var n int64
	err := r.queryRow(ctx, `
		SELECT COUNT(*) FROM EntitiesInAGroup WHERE group_id = ? AND sorting_index = ?
	`, g.groupID, index).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("group sorting index in use: %w", err)
	}
	return n > 0, nil
}

func (g groupScope) count(ctx context.Context, r runner) (int64, error) {
	var n int64
	err := r.queryRow(ctx, "SELECT COUNT(*) FROM EntitiesInAGroup WHERE group_id = ?", g.groupID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count group entries: %w", err)
	}
	return n, nil
}

func (g groupScope) members(ctx context.Context, r runner) ([]sortMember, error) {
	rows, err := r.query(ctx, `
		SELECT entity_id, sorting_index FROM EntitiesInAGroup
		WHERE group_id = ?
		ORDER BY sorting_index ASC
	`, g.groupID)
	if err != nil {
		return nil, fmt.Errorf("list group entries: %w", err)
	}
	defer rows.Close()

	members := make([]sortMember, 0)
	for rows.Next() {
		var m sortMember
		if err := rows.Scan(&m.id, &m.index); err != nil {
			return nil, fmt.Errorf("scan group entry: %w", err)
		}
		members = append(members, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate group entries: %w", err)
	}
	return members, nil
}

func (g groupScope) setIndex(ctx context.Context, r runner, m sortMember, index int64) error {
	res, err := r.exec(ctx, `
		UPDATE EntitiesInAGroup SET sorting_index = ? WHERE group_id = ? AND entity_id = ?
	`, index, g.groupID, m.id)
	if err != nil {
		return wrap("update group sorting index", err, g.groupID, m.id)
	}
	return expectOneRow(res, "update group sorting index", "group entry", g.groupID, m.id)
}

func (g groupScope) nearest(ctx context.Context, r runner, from int64, forward bool) (*int64, error) {
	q := "SELECT MIN(sorting_index) FROM EntitiesInAGroup WHERE group_id = ? AND sorting_index > ?"
	if !forward {
		q = "SELECT MAX(sorting_index) FROM EntitiesInAGroup WHERE group_id = ? AND sorting_index < ?"
	}
	return scanNullableIndex(ctx, r, q, g.groupID, from)
}

func scanNullableIndex(ctx context.Context, r runner, q string, args ...any) (*int64, error) {
	var idx sql.NullInt64
	if err := r.queryRow(ctx, q, args...).Scan(&idx); err != nil {
		return nil, fmt.Errorf("nearest sorting index: %w", err)
	}
	return intPtr(idx), nil
}

// allocateIndex picks the sorting index for a new member of sc. A requested
// index is used if free. Otherwise the first member gets MinID+buffer,
// later members MaxID-buffer, or (when stickToTop) the midpoint above the
// current first member. A taken candidate falls back to a downward probe.
func (s *Store) allocateIndex(ctx context.Context, r runner, sc sortingScope, requested *int64, stickToTop bool) (int64, error) {
	probeFrom := model.MaxID - 1
	var candidate int64
	switch {
	case requested != nil:
		candidate = *requested
		probeFrom = candidate
	default:
		n, err := sc.count(ctx, r)
		if err != nil {
			return 0, err
		}
		switch {
		case n == 0:
			candidate = model.FirstSortingIndex()
		case stickToTop:
			mid, err := s.topIndex(ctx, r, sc)
			if err != nil {
				return 0, err
			}
			candidate = mid
		default:
			candidate = model.LaterSortingIndex()
		}
	}

	used, err := sc.inUse(ctx, r, candidate)
	if err != nil {
		return 0, err
	}
	if !used {
		return candidate, nil
	}
	s.logger.Debug("sorting index collision", "scope", sc.kind(), "owner", sc.owner(), "index", candidate)
	return s.probeUnused(ctx, r, sc, probeFrom)
}

// topIndex returns the midpoint between MinID and the first member of a
// non-empty scope. With no gap left above the first member the scope is
// renumbered and the midpoint taken again.
func (s *Store) topIndex(ctx context.Context, r runner, sc sortingScope) (int64, error) {
	for attempt := 0; attempt < 2; attempt++ {
		first, err := sc.nearest(ctx, r, model.MinID, true)
		if err != nil {
			return 0, err
		}
		if first == nil {
			return model.FirstSortingIndex(), nil
		}
		if mid, ok := midpoint(model.MinID, *first); ok {
			return mid, nil
		}
		if attempt == 0 {
			if err := s.renumber(ctx, r, sc); err != nil {
				return 0, err
			}
		}
	}
	return 0, newError(CodeAllocationExhausted, "allocate sorting index", "no gap above the first member after renumbering", sc.owner())
}

// probeUnused walks down from start one unit at a time until it finds a
// free index. Hitting MinID or the probe bound is ALLOCATION_EXHAUSTED.
func (s *Store) probeUnused(ctx context.Context, r runner, sc sortingScope, start int64) (int64, error) {
	idx := start
	for steps := 0; steps < model.MaxSortingProbe; steps++ {
		used, err := sc.inUse(ctx, r, idx)
		if err != nil {
			return 0, err
		}
		if !used {
			s.metrics.probed(steps)
			return idx, nil
		}
		if idx == model.MinID {
			break
		}
		idx--
	}
	return 0, &Error{
		Code:    CodeAllocationExhausted,
		Op:      "find unused sorting index",
		Message: fmt.Sprintf("no free %s sorting index within %d steps of %d", sc.kind(), model.MaxSortingProbe, start),
		IDs:     []int64{sc.owner()},
	}
}

// renumber spreads the scope's members evenly over the id range, keeping
// their order. It must run inside the transaction of whatever triggered it.
func (s *Store) renumber(ctx context.Context, r runner, sc sortingScope) error {
	const op = "renumber sorting"
	before, err := sc.count(ctx, r)
	if err != nil {
		return err
	}
	members, err := sc.members(ctx, r)
	if err != nil {
		return err
	}

	increment := model.MaxID / (int64(len(members)) + 2) * 2
	next := model.MinID
	previous := model.MinID
	for i, m := range members {
		next += increment
		steps := 0
		for {
			used, err := sc.inUse(ctx, r, next)
			if err != nil {
				return err
			}
			if !used || next == m.index {
				break
			}
			steps++
			if steps >= model.MaxSortingProbe || next == model.MaxID {
				return &Error{
					Code:    CodeAllocationExhausted,
					Op:      op,
					Message: fmt.Sprintf("no free %s sorting index near %d", sc.kind(), next),
					IDs:     []int64{sc.owner()},
				}
			}
			next++
		}
		if (i > 0 && next <= previous) || next >= model.MaxID {
			return &Error{
				Code:    CodeRenumberInvariant,
				Op:      op,
				Message: fmt.Sprintf("index %d after %d breaks ordering (member %d of %d)", next, previous, i+1, len(members)),
				IDs:     []int64{sc.owner()},
			}
		}
		if next != m.index {
			if err := sc.setIndex(ctx, r, m, next); err != nil {
				return err
			}
		}
		previous = next
	}

	after, err := sc.count(ctx, r)
	if err != nil {
		return err
	}
	if after != before || int64(len(members)) != before {
		return &Error{
			Code:    CodeRenumberInvariant,
			Op:      op,
			Message: fmt.Sprintf("member count changed from %d to %d", before, after),
			IDs:     []int64{sc.owner()},
		}
	}
	s.metrics.renumbered(sc.kind())
	s.logger.Debug("renumbered sorting scope", "scope", sc.kind(), "owner", sc.owner(), "members", len(members))
	return nil
}

// placeAfter moves one member to the midpoint between after (nil = top of
// the scope) and the following member. When no gap is left the scope is
// renumbered and the placement retried once.
func (s *Store) placeAfter(ctx context.Context, r runner, sc sortingScope, moving sortMember, after *sortMember) error {
	const op = "place after"
	if after != nil && after.form == moving.form && after.id == moving.id {
		return newError(CodeInvalidInput, op, "cannot place a member after itself", moving.id)
	}
	for attempt := 0; attempt < 2; attempt++ {
		members, err := sc.members(ctx, r)
		if err != nil {
			return err
		}
		lo, hi, found := model.MinID, model.MaxID, after == nil
		for i, m := range members {
			if after != nil && m.form == after.form && m.id == after.id {
				lo = m.index
				found = true
				for _, n := range members[i+1:] {
					if n.form == moving.form && n.id == moving.id {
						continue
					}
					hi = n.index
					break
				}
				break
			}
		}
		if !found {
			return notFound(op, sc.kind()+" member", sc.owner(), after.id)
		}
		if after == nil {
			for _, n := range members {
				if n.form == moving.form && n.id == moving.id {
					continue
				}
				hi = n.index
				break
			}
		}
		if mid, ok := midpoint(lo, hi); ok {
			return sc.setIndex(ctx, r, moving, mid)
		}
		if attempt == 0 {
			if err := s.renumber(ctx, r, sc); err != nil {
				return err
			}
		}
	}
	return newError(CodeAllocationExhausted, op, "no gap after renumbering", sc.owner())
}

// midpoint returns floor((lo+hi)/2) without overflow, and whether it lies
// strictly between lo and hi.
func midpoint(lo, hi int64) (int64, bool) {
	mid := (lo >> 1) + (hi >> 1) + (lo & hi & 1)
	return mid, mid > lo && mid < hi
}

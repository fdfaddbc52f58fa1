package store

import (
	"context"
	"fmt"
	"slices"

	"github.com/roach88/onemodel/internal/model"
)

// SearchQuery drives FindContainedLocalEntityIDs.
type SearchQuery struct {
	// Text is matched as a case-insensitive substring of entity names and
	// as a case-insensitive pattern against text attribute bodies.
	Text string
	// Depth is the number of edges followed from the start entity. Zero
	// finds nothing.
	Depth int
	// StopAfterAnyFound ends the traversal once one match is known.
	StopAfterAnyFound bool
	IncludeArchived   bool
}

// FindContainedLocalEntityIDs walks outward from startID over local
// relations and the members of groups related from each visited entity,
// collecting entities whose name contains q.Text and entities with a text
// attribute matching it. The result is sorted and free of duplicates.
//
// Visited entities are not remembered, so a cyclic graph is walked once per
// path until the depth runs out.
func (s *Store) FindContainedLocalEntityIDs(ctx context.Context, startID int64, q SearchQuery) ([]int64, error) {
	const op = "find contained entities"
	if q.Depth < 0 {
		return nil, newError(CodeInvalidInput, op, fmt.Sprintf("negative search depth %d", q.Depth), startID)
	}
	if err := validPattern(op, q.Text); err != nil {
		return nil, err
	}
	found := make(map[int64]struct{})
	if err := s.searchFrom(ctx, s.reader(), startID, q, q.Depth, found); err != nil {
		return nil, err
	}
	return sortedIDs(found), nil
}

func sortedIDs(set map[int64]struct{}) []int64 {
	ids := make([]int64, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

type namedID struct {
	id   int64
	name string
}

func (s *Store) searchFrom(ctx context.Context, r runner, fromID int64, q SearchQuery, levels int, found map[int64]struct{}) error {
	if levels <= 0 || (q.StopAfterAnyFound && len(found) > 0) {
		return nil
	}
	archived := ""
	if !q.IncludeArchived {
		archived = " AND NOT e.archived"
	}

	// Both neighbor lists are read fully before recursing so that no result
	// set stays open across nested queries on a single connection.
	related, err := namedIDs(ctx, r, `
		SELECT rte.entity_id_2, e.name FROM RelationToEntity rte JOIN Entity e ON e.id = rte.entity_id_2
		WHERE rte.entity_id = ?`+archived+` ORDER BY rte.id ASC
	`, fromID)
	if err != nil {
		return fmt.Errorf("search relations from %d: %w", fromID, err)
	}
	members, err := namedIDs(ctx, r, `
		SELECT eiag.entity_id, e.name FROM RelationToGroup rtg
		JOIN EntitiesInAGroup eiag ON eiag.group_id = rtg.group_id
		JOIN Entity e ON e.id = eiag.entity_id
		WHERE rtg.entity_id = ?`+archived+` ORDER BY rtg.id ASC, eiag.sorting_index ASC
	`, fromID)
	if err != nil {
		return fmt.Errorf("search groups from %d: %w", fromID, err)
	}

	for _, n := range append(related, members...) {
		if containsFold(n.name, q.Text) {
			found[n.id] = struct{}{}
		}
		if err := s.searchFrom(ctx, r, n.id, q, levels-1, found); err != nil {
			return err
		}
	}

	matched, err := rowExists(ctx, r, `
		SELECT COUNT(*) FROM TextAttribute ta JOIN Entity e ON e.id = ta.entity_id
		WHERE ta.entity_id = ?`+archived+` AND `+s.dialect.regexMatch("ta.text_value"),
		fromID, s.dialect.regexArg(q.Text))
	if err != nil {
		return fmt.Errorf("search text of %d: %w", fromID, err)
	}
	if matched {
		found[fromID] = struct{}{}
	}
	return nil
}

func namedIDs(ctx context.Context, r runner, query string, args ...any) ([]namedID, error) {
	rows, err := r.query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var result []namedID
	for rows.Next() {
		var n namedID
		if err := rows.Scan(&n.id, &n.name); err != nil {
			return nil, err
		}
		result = append(result, n)
	}
	return result, rows.Err()
}

// DefaultSearch returns a query for text with the default depth.
func DefaultSearch(text string) SearchQuery {
	return SearchQuery{Text: text, Depth: model.DefaultSearchDepth}
}

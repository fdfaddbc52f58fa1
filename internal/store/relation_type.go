package store

import (
	"context"
	"fmt"

	"github.com/roach88/onemodel/internal/model"
)

const relationTypeColumns = entityColumns + ", rt.name_in_reverse_direction, rt.directionality"

func scanRelationType(sc rowScanner) (model.RelationType, error) {
	var rt model.RelationType
	e, err := scanEntityWith(sc, &rt.NameInReverseDirection, &rt.Directionality)
	if err != nil {
		return model.RelationType{}, err
	}
	rt.Entity = e
	return rt, nil
}

func checkDirectionality(op string, d model.Directionality) error {
	if !model.ValidDirectionalities[d] {
		return newError(CodeInvalidInput, op, fmt.Sprintf("unknown directionality %q", string(d)))
	}
	return nil
}

// CreateRelationType adds a relation type, which is an entity with a
// reverse-direction name, and returns its id.
func (s *Store) CreateRelationType(ctx context.Context, sc Scope, name, reverseName string, dir model.Directionality) (int64, error) {
	const op = "create relation type"
	if err := checkDirectionality(op, dir); err != nil {
		return 0, err
	}
	reverseName, err := cleanName(op, reverseName)
	if err != nil {
		return 0, err
	}
	o, err := s.begin(ctx, sc, op)
	if err != nil {
		return 0, err
	}
	defer o.discard()
	id, err := s.insertRelationType(ctx, o.runner, op, name, reverseName, dir)
	if err != nil {
		return 0, err
	}
	if err := o.finish(); err != nil {
		return 0, err
	}
	return id, nil
}

func (s *Store) insertRelationType(ctx context.Context, r runner, op, name, reverseName string, dir model.Directionality) (int64, error) {
	id, err := s.insertEntity(ctx, r, op, name, nil, nil)
	if err != nil {
		return 0, err
	}
	_, err = r.exec(ctx, `
		INSERT INTO RelationType (entity_id, name_in_reverse_direction, directionality) VALUES (?, ?, ?)
	`, id, reverseName, string(dir))
	if err != nil {
		return 0, wrap(op, err, id)
	}
	return id, nil
}

// UpdateRelationType rewrites a relation type's names and directionality.
func (s *Store) UpdateRelationType(ctx context.Context, sc Scope, rt model.RelationType) error {
	const op = "update relation type"
	if err := checkDirectionality(op, rt.Directionality); err != nil {
		return err
	}
	name, err := cleanName(op, rt.Name)
	if err != nil {
		return err
	}
	reverseName, err := cleanName(op, rt.NameInReverseDirection)
	if err != nil {
		return err
	}
	o, err := s.begin(ctx, sc, op)
	if err != nil {
		return err
	}
	defer o.discard()

	res, err := o.exec(ctx, `
		UPDATE RelationType SET name_in_reverse_direction = ?, directionality = ? WHERE entity_id = ?
	`, reverseName, string(rt.Directionality), rt.ID)
	if err != nil {
		return wrap(op, err, rt.ID)
	}
	if err := expectOneRow(res, op, "relation type", rt.ID); err != nil {
		return err
	}
	if _, err := o.exec(ctx, "UPDATE Entity SET name = ? WHERE id = ?", name, rt.ID); err != nil {
		return wrap(op, err, rt.ID)
	}
	return o.finish()
}

// GetRelationType loads a relation type by its entity id.
func (s *Store) GetRelationType(ctx context.Context, id int64) (model.RelationType, error) {
	return getRelationType(ctx, s.reader(), id)
}

func getRelationType(ctx context.Context, r runner, id int64) (model.RelationType, error) {
	rt, err := scanRelationType(r.queryRow(ctx, "SELECT "+relationTypeColumns+`
		FROM Entity e JOIN RelationType rt ON rt.entity_id = e.id
		WHERE e.id = ?
	`, id))
	if err != nil {
		return model.RelationType{}, scanOne(err, "get relation type", "relation type", id)
	}
	return rt, nil
}

// ListRelationTypes returns a page of relation types ordered by name, then id.
func (s *Store) ListRelationTypes(ctx context.Context, offset, limit int, includeArchived bool) ([]model.RelationType, error) {
	query := "SELECT " + relationTypeColumns + " FROM Entity e JOIN RelationType rt ON rt.entity_id = e.id"
	if !includeArchived {
		query += " WHERE NOT e.archived"
	}
	query += " ORDER BY e.name ASC, e.id ASC" + s.dialect.page(offset, limit)
	rows, err := s.reader().query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list relation types: %w", err)
	}
	defer rows.Close()

	types := make([]model.RelationType, 0)
	for rows.Next() {
		rt, err := scanRelationType(rows)
		if err != nil {
			return nil, fmt.Errorf("list relation types: scan: %w", err)
		}
		types = append(types, rt)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list relation types: iterate: %w", err)
	}
	return types, nil
}

// RelationTypeCount counts relation types.
func (s *Store) RelationTypeCount(ctx context.Context, includeArchived bool) (int64, error) {
	query := "SELECT COUNT(*) FROM Entity e JOIN RelationType rt ON rt.entity_id = e.id"
	if !includeArchived {
		query += " WHERE NOT e.archived"
	}
	var n int64
	if err := s.reader().queryRow(ctx, query).Scan(&n); err != nil {
		return 0, fmt.Errorf("count relation types: %w", err)
	}
	return n, nil
}

// RelationTypeKeyExists reports whether id is a relation type.
func (s *Store) RelationTypeKeyExists(ctx context.Context, id int64) (bool, error) {
	return rowExists(ctx, s.reader(), "SELECT COUNT(*) FROM RelationType WHERE entity_id = ?", id)
}

// RelationTypeIDByName returns the id of the relation type named name. No
// match is NOT_FOUND; more than one is CARDINALITY.
func (s *Store) RelationTypeIDByName(ctx context.Context, name string) (int64, error) {
	return relationTypeIDByName(ctx, s.reader(), name)
}

func relationTypeIDByName(ctx context.Context, r runner, name string) (int64, error) {
	const op = "relation type by name"
	ids, err := queryIDs(ctx, r, op, `
		SELECT e.id FROM Entity e JOIN RelationType rt ON rt.entity_id = e.id
		WHERE e.name = ? ORDER BY e.id ASC
	`, name)
	if err != nil {
		return 0, err
	}
	switch len(ids) {
	case 0:
		return 0, newError(CodeNotFound, op, fmt.Sprintf("no relation type named %q", name))
	case 1:
		return ids[0], nil
	default:
		return 0, newError(CodeCardinality, op, fmt.Sprintf("%d relation types named %q", len(ids), name), ids...)
	}
}

// DeleteRelationType removes a relation type and every relation of that type.
func (s *Store) DeleteRelationType(ctx context.Context, sc Scope, id int64) error {
	const op = "delete relation type"
	o, err := s.begin(ctx, sc, op)
	if err != nil {
		return err
	}
	defer o.discard()
	if _, err := getRelationType(ctx, o.runner, id); err != nil {
		return err
	}
	if err := o.deleteEntity(ctx, id); err != nil {
		return err
	}
	return o.finish()
}

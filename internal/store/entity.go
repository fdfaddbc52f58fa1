package store

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/roach88/onemodel/internal/model"
)

const entityColumns = "e.id, e.name, e.class_id, e.insertion_date, e.public, e.archived, e.archived_date, e.new_entries_stick_to_top"

// notRelationType excludes relation-type entities from entity listings.
const notRelationType = "NOT EXISTS (SELECT 1 FROM RelationType rt WHERE rt.entity_id = e.id)"

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntity(sc rowScanner) (model.Entity, error) {
	return scanEntityWith(sc)
}

// scanEntityWith scans entityColumns followed by extra columns into extra.
func scanEntityWith(sc rowScanner, extra ...any) (model.Entity, error) {
	var (
		e         model.Entity
		classID   sql.NullInt64
		inserted  int64
		public    sql.NullBool
		archivedT sql.NullInt64
	)
	dest := append([]any{&e.ID, &e.Name, &classID, &inserted, &public, &e.Archived, &archivedT, &e.NewEntriesStickToTop}, extra...)
	if err := sc.Scan(dest...); err != nil {
		return model.Entity{}, err
	}
	e.ClassID = intPtr(classID)
	e.InsertionDate = fromMillis(inserted)
	e.Public = boolPtr(public)
	e.ArchivedDate = timePtr(archivedT)
	return e, nil
}

func collectEntities(rows *sql.Rows, op string) ([]model.Entity, error) {
	defer rows.Close()
	entities := make([]model.Entity, 0)
	for rows.Next() {
		e, err := scanEntity(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: scan entity: %w", op, err)
		}
		entities = append(entities, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: iterate entities: %w", op, err)
	}
	return entities, nil
}

// CreateEntity adds an entity and returns its id.
func (s *Store) CreateEntity(ctx context.Context, sc Scope, name string, classID *int64, public *bool) (int64, error) {
	o, err := s.begin(ctx, sc, "create entity")
	if err != nil {
		return 0, err
	}
	defer o.discard()
	id, err := s.insertEntity(ctx, o.runner, "create entity", name, classID, public)
	if err != nil {
		return 0, err
	}
	if err := o.finish(); err != nil {
		return 0, err
	}
	return id, nil
}

func (s *Store) insertEntity(ctx context.Context, r runner, op, name string, classID *int64, public *bool) (int64, error) {
	name, err := cleanName(op, name)
	if err != nil {
		return 0, err
	}
	id, err := nextID(ctx, r, seqEntity)
	if err != nil {
		return 0, err
	}
	_, err = r.exec(ctx, `
		INSERT INTO Entity (id, name, class_id, insertion_date, public, archived, new_entries_stick_to_top)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, id, name, nullInt(classID), millis(s.now()), nullBool(public), false, false)
	if err != nil {
		return 0, wrap(op, err, id)
	}
	return id, nil
}

// CreateEntityAndRelationToLocalEntity creates an entity named name and
// relates fromID to it with relTypeID, in one transaction. It returns the new
// entity id and the relation id.
func (s *Store) CreateEntityAndRelationToLocalEntity(
	ctx context.Context,
	sc Scope,
	fromID, relTypeID int64,
	name string,
	public *bool,
	validOn *time.Time,
	observed time.Time,
	sortingIndex *int64,
) (int64, int64, error) {
	const op = "create entity and relation"
	o, err := s.begin(ctx, sc, op)
	if err != nil {
		return 0, 0, err
	}
	defer o.discard()

	entityID, err := s.insertEntity(ctx, o.runner, op, name, nil, public)
	if err != nil {
		return 0, 0, err
	}
	relID, err := s.insertRelationToLocalEntity(ctx, o.runner, model.RelationToLocalEntity{
		RelTypeID:       relTypeID,
		EntityID:        fromID,
		EntityID2:       entityID,
		ValidOnDate:     validOn,
		ObservationDate: observed,
	}, sortingIndex)
	if err != nil {
		return 0, 0, err
	}
	if err := o.finish(); err != nil {
		return 0, 0, err
	}
	return entityID, relID, nil
}

// RenameEntity sets an entity's name.
func (s *Store) RenameEntity(ctx context.Context, sc Scope, id int64, name string) error {
	const op = "rename entity"
	name, err := cleanName(op, name)
	if err != nil {
		return err
	}
	return s.updateOne(ctx, sc, op, "entity", id, "UPDATE Entity SET name = ? WHERE id = ?", name, id)
}

// UpdateEntityClass sets or clears an entity's class. Every group holding
// the entity is rechecked for class homogeneity in the same transaction.
func (s *Store) UpdateEntityClass(ctx context.Context, sc Scope, id int64, classID *int64) error {
	const op = "update entity class"
	o, err := s.begin(ctx, sc, op)
	if err != nil {
		return err
	}
	defer o.discard()

	res, err := o.exec(ctx, "UPDATE Entity SET class_id = ? WHERE id = ?", nullInt(classID), id)
	if err != nil {
		return wrap(op, err, id)
	}
	if err := expectOneRow(res, op, "entity", id); err != nil {
		return err
	}
	groups, err := containingGroupIDs(ctx, o.runner, id)
	if err != nil {
		return err
	}
	for _, groupID := range groups {
		if err := s.checkHomogeneity(ctx, o.runner, op, groupID); err != nil {
			return err
		}
	}
	return o.finish()
}

// UpdateEntityPublic sets the public tri-state; nil means unspecified.
func (s *Store) UpdateEntityPublic(ctx context.Context, sc Scope, id int64, public *bool) error {
	return s.updateOne(ctx, sc, "update entity public", "entity", id,
		"UPDATE Entity SET public = ? WHERE id = ?", nullBool(public), id)
}

// UpdateEntityNewEntriesStickToTop sets where new attributes of the entity land.
func (s *Store) UpdateEntityNewEntriesStickToTop(ctx context.Context, sc Scope, id int64, stick bool) error {
	return s.updateOne(ctx, sc, "update entity new entries stick to top", "entity", id,
		"UPDATE Entity SET new_entries_stick_to_top = ? WHERE id = ?", stick, id)
}

// ArchiveEntity soft-deletes an entity and records when.
func (s *Store) ArchiveEntity(ctx context.Context, sc Scope, id int64) error {
	return s.updateOne(ctx, sc, "archive entity", "entity", id,
		"UPDATE Entity SET archived = ?, archived_date = ? WHERE id = ?", true, millis(s.now()), id)
}

// UnarchiveEntity restores an archived entity.
func (s *Store) UnarchiveEntity(ctx context.Context, sc Scope, id int64) error {
	return s.updateOne(ctx, sc, "unarchive entity", "entity", id,
		"UPDATE Entity SET archived = ?, archived_date = NULL WHERE id = ?", false, id)
}

// DeleteEntity removes an entity for good. Its attributes, sorting rows,
// relations to and from it, and group memberships go with it. An entity
// still used as an attribute type, unit or class template elsewhere cannot
// be deleted (INTEGRITY).
func (s *Store) DeleteEntity(ctx context.Context, sc Scope, id int64) error {
	const op = "delete entity"
	o, err := s.begin(ctx, sc, op)
	if err != nil {
		return err
	}
	defer o.discard()
	if err := o.deleteEntity(ctx, id); err != nil {
		return err
	}
	return o.finish()
}

// deleteEntity removes the entity row. Its file attributes go by cascade,
// so their blob content is recorded for removal after commit.
func (o *opTx) deleteEntity(ctx context.Context, id int64) error {
	if err := o.orphanContent(ctx, id); err != nil {
		return err
	}
	res, err := o.exec(ctx, "DELETE FROM Entity WHERE id = ?", id)
	if err != nil {
		return wrap(o.op, err, id)
	}
	return expectOneRow(res, o.op, "entity", id)
}

// GetEntity loads an entity by id, archived or not.
func (s *Store) GetEntity(ctx context.Context, id int64) (model.Entity, error) {
	return getEntity(ctx, s.reader(), id)
}

func getEntity(ctx context.Context, r runner, id int64) (model.Entity, error) {
	row := r.queryRow(ctx, "SELECT "+entityColumns+" FROM Entity e WHERE e.id = ?", id)
	e, err := scanEntity(row)
	if err != nil {
		return model.Entity{}, scanOne(err, "get entity", "entity", id)
	}
	return e, nil
}

// EntityQuery selects a page of entities.
type EntityQuery struct {
	Offset          int
	Limit           int // 0 = no limit
	IncludeArchived bool
	ClassID         *int64
}

// ListEntities returns plain entities (not relation types) ordered by id.
func (s *Store) ListEntities(ctx context.Context, q EntityQuery) ([]model.Entity, error) {
	var (
		where = []string{notRelationType}
		args  []any
	)
	if !q.IncludeArchived {
		where = append(where, "NOT e.archived")
	}
	if q.ClassID != nil {
		where = append(where, "e.class_id = ?")
		args = append(args, *q.ClassID)
	}
	query := "SELECT " + entityColumns + " FROM Entity e WHERE " + strings.Join(where, " AND ") +
		" ORDER BY e.id ASC" + s.dialect.page(q.Offset, q.Limit)
	rows, err := s.reader().query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list entities: %w", err)
	}
	return collectEntities(rows, "list entities")
}

// EntityCount counts plain entities (not relation types).
func (s *Store) EntityCount(ctx context.Context, includeArchived bool) (int64, error) {
	query := "SELECT COUNT(*) FROM Entity e WHERE " + notRelationType
	if !includeArchived {
		query += " AND NOT e.archived"
	}
	var n int64
	if err := s.reader().queryRow(ctx, query).Scan(&n); err != nil {
		return 0, fmt.Errorf("count entities: %w", err)
	}
	return n, nil
}

// EntityKeyExists reports whether the entity exists; archived entities
// count only with includeArchived.
func (s *Store) EntityKeyExists(ctx context.Context, id int64, includeArchived bool) (bool, error) {
	query := "SELECT COUNT(*) FROM Entity e WHERE e.id = ?"
	if !includeArchived {
		query += " AND NOT e.archived"
	}
	return rowExists(ctx, s.reader(), query, id)
}

// FindEntityIDsByName returns ids of entities whose name equals name,
// ignoring case.
func (s *Store) FindEntityIDsByName(ctx context.Context, name string, includeArchived bool) ([]int64, error) {
	query := "SELECT e.id FROM Entity e WHERE LOWER(e.name) = LOWER(CAST(? AS TEXT))"
	if !includeArchived {
		query += " AND NOT e.archived"
	}
	return queryIDs(ctx, s.reader(), "find entity ids by name", query+" ORDER BY e.id ASC", strings.TrimSpace(name))
}

func queryIDs(ctx context.Context, r runner, op, query string, args ...any) ([]int64, error) {
	rows, err := r.query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()
	ids := make([]int64, 0)
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("%s: scan: %w", op, err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: iterate: %w", op, err)
	}
	return ids, nil
}

// IsDuplicateEntityName reports whether name is taken by another entity
// (non-archived ones unless includeArchived) or by a relation type's reverse
// name. The comparison is case-sensitive. ignoreID excludes the entity being
// renamed.
func (s *Store) IsDuplicateEntityName(ctx context.Context, name string, ignoreID *int64, includeArchived bool) (bool, error) {
	name, err := cleanName("is duplicate entity name", name)
	if err != nil {
		return false, err
	}
	r := s.reader()

	query := "SELECT COUNT(*) FROM Entity e WHERE e.name = ?"
	args := []any{name}
	if !includeArchived {
		query += " AND NOT e.archived"
	}
	if ignoreID != nil {
		query += " AND e.id <> ?"
		args = append(args, *ignoreID)
	}
	dup, err := rowExists(ctx, r, query, args...)
	if err != nil || dup {
		return dup, err
	}

	query = "SELECT COUNT(*) FROM RelationType WHERE name_in_reverse_direction = ?"
	args = []any{name}
	if ignoreID != nil {
		query += " AND entity_id <> ?"
		args = append(args, *ignoreID)
	}
	return rowExists(ctx, r, query, args...)
}

// ContainingEntity is an entity that relates to another, with the relation type.
type ContainingEntity struct {
	RelTypeID int64        `json:"rel_type_id"`
	Entity    model.Entity `json:"entity"`
}

// ContainingEntities lists the entities with a local relation to id.
func (s *Store) ContainingEntities(ctx context.Context, id int64, includeArchived bool) ([]ContainingEntity, error) {
	query := "SELECT " + entityColumns + `, rte.rel_type_id
		FROM RelationToEntity rte JOIN Entity e ON e.id = rte.entity_id
		WHERE rte.entity_id_2 = ?`
	if !includeArchived {
		query += " AND NOT e.archived"
	}
	rows, err := s.reader().query(ctx, query+" ORDER BY e.id ASC, rte.rel_type_id ASC", id)
	if err != nil {
		return nil, fmt.Errorf("containing entities of %d: %w", id, err)
	}
	defer rows.Close()

	result := make([]ContainingEntity, 0)
	for rows.Next() {
		var c ContainingEntity
		c.Entity, err = scanEntityWith(rows, &c.RelTypeID)
		if err != nil {
			return nil, fmt.Errorf("containing entities: scan: %w", err)
		}
		result = append(result, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("containing entities: iterate: %w", err)
	}
	return result, nil
}

// RelationsFrom lists the local relations whose source is entityID.
func (s *Store) RelationsFrom(ctx context.Context, entityID int64) ([]model.RelationToLocalEntity, error) {
	return relationsFrom(ctx, s.reader(), entityID)
}

// validPattern checks a user-supplied case-insensitive pattern.
func validPattern(op, pattern string) error {
	if _, err := regexp.Compile("(?i)" + pattern); err != nil {
		return &Error{Code: CodeInvalidInput, Op: op, Message: fmt.Sprintf("invalid pattern %q", pattern), Err: err}
	}
	return nil
}

// MatchingEntities returns plain entities whose name, or any of whose text
// attributes, matches pattern case-insensitively.
func (s *Store) MatchingEntities(ctx context.Context, pattern string, offset, limit int, includeArchived bool) ([]model.Entity, error) {
	const op = "matching entities"
	if err := validPattern(op, pattern); err != nil {
		return nil, err
	}
	d := s.dialect
	query := "SELECT " + entityColumns + " FROM Entity e WHERE " + notRelationType +
		" AND (" + d.regexMatch("e.name") +
		" OR EXISTS (SELECT 1 FROM TextAttribute ta WHERE ta.entity_id = e.id AND " + d.regexMatch("ta.text_value") + "))"
	if !includeArchived {
		query += " AND NOT e.archived"
	}
	query += " ORDER BY e.id ASC" + s.dialect.page(offset, limit)
	arg := d.regexArg(pattern)
	rows, err := s.reader().query(ctx, query, arg, arg)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return collectEntities(rows, op)
}

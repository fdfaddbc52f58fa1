package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/roach88/onemodel/internal/model"
)

const groupColumns = "g.id, g.name, g.insertion_date, g.allow_mixed_classes, g.new_entries_stick_to_top"

func scanGroup(sc rowScanner) (model.Group, error) {
	var (
		g        model.Group
		inserted int64
	)
	if err := sc.Scan(&g.ID, &g.Name, &inserted, &g.AllowMixedClasses, &g.NewEntriesStickToTop); err != nil {
		return model.Group{}, err
	}
	g.InsertionDate = fromMillis(inserted)
	return g, nil
}

func collectGroups(rows *sql.Rows, op string) ([]model.Group, error) {
	defer rows.Close()
	groups := make([]model.Group, 0)
	for rows.Next() {
		g, err := scanGroup(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: scan group: %w", op, err)
		}
		groups = append(groups, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: iterate groups: %w", op, err)
	}
	return groups, nil
}

// CreateGroup adds an empty group and returns its id.
func (s *Store) CreateGroup(ctx context.Context, sc Scope, name string, allowMixedClasses bool) (int64, error) {
	o, err := s.begin(ctx, sc, "create group")
	if err != nil {
		return 0, err
	}
	defer o.discard()
	id, err := s.insertGroup(ctx, o.runner, "create group", name, allowMixedClasses)
	if err != nil {
		return 0, err
	}
	if err := o.finish(); err != nil {
		return 0, err
	}
	return id, nil
}

func (s *Store) insertGroup(ctx context.Context, r runner, op, name string, allowMixedClasses bool) (int64, error) {
	name, err := cleanName(op, name)
	if err != nil {
		return 0, err
	}
	id, err := nextID(ctx, r, seqGroup)
	if err != nil {
		return 0, err
	}
	_, err = r.exec(ctx, `
		INSERT INTO grupo (id, name, insertion_date, allow_mixed_classes, new_entries_stick_to_top)
		VALUES (?, ?, ?, ?, ?)
	`, id, name, millis(s.now()), allowMixedClasses, false)
	if err != nil {
		return 0, wrap(op, err, id)
	}
	return id, nil
}

// CreateGroupAndRelationToGroup creates a group and relates entityID to it,
// in one transaction. It returns the group id and the relation id.
func (s *Store) CreateGroupAndRelationToGroup(
	ctx context.Context,
	sc Scope,
	entityID, relTypeID int64,
	name string,
	allowMixedClasses bool,
	validOn *time.Time,
	observed time.Time,
	sortingIndex *int64,
) (int64, int64, error) {
	const op = "create group and relation"
	o, err := s.begin(ctx, sc, op)
	if err != nil {
		return 0, 0, err
	}
	defer o.discard()

	groupID, err := s.insertGroup(ctx, o.runner, op, name, allowMixedClasses)
	if err != nil {
		return 0, 0, err
	}
	relID, err := s.insertRelationToGroup(ctx, o.runner, model.RelationToGroup{
		EntityID:        entityID,
		RelTypeID:       relTypeID,
		GroupID:         groupID,
		ValidOnDate:     validOn,
		ObservationDate: observed,
	}, sortingIndex)
	if err != nil {
		return 0, 0, err
	}
	if err := o.finish(); err != nil {
		return 0, 0, err
	}
	return groupID, relID, nil
}

// UpdateGroup rewrites a group's name and flags. Switching to disallow
// mixed classes fails with MIXED_CLASSES if the members already differ.
func (s *Store) UpdateGroup(ctx context.Context, sc Scope, g model.Group) error {
	const op = "update group"
	name, err := cleanName(op, g.Name)
	if err != nil {
		return err
	}
	o, err := s.begin(ctx, sc, op)
	if err != nil {
		return err
	}
	defer o.discard()

	res, err := o.exec(ctx, `
		UPDATE grupo SET name = ?, allow_mixed_classes = ?, new_entries_stick_to_top = ? WHERE id = ?
	`, name, g.AllowMixedClasses, g.NewEntriesStickToTop, g.ID)
	if err != nil {
		return wrap(op, err, g.ID)
	}
	if err := expectOneRow(res, op, "group", g.ID); err != nil {
		return err
	}
	if err := s.checkHomogeneity(ctx, o.runner, op, g.ID); err != nil {
		return err
	}
	return o.finish()
}

// GetGroup loads a group by id.
func (s *Store) GetGroup(ctx context.Context, id int64) (model.Group, error) {
	return getGroup(ctx, s.reader(), id)
}

func getGroup(ctx context.Context, r runner, id int64) (model.Group, error) {
	g, err := scanGroup(r.queryRow(ctx, "SELECT "+groupColumns+" FROM grupo g WHERE g.id = ?", id))
	if err != nil {
		return model.Group{}, scanOne(err, "get group", "group", id)
	}
	return g, nil
}

// ListGroups returns a page of groups ordered by id. A limit of 0 means no limit.
func (s *Store) ListGroups(ctx context.Context, offset, limit int) ([]model.Group, error) {
	rows, err := s.reader().query(ctx, "SELECT "+groupColumns+" FROM grupo g ORDER BY g.id ASC"+s.dialect.page(offset, limit))
	if err != nil {
		return nil, fmt.Errorf("list groups: %w", err)
	}
	return collectGroups(rows, "list groups")
}

// GroupCount counts all groups.
func (s *Store) GroupCount(ctx context.Context) (int64, error) {
	var n int64
	if err := s.reader().queryRow(ctx, "SELECT COUNT(*) FROM grupo").Scan(&n); err != nil {
		return 0, fmt.Errorf("count groups: %w", err)
	}
	return n, nil
}

// GroupKeyExists reports whether the group exists.
func (s *Store) GroupKeyExists(ctx context.Context, id int64) (bool, error) {
	return rowExists(ctx, s.reader(), "SELECT COUNT(*) FROM grupo WHERE id = ?", id)
}

// GroupSize counts a group's members by archival state.
func (s *Store) GroupSize(ctx context.Context, id int64, which model.GroupMembership) (int64, error) {
	query := "SELECT COUNT(*) FROM EntitiesInAGroup eiag JOIN Entity e ON e.id = eiag.entity_id WHERE eiag.group_id = ?"
	switch which {
	case model.AllMembers:
	case model.NonArchivedMembers:
		query += " AND NOT e.archived"
	case model.ArchivedMembers:
		query += " AND e.archived"
	default:
		return 0, newError(CodeInvalidInput, "group size", fmt.Sprintf("unknown membership selector %d", int(which)), id)
	}
	var n int64
	if err := s.reader().queryRow(ctx, query, id).Scan(&n); err != nil {
		return 0, fmt.Errorf("group size %d: %w", id, err)
	}
	return n, nil
}

// GroupMember is one entity in a group with its sorting index.
type GroupMember struct {
	SortingIndex int64        `json:"sorting_index"`
	Entity       model.Entity `json:"entity"`
}

// GroupEntries returns a page of a group's members in sorting order.
func (s *Store) GroupEntries(ctx context.Context, groupID int64, offset, limit int, includeArchived bool) ([]GroupMember, error) {
	query := "SELECT " + entityColumns + `, eiag.sorting_index
		FROM EntitiesInAGroup eiag JOIN Entity e ON e.id = eiag.entity_id
		WHERE eiag.group_id = ?`
	if !includeArchived {
		query += " AND NOT e.archived"
	}
	query += " ORDER BY eiag.sorting_index ASC" + s.dialect.page(offset, limit)
	rows, err := s.reader().query(ctx, query, groupID)
	if err != nil {
		return nil, fmt.Errorf("group entries %d: %w", groupID, err)
	}
	defer rows.Close()

	members := make([]GroupMember, 0)
	for rows.Next() {
		var m GroupMember
		m.Entity, err = scanEntityWith(rows, &m.SortingIndex)
		if err != nil {
			return nil, fmt.Errorf("group entries: scan: %w", err)
		}
		members = append(members, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("group entries: iterate: %w", err)
	}
	return members, nil
}

// AddEntityToGroup makes entityID a member of groupID. If the group
// disallows mixed classes and the new member would break that, the call
// fails with MIXED_CLASSES and membership is unchanged.
func (s *Store) AddEntityToGroup(ctx context.Context, sc Scope, groupID, entityID int64, sortingIndex *int64) error {
	const op = "add entity to group"
	o, err := s.begin(ctx, sc, op)
	if err != nil {
		return err
	}
	defer o.discard()
	if err := s.addEntityToGroup(ctx, o.runner, op, groupID, entityID, sortingIndex); err != nil {
		return err
	}
	return o.finish()
}

func (s *Store) addEntityToGroup(ctx context.Context, r runner, op string, groupID, entityID int64, sortingIndex *int64) error {
	g, err := getGroup(ctx, r, groupID)
	if err != nil {
		return err
	}
	index, err := s.allocateIndex(ctx, r, groupScope{groupID}, sortingIndex, g.NewEntriesStickToTop)
	if err != nil {
		return err
	}
	_, err = r.exec(ctx, `
		INSERT INTO EntitiesInAGroup (group_id, entity_id, sorting_index) VALUES (?, ?, ?)
	`, groupID, entityID, index)
	if err != nil {
		return wrap(op, err, groupID, entityID)
	}
	return s.checkHomogeneity(ctx, r, op, groupID)
}

// RemoveEntityFromGroup ends a membership. The entity itself stays.
func (s *Store) RemoveEntityFromGroup(ctx context.Context, sc Scope, groupID, entityID int64) error {
	const op = "remove entity from group"
	o, err := s.begin(ctx, sc, op)
	if err != nil {
		return err
	}
	defer o.discard()
	if err := removeEntityFromGroup(ctx, o.runner, op, groupID, entityID); err != nil {
		return err
	}
	return o.finish()
}

func removeEntityFromGroup(ctx context.Context, r runner, op string, groupID, entityID int64) error {
	res, err := r.exec(ctx, "DELETE FROM EntitiesInAGroup WHERE group_id = ? AND entity_id = ?", groupID, entityID)
	if err != nil {
		return wrap(op, err, groupID, entityID)
	}
	return expectOneRow(res, op, "group entry", groupID, entityID)
}

// IsEntityInGroup reports whether entityID is a member of groupID.
func (s *Store) IsEntityInGroup(ctx context.Context, groupID, entityID int64) (bool, error) {
	return rowExists(ctx, s.reader(),
		"SELECT COUNT(*) FROM EntitiesInAGroup WHERE group_id = ? AND entity_id = ?", groupID, entityID)
}

// DeleteGroupAndRelationsToIt removes a group, its memberships and every
// relation to it. Member entities stay.
func (s *Store) DeleteGroupAndRelationsToIt(ctx context.Context, sc Scope, id int64) error {
	const op = "delete group and relations to it"
	o, err := s.begin(ctx, sc, op)
	if err != nil {
		return err
	}
	defer o.discard()
	if err := deleteGroupRow(ctx, o.runner, op, id); err != nil {
		return err
	}
	return o.finish()
}

// DeleteGroupRelationsToItAndItsEntries removes a group, every relation to
// it, and the member entities themselves.
func (s *Store) DeleteGroupRelationsToItAndItsEntries(ctx context.Context, sc Scope, id int64) error {
	const op = "delete group and its entries"
	o, err := s.begin(ctx, sc, op)
	if err != nil {
		return err
	}
	defer o.discard()

	members, err := groupScope{id}.members(ctx, o.runner)
	if err != nil {
		return err
	}
	if err := deleteGroupRow(ctx, o.runner, op, id); err != nil {
		return err
	}
	for _, m := range members {
		if err := o.deleteEntity(ctx, m.id); err != nil {
			return err
		}
	}
	return o.finish()
}

// deleteGroupRow relies on cascades for memberships and relations to the
// group; the relations' sorting rows go through their cleanup trigger.
func deleteGroupRow(ctx context.Context, r runner, op string, id int64) error {
	res, err := r.exec(ctx, "DELETE FROM grupo WHERE id = ?", id)
	if err != nil {
		return wrap(op, err, id)
	}
	return expectOneRow(res, op, "group", id)
}

// ContainingRelationsToGroup lists the relations pointing at groupID.
func (s *Store) ContainingRelationsToGroup(ctx context.Context, groupID int64) ([]model.RelationToGroup, error) {
	rows, err := s.reader().query(ctx, `
		SELECT id, entity_id, rel_type_id, group_id, valid_on_date, observation_date
		FROM RelationToGroup WHERE group_id = ?
		ORDER BY id ASC
	`, groupID)
	if err != nil {
		return nil, fmt.Errorf("relations to group %d: %w", groupID, err)
	}
	defer rows.Close()

	rels := make([]model.RelationToGroup, 0)
	for rows.Next() {
		var (
			rel     model.RelationToGroup
			validOn sql.NullInt64
			obs     int64
		)
		if err := rows.Scan(&rel.ID, &rel.EntityID, &rel.RelTypeID, &rel.GroupID, &validOn, &obs); err != nil {
			return nil, fmt.Errorf("relations to group: scan: %w", err)
		}
		rel.ValidOnDate = timePtr(validOn)
		rel.ObservationDate = fromMillis(obs)
		rels = append(rels, rel)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("relations to group: iterate: %w", err)
	}
	return rels, nil
}

// ContainingGroups lists the groups that hold entityID.
func (s *Store) ContainingGroups(ctx context.Context, entityID int64) ([]model.Group, error) {
	rows, err := s.reader().query(ctx, "SELECT "+groupColumns+`
		FROM grupo g JOIN EntitiesInAGroup eiag ON eiag.group_id = g.id
		WHERE eiag.entity_id = ?
		ORDER BY g.id ASC
	`, entityID)
	if err != nil {
		return nil, fmt.Errorf("containing groups of %d: %w", entityID, err)
	}
	return collectGroups(rows, "containing groups")
}

func containingGroupIDs(ctx context.Context, r runner, entityID int64) ([]int64, error) {
	return queryIDs(ctx, r, "containing groups",
		"SELECT group_id FROM EntitiesInAGroup WHERE entity_id = ? ORDER BY group_id ASC", entityID)
}

// MatchingGroups returns groups whose name matches pattern case-insensitively.
func (s *Store) MatchingGroups(ctx context.Context, pattern string, offset, limit int) ([]model.Group, error) {
	const op = "matching groups"
	if err := validPattern(op, pattern); err != nil {
		return nil, err
	}
	query := "SELECT " + groupColumns + " FROM grupo g WHERE " + s.dialect.regexMatch("g.name") +
		" ORDER BY g.id ASC" + s.dialect.page(offset, limit)
	rows, err := s.reader().query(ctx, query, s.dialect.regexArg(pattern))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return collectGroups(rows, op)
}

// checkHomogeneity fails with MIXED_CLASSES when groupID disallows mixed
// classes and its members do not all share one class reference. A null
// class counts as a distinct value. It scans the whole membership and must
// run inside the transaction of the mutation being checked.
func (s *Store) checkHomogeneity(ctx context.Context, r runner, op string, groupID int64) error {
	var allowMixed bool
	err := r.queryRow(ctx, "SELECT allow_mixed_classes FROM grupo WHERE id = ?", groupID).Scan(&allowMixed)
	if err != nil {
		return scanOne(err, op, "group", groupID)
	}
	if allowMixed {
		return nil
	}

	var classes, nullClasses int64
	err = r.queryRow(ctx, `
		SELECT COUNT(DISTINCT e.class_id), COUNT(*) - COUNT(e.class_id)
		FROM EntitiesInAGroup eiag JOIN Entity e ON e.id = eiag.entity_id
		WHERE eiag.group_id = ?
	`, groupID).Scan(&classes, &nullClasses)
	if err != nil {
		return fmt.Errorf("%s: check group classes %d: %w", op, groupID, err)
	}
	if classes > 1 || (classes == 1 && nullClasses > 0) {
		s.metrics.mixedRejected()
		return newError(CodeMixedClasses, op,
			fmt.Sprintf("group %d does not allow entities of different classes", groupID), groupID)
	}
	return nil
}

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/onemodel/internal/model"
)

// Names of the rows every store carries.
const (
	SystemEntityName        = ".system-use-only"
	HasRelationTypeName     = "has"
	HasReverseName          = "is had by"
	ClassDefiningGroupName  = "class-defining entities"
	PreferencesEntityName   = "User preferences"
	LocalInstanceAddress    = "localhost"
	preferencesSearchLevels = 1
)

// BaseIDs locates the base data created on first open.
type BaseIDs struct {
	SystemEntityID      int64  `json:"system_entity_id"`
	HasRelTypeID        int64  `json:"has_rel_type_id"`
	ClassGroupID        int64  `json:"class_group_id"`
	PreferencesEntityID int64  `json:"preferences_entity_id"`
	LocalInstanceID     string `json:"local_instance_id"`
}

// Base returns the ids of the base data.
func (s *Store) Base() BaseIDs {
	return s.base
}

// ensureBaseData seeds the id sequences and creates whichever base rows are
// missing. Existing rows are found by name and reused, so reopening a store
// changes nothing.
func (s *Store) ensureBaseData(ctx context.Context) error {
	const op = "ensure base data"
	o, err := s.begin(ctx, Standalone(), op)
	if err != nil {
		return err
	}
	defer o.discard()
	r := o.runner

	if err := ensureSequences(ctx, r); err != nil {
		return err
	}

	var base BaseIDs
	created := false

	id, ok, err := lookupID(ctx, r, `
		SELECT e.id FROM Entity e WHERE e.name = ? AND `+notRelationType+` ORDER BY e.id ASC
	`, SystemEntityName)
	if err != nil {
		return fmt.Errorf("%s: system entity: %w", op, err)
	}
	if !ok {
		if id, err = s.insertEntity(ctx, r, op, SystemEntityName, nil, nil); err != nil {
			return err
		}
		created = true
	}
	base.SystemEntityID = id

	id, ok, err = lookupID(ctx, r, `
		SELECT e.id FROM Entity e JOIN RelationType rt ON rt.entity_id = e.id
		WHERE e.name = ? ORDER BY e.id ASC
	`, HasRelationTypeName)
	if err != nil {
		return fmt.Errorf("%s: has relation type: %w", op, err)
	}
	if !ok {
		if id, err = s.insertRelationType(ctx, r, op, HasRelationTypeName, HasReverseName, model.Unidirectional); err != nil {
			return err
		}
		created = true
	}
	base.HasRelTypeID = id

	id, ok, err = lookupID(ctx, r, `
		SELECT g.id FROM grupo g JOIN RelationToGroup rtg ON rtg.group_id = g.id
		WHERE rtg.entity_id = ? AND g.name = ? ORDER BY g.id ASC
	`, base.SystemEntityID, ClassDefiningGroupName)
	if err != nil {
		return fmt.Errorf("%s: class-defining group: %w", op, err)
	}
	if !ok {
		if id, err = s.insertGroup(ctx, r, op, ClassDefiningGroupName, true); err != nil {
			return err
		}
		_, err = s.insertRelationToGroup(ctx, r, model.RelationToGroup{
			EntityID:  base.SystemEntityID,
			RelTypeID: base.HasRelTypeID,
			GroupID:   id,
		}, nil)
		if err != nil {
			return err
		}
		created = true
	}
	base.ClassGroupID = id

	prefs, err := s.findPreferencesContainer(ctx, r, base.SystemEntityID)
	if err != nil {
		return err
	}
	if prefs == 0 {
		prefs, _, err = s.insertEntityAndRelation(ctx, r, op, base.SystemEntityID, base.HasRelTypeID, PreferencesEntityName)
		if err != nil {
			return err
		}
		created = true
	}
	base.PreferencesEntityID = prefs

	var localID string
	err = r.queryRow(ctx, "SELECT id FROM omInstance WHERE local = ?", true).Scan(&localID)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		if localID, err = s.insertOmInstance(ctx, r, op, true, LocalInstanceAddress, nil); err != nil {
			return err
		}
		created = true
	case err != nil:
		return fmt.Errorf("%s: local instance: %w", op, err)
	}
	base.LocalInstanceID = localID

	if err := o.finish(); err != nil {
		return err
	}
	s.base = base
	if created {
		s.logger.Info("created base data",
			"system_entity", base.SystemEntityID,
			"class_group", base.ClassGroupID,
			"preferences", base.PreferencesEntityID,
			"local_instance", base.LocalInstanceID)
	}
	return nil
}

// findPreferencesContainer locates the preferences entity one relation away
// from the system entity, or returns 0.
func (s *Store) findPreferencesContainer(ctx context.Context, r runner, systemID int64) (int64, error) {
	found := make(map[int64]struct{})
	q := SearchQuery{Text: PreferencesEntityName, Depth: preferencesSearchLevels, StopAfterAnyFound: true}
	if err := s.searchFrom(ctx, r, systemID, q, q.Depth, found); err != nil {
		return 0, fmt.Errorf("find preferences: %w", err)
	}
	for _, id := range sortedIDs(found) {
		e, err := getEntity(ctx, r, id)
		if err != nil {
			return 0, err
		}
		if e.Name == PreferencesEntityName {
			return id, nil
		}
	}
	return 0, nil
}

// insertEntityAndRelation creates an entity named name and a relation from
// fromID to it, returning both ids.
func (s *Store) insertEntityAndRelation(ctx context.Context, r runner, op string, fromID, relTypeID int64, name string) (int64, int64, error) {
	id, err := s.insertEntity(ctx, r, op, name, nil, nil)
	if err != nil {
		return 0, 0, err
	}
	relID, err := s.insertRelationToLocalEntity(ctx, r, model.RelationToLocalEntity{
		RelTypeID: relTypeID,
		EntityID:  fromID,
		EntityID2: id,
	}, nil)
	if err != nil {
		return 0, 0, err
	}
	return id, relID, nil
}

func lookupID(ctx context.Context, r runner, query string, args ...any) (int64, bool, error) {
	var id int64
	err := r.queryRow(ctx, query, args...).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return id, true, nil
}

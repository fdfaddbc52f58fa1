package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/onemodel/internal/model"
)

// PrefFirstDisplayEntity names the entity shown first on startup.
const PrefFirstDisplayEntity = "first display entity"

// Each preference is an entity named after it, related from the preferences
// container. A boolean preference is a boolean attribute on that entity
// typed by the entity itself; an entity preference is a "has" relation from
// it to the chosen entity.

func (s *Store) preferenceEntity(ctx context.Context, r runner, op, name string, create bool) (int64, bool, error) {
	name, err := cleanName(op, name)
	if err != nil {
		return 0, false, err
	}
	id, ok, err := lookupID(ctx, r, `
		SELECT e.id FROM RelationToEntity rte JOIN Entity e ON e.id = rte.entity_id_2
		WHERE rte.entity_id = ? AND rte.rel_type_id = ? AND e.name = ? AND NOT e.archived
		ORDER BY e.id ASC
	`, s.base.PreferencesEntityID, s.base.HasRelTypeID, name)
	if err != nil {
		return 0, false, fmt.Errorf("%s: find preference %q: %w", op, name, err)
	}
	if ok || !create {
		return id, ok, nil
	}
	id, _, err = s.insertEntityAndRelation(ctx, r, op, s.base.PreferencesEntityID, s.base.HasRelTypeID, name)
	if err != nil {
		return 0, false, err
	}
	return id, true, nil
}

// SetPreferenceBoolean stores a boolean preference.
func (s *Store) SetPreferenceBoolean(ctx context.Context, sc Scope, name string, value bool) error {
	const op = "set boolean preference"
	o, err := s.begin(ctx, sc, op)
	if err != nil {
		return err
	}
	defer o.discard()

	prefID, _, err := s.preferenceEntity(ctx, o.runner, op, name, true)
	if err != nil {
		return err
	}
	attrID, ok, err := lookupID(ctx, o.runner,
		"SELECT id FROM BooleanAttribute WHERE entity_id = ? AND attr_type_id = ? ORDER BY id ASC", prefID, prefID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	observed := millis(s.now())
	if ok {
		_, err = o.exec(ctx, "UPDATE BooleanAttribute SET boolean_value = ?, observation_date = ? WHERE id = ?",
			value, observed, attrID)
		if err != nil {
			return wrap(op, err, attrID)
		}
	} else {
		_, err = s.insertAttribute(ctx, o.runner, op, model.BooleanForm, prefID, nil,
			func(ctx context.Context, r runner, id int64) error {
				_, err := r.exec(ctx, `
					INSERT INTO BooleanAttribute (id, entity_id, attr_type_id, boolean_value, valid_on_date, observation_date)
					VALUES (?, ?, ?, ?, NULL, ?)
				`, id, prefID, prefID, value, observed)
				return err
			})
		if err != nil {
			return err
		}
	}
	return o.finish()
}

// GetPreferenceBoolean returns a boolean preference, or nil if it was never set.
func (s *Store) GetPreferenceBoolean(ctx context.Context, name string) (*bool, error) {
	const op = "get boolean preference"
	r := s.reader()
	prefID, ok, err := s.preferenceEntity(ctx, r, op, name, false)
	if err != nil || !ok {
		return nil, err
	}
	var value bool
	err = r.queryRow(ctx,
		"SELECT boolean_value FROM BooleanAttribute WHERE entity_id = ? AND attr_type_id = ? ORDER BY id ASC",
		prefID, prefID).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%s %q: %w", op, name, err)
	}
	return &value, nil
}

// SetPreferenceEntityID points an entity preference at entityID, replacing
// any earlier choice.
func (s *Store) SetPreferenceEntityID(ctx context.Context, sc Scope, name string, entityID int64) error {
	const op = "set entity preference"
	o, err := s.begin(ctx, sc, op)
	if err != nil {
		return err
	}
	defer o.discard()

	prefID, _, err := s.preferenceEntity(ctx, o.runner, op, name, true)
	if err != nil {
		return err
	}
	_, err = o.exec(ctx, "DELETE FROM RelationToEntity WHERE entity_id = ? AND rel_type_id = ?", prefID, s.base.HasRelTypeID)
	if err != nil {
		return wrap(op, err, prefID)
	}
	_, err = s.insertRelationToLocalEntity(ctx, o.runner, model.RelationToLocalEntity{
		RelTypeID: s.base.HasRelTypeID,
		EntityID:  prefID,
		EntityID2: entityID,
	}, nil)
	if err != nil {
		return err
	}
	return o.finish()
}

// GetPreferenceEntityID returns the entity an entity preference points at,
// or nil if it was never set.
func (s *Store) GetPreferenceEntityID(ctx context.Context, name string) (*int64, error) {
	const op = "get entity preference"
	r := s.reader()
	prefID, ok, err := s.preferenceEntity(ctx, r, op, name, false)
	if err != nil || !ok {
		return nil, err
	}
	id, ok, err := lookupID(ctx, r,
		"SELECT entity_id_2 FROM RelationToEntity WHERE entity_id = ? AND rel_type_id = ? ORDER BY id DESC",
		prefID, s.base.HasRelTypeID)
	if err != nil {
		return nil, fmt.Errorf("%s %q: %w", op, name, err)
	}
	if !ok {
		return nil, nil
	}
	return &id, nil
}

// DefaultEntity resolves the first-display-entity preference. It returns
// nil when the preference is unset or its target is archived.
func (s *Store) DefaultEntity(ctx context.Context) (*model.Entity, error) {
	id, err := s.GetPreferenceEntityID(ctx, PrefFirstDisplayEntity)
	if err != nil || id == nil {
		return nil, err
	}
	e, err := s.GetEntity(ctx, *id)
	if IsNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if e.Archived {
		return nil, nil
	}
	return &e, nil
}

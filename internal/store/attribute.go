package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/roach88/onemodel/internal/model"
)

// formTables maps each attribute form to the table holding its rows.
var formTables = map[model.FormID]string{
	model.QuantityForm:               "QuantityAttribute",
	model.DateForm:                   "DateAttribute",
	model.BooleanForm:                "BooleanAttribute",
	model.FileForm:                   "FileAttribute",
	model.TextForm:                   "TextAttribute",
	model.RelationToLocalEntityForm:  "RelationToEntity",
	model.RelationToGroupForm:        "RelationToGroup",
	model.RelationToRemoteEntityForm: "RelationToRemoteEntity",
}

func formTable(op string, form model.FormID) (string, error) {
	table, ok := formTables[form]
	if !ok {
		return "", newError(CodeInvalidInput, op, fmt.Sprintf("unknown attribute form %d", int(form)))
	}
	return table, nil
}

// AttributeKeyExists reports whether an attribute of the given form exists.
func (s *Store) AttributeKeyExists(ctx context.Context, form model.FormID, id int64) (bool, error) {
	table, err := formTable("attribute key exists", form)
	if err != nil {
		return false, err
	}
	return rowExists(ctx, s.reader(), "SELECT COUNT(*) FROM "+table+" WHERE id = ?", id)
}

func rowExists(ctx context.Context, r runner, q string, args ...any) (bool, error) {
	var n int64
	if err := r.queryRow(ctx, q, args...).Scan(&n); err != nil {
		return false, fmt.Errorf("key exists: %w", err)
	}
	return n > 0, nil
}

// observed defaults a zero observation date to the store clock.
func (s *Store) observed(t time.Time) time.Time {
	if t.IsZero() {
		return s.now()
	}
	return t
}

// createAttribute draws an id from the form's sequence, allocates the
// AttributeSorting row and inserts the form row, all in one transaction.
func (s *Store) createAttribute(
	ctx context.Context,
	sc Scope,
	op string,
	form model.FormID,
	entityID int64,
	sortingIndex *int64,
	insert func(ctx context.Context, r runner, id int64) error,
) (int64, error) {
	o, err := s.begin(ctx, sc, op)
	if err != nil {
		return 0, err
	}
	defer o.discard()

	id, err := s.insertAttribute(ctx, o.runner, op, form, entityID, sortingIndex, insert)
	if err != nil {
		return 0, err
	}
	if err := o.finish(); err != nil {
		return 0, err
	}
	return id, nil
}

// insertAttribute is createAttribute's body for callers that already hold a
// transaction.
func (s *Store) insertAttribute(
	ctx context.Context,
	r runner,
	op string,
	form model.FormID,
	entityID int64,
	sortingIndex *int64,
	insert func(ctx context.Context, r runner, id int64) error,
) (int64, error) {
	var stickToTop bool
	err := r.queryRow(ctx, "SELECT new_entries_stick_to_top FROM Entity WHERE id = ?", entityID).Scan(&stickToTop)
	if err != nil {
		return 0, scanOne(err, op, "entity", entityID)
	}
	id, err := nextID(ctx, r, attributeSequence(form))
	if err != nil {
		return 0, err
	}
	index, err := s.allocateIndex(ctx, r, attributeScope{entityID}, sortingIndex, stickToTop)
	if err != nil {
		return 0, err
	}
	_, err = r.exec(ctx, `
		INSERT INTO AttributeSorting (entity_id, attribute_form_id, attribute_id, sorting_index)
		VALUES (?, ?, ?, ?)
	`, entityID, form, id, index)
	if err != nil {
		return 0, wrap(op+": insert sorting row", err, entityID, id)
	}
	if err := insert(ctx, r, id); err != nil {
		return 0, wrap(op, err, entityID, id)
	}
	return id, nil
}

// updateOne runs a single-row update in its own operation scope.
func (s *Store) updateOne(ctx context.Context, sc Scope, op, what string, id int64, query string, args ...any) error {
	o, err := s.begin(ctx, sc, op)
	if err != nil {
		return err
	}
	defer o.discard()
	res, err := o.exec(ctx, query, args...)
	if err != nil {
		return wrap(op, err, id)
	}
	if err := expectOneRow(res, op, what, id); err != nil {
		return err
	}
	return o.finish()
}

// deleteAttribute removes a form row. Its sorting row goes with it through
// the cleanup trigger.
func (s *Store) deleteAttribute(ctx context.Context, r runner, op string, form model.FormID, id int64) error {
	table, err := formTable(op, form)
	if err != nil {
		return err
	}
	res, err := r.exec(ctx, "DELETE FROM "+table+" WHERE id = ?", id)
	if err != nil {
		return wrap(op, err, id)
	}
	return expectOneRow(res, op, form.String()+" attribute", id)
}

func (s *Store) deleteAttributeScoped(ctx context.Context, sc Scope, op string, form model.FormID, id int64) error {
	o, err := s.begin(ctx, sc, op)
	if err != nil {
		return err
	}
	defer o.discard()
	if err := s.deleteAttribute(ctx, o.runner, op, form, id); err != nil {
		return err
	}
	if form == model.FileForm && s.blobs != nil {
		o.orphans = append(o.orphans, id)
	}
	return o.finish()
}

// GetAttribute loads any attribute by form and id.
func (s *Store) GetAttribute(ctx context.Context, form model.FormID, id int64) (model.Attribute, error) {
	return getAttribute(ctx, s.reader(), form, id)
}

func getAttribute(ctx context.Context, r runner, form model.FormID, id int64) (model.Attribute, error) {
	switch form {
	case model.QuantityForm:
		return getQuantity(ctx, r, id)
	case model.DateForm:
		return getDate(ctx, r, id)
	case model.BooleanForm:
		return getBoolean(ctx, r, id)
	case model.FileForm:
		return getFile(ctx, r, id)
	case model.TextForm:
		return getText(ctx, r, id)
	case model.RelationToLocalEntityForm:
		return getRelationToLocalEntity(ctx, r, id)
	case model.RelationToGroupForm:
		return getRelationToGroup(ctx, r, id)
	case model.RelationToRemoteEntityForm:
		return getRelationToRemoteEntity(ctx, r, id)
	}
	return nil, newError(CodeInvalidInput, "get attribute", fmt.Sprintf("unknown attribute form %d", int(form)), id)
}

// SortedAttributes returns one page of an entity's attributes in sorting
// order, plus the entity's total attribute count. A limit of 0 means no
// limit. With onlyPublic, relations to entities not marked public are left
// out of the page.
func (s *Store) SortedAttributes(ctx context.Context, entityID int64, offset, limit int, onlyPublic bool) ([]model.SortedAttribute, int64, error) {
	r := s.reader()
	members, err := attributeScope{entityID}.members(ctx, r)
	if err != nil {
		return nil, 0, err
	}
	total := int64(len(members))

	result := make([]model.SortedAttribute, 0)
	skipped := 0
	for _, m := range members {
		attr, err := getAttribute(ctx, r, m.form, m.id)
		if err != nil {
			return nil, 0, fmt.Errorf("sorted attributes of %d: %w", entityID, err)
		}
		if onlyPublic {
			if rel, ok := attr.(model.RelationToLocalEntity); ok {
				public, err := entityIsPublic(ctx, r, rel.EntityID2)
				if err != nil {
					return nil, 0, err
				}
				if !public {
					continue
				}
			}
		}
		if skipped < offset {
			skipped++
			continue
		}
		result = append(result, model.SortedAttribute{SortingIndex: m.index, Attribute: attr})
		if limit > 0 && len(result) >= limit {
			break
		}
	}
	return result, total, nil
}

func entityIsPublic(ctx context.Context, r runner, id int64) (bool, error) {
	var public sql.NullBool
	err := r.queryRow(ctx, "SELECT public FROM Entity WHERE id = ?", id).Scan(&public)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("entity public flag %d: %w", id, err)
	}
	return public.Valid && public.Bool, nil
}

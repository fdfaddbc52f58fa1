package store

import (
	"context"
	"database/sql"

	"github.com/roach88/onemodel/internal/model"
)

// CreateBooleanAttribute adds a boolean to a.EntityID and returns its id.
func (s *Store) CreateBooleanAttribute(ctx context.Context, sc Scope, a model.BooleanAttribute, sortingIndex *int64) (int64, error) {
	observed := s.observed(a.ObservationDate)
	return s.createAttribute(ctx, sc, "create boolean attribute", model.BooleanForm, a.EntityID, sortingIndex,
		func(ctx context.Context, r runner, id int64) error {
			_, err := r.exec(ctx, `
				INSERT INTO BooleanAttribute
				(id, entity_id, attr_type_id, boolean_value, valid_on_date, observation_date)
				VALUES (?, ?, ?, ?, ?, ?)
			`, id, a.EntityID, a.AttrTypeID, a.Value, nullMillis(a.ValidOnDate), millis(observed))
			return err
		})
}

// UpdateBooleanAttribute rewrites every mutable field of a.
func (s *Store) UpdateBooleanAttribute(ctx context.Context, sc Scope, a model.BooleanAttribute) error {
	return s.updateOne(ctx, sc, "update boolean attribute", "boolean attribute", a.ID, `
		UPDATE BooleanAttribute
		SET attr_type_id = ?, boolean_value = ?, valid_on_date = ?, observation_date = ?
		WHERE id = ? AND entity_id = ?
	`, a.AttrTypeID, a.Value, nullMillis(a.ValidOnDate), millis(s.observed(a.ObservationDate)), a.ID, a.EntityID)
}

// DeleteBooleanAttribute removes a boolean attribute and its sorting row.
func (s *Store) DeleteBooleanAttribute(ctx context.Context, sc Scope, id int64) error {
	return s.deleteAttributeScoped(ctx, sc, "delete boolean attribute", model.BooleanForm, id)
}

// GetBooleanAttribute loads a boolean attribute by id.
func (s *Store) GetBooleanAttribute(ctx context.Context, id int64) (model.BooleanAttribute, error) {
	return getBoolean(ctx, s.reader(), id)
}

// BooleanAttributeKeyExists reports whether the boolean attribute exists.
func (s *Store) BooleanAttributeKeyExists(ctx context.Context, id int64) (bool, error) {
	return s.AttributeKeyExists(ctx, model.BooleanForm, id)
}

func getBoolean(ctx context.Context, r runner, id int64) (model.BooleanAttribute, error) {
	var (
		a       model.BooleanAttribute
		validOn sql.NullInt64
		obs     int64
	)
	err := r.queryRow(ctx, `
		SELECT id, entity_id, attr_type_id, boolean_value, valid_on_date, observation_date
		FROM BooleanAttribute WHERE id = ?
	`, id).Scan(&a.ID, &a.EntityID, &a.AttrTypeID, &a.Value, &validOn, &obs)
	if err != nil {
		return model.BooleanAttribute{}, scanOne(err, "get boolean attribute", "boolean attribute", id)
	}
	a.ValidOnDate = timePtr(validOn)
	a.ObservationDate = fromMillis(obs)
	return a, nil
}

package store

import (
	"context"
	"database/sql"

	"github.com/roach88/onemodel/internal/model"
)

// CreateQuantityAttribute adds a quantity to a.EntityID and returns its id.
// a.ID is ignored; a zero ObservationDate means now.
func (s *Store) CreateQuantityAttribute(ctx context.Context, sc Scope, a model.QuantityAttribute, sortingIndex *int64) (int64, error) {
	observed := s.observed(a.ObservationDate)
	return s.createAttribute(ctx, sc, "create quantity attribute", model.QuantityForm, a.EntityID, sortingIndex,
		func(ctx context.Context, r runner, id int64) error {
			_, err := r.exec(ctx, `
				INSERT INTO QuantityAttribute
				(id, entity_id, attr_type_id, unit_id, quantity_number, valid_on_date, observation_date)
				VALUES (?, ?, ?, ?, ?, ?, ?)
			`, id, a.EntityID, a.AttrTypeID, a.UnitID, a.Number, nullMillis(a.ValidOnDate), millis(observed))
			return err
		})
}

// UpdateQuantityAttribute rewrites every mutable field of a.
func (s *Store) UpdateQuantityAttribute(ctx context.Context, sc Scope, a model.QuantityAttribute) error {
	return s.updateOne(ctx, sc, "update quantity attribute", "quantity attribute", a.ID, `
		UPDATE QuantityAttribute
		SET attr_type_id = ?, unit_id = ?, quantity_number = ?, valid_on_date = ?, observation_date = ?
		WHERE id = ? AND entity_id = ?
	`, a.AttrTypeID, a.UnitID, a.Number, nullMillis(a.ValidOnDate), millis(s.observed(a.ObservationDate)), a.ID, a.EntityID)
}

// DeleteQuantityAttribute removes a quantity and its sorting row.
func (s *Store) DeleteQuantityAttribute(ctx context.Context, sc Scope, id int64) error {
	return s.deleteAttributeScoped(ctx, sc, "delete quantity attribute", model.QuantityForm, id)
}

// GetQuantityAttribute loads a quantity by id.
func (s *Store) GetQuantityAttribute(ctx context.Context, id int64) (model.QuantityAttribute, error) {
	return getQuantity(ctx, s.reader(), id)
}

// QuantityAttributeKeyExists reports whether the quantity exists.
func (s *Store) QuantityAttributeKeyExists(ctx context.Context, id int64) (bool, error) {
	return s.AttributeKeyExists(ctx, model.QuantityForm, id)
}

func getQuantity(ctx context.Context, r runner, id int64) (model.QuantityAttribute, error) {
	var (
		a       model.QuantityAttribute
		validOn sql.NullInt64
		obs     int64
	)
	err := r.queryRow(ctx, `
		SELECT id, entity_id, attr_type_id, unit_id, quantity_number, valid_on_date, observation_date
		FROM QuantityAttribute WHERE id = ?
	`, id).Scan(&a.ID, &a.EntityID, &a.AttrTypeID, &a.UnitID, &a.Number, &validOn, &obs)
	if err != nil {
		return model.QuantityAttribute{}, scanOne(err, "get quantity attribute", "quantity attribute", id)
	}
	a.ValidOnDate = timePtr(validOn)
	a.ObservationDate = fromMillis(obs)
	return a, nil
}

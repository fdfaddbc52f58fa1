package store

import (
	"context"
	"database/sql"

	"github.com/roach88/onemodel/internal/model"
)

// CreateTextAttribute adds a text body to a.EntityID and returns its id.
func (s *Store) CreateTextAttribute(ctx context.Context, sc Scope, a model.TextAttribute, sortingIndex *int64) (int64, error) {
	observed := s.observed(a.ObservationDate)
	return s.createAttribute(ctx, sc, "create text attribute", model.TextForm, a.EntityID, sortingIndex,
		func(ctx context.Context, r runner, id int64) error {
			_, err := r.exec(ctx, `
				INSERT INTO TextAttribute
				(id, entity_id, attr_type_id, text_value, valid_on_date, observation_date)
				VALUES (?, ?, ?, ?, ?, ?)
			`, id, a.EntityID, a.AttrTypeID, a.Text, nullMillis(a.ValidOnDate), millis(observed))
			return err
		})
}

// UpdateTextAttribute rewrites every mutable field of a.
func (s *Store) UpdateTextAttribute(ctx context.Context, sc Scope, a model.TextAttribute) error {
	return s.updateOne(ctx, sc, "update text attribute", "text attribute", a.ID, `
		UPDATE TextAttribute
		SET attr_type_id = ?, text_value = ?, valid_on_date = ?, observation_date = ?
		WHERE id = ? AND entity_id = ?
	`, a.AttrTypeID, a.Text, nullMillis(a.ValidOnDate), millis(s.observed(a.ObservationDate)), a.ID, a.EntityID)
}

// DeleteTextAttribute removes a text attribute and its sorting row.
func (s *Store) DeleteTextAttribute(ctx context.Context, sc Scope, id int64) error {
	return s.deleteAttributeScoped(ctx, sc, "delete text attribute", model.TextForm, id)
}

// GetTextAttribute loads a text attribute by id.
func (s *Store) GetTextAttribute(ctx context.Context, id int64) (model.TextAttribute, error) {
	return getText(ctx, s.reader(), id)
}

// TextAttributeKeyExists reports whether the text attribute exists.
func (s *Store) TextAttributeKeyExists(ctx context.Context, id int64) (bool, error) {
	return s.AttributeKeyExists(ctx, model.TextForm, id)
}

func getText(ctx context.Context, r runner, id int64) (model.TextAttribute, error) {
	var (
		a       model.TextAttribute
		validOn sql.NullInt64
		obs     int64
	)
	err := r.queryRow(ctx, `
		SELECT id, entity_id, attr_type_id, text_value, valid_on_date, observation_date
		FROM TextAttribute WHERE id = ?
	`, id).Scan(&a.ID, &a.EntityID, &a.AttrTypeID, &a.Text, &validOn, &obs)
	if err != nil {
		return model.TextAttribute{}, scanOne(err, "get text attribute", "text attribute", id)
	}
	a.ValidOnDate = timePtr(validOn)
	a.ObservationDate = fromMillis(obs)
	return a, nil
}

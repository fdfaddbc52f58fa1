package store

import (
	"context"
	"database/sql"

	"github.com/roach88/onemodel/internal/model"
)

// CreateDateAttribute adds a date to a.EntityID and returns its id.
func (s *Store) CreateDateAttribute(ctx context.Context, sc Scope, a model.DateAttribute, sortingIndex *int64) (int64, error) {
	observed := s.observed(a.ObservationDate)
	return s.createAttribute(ctx, sc, "create date attribute", model.DateForm, a.EntityID, sortingIndex,
		func(ctx context.Context, r runner, id int64) error {
			_, err := r.exec(ctx, `
				INSERT INTO DateAttribute
				(id, entity_id, attr_type_id, date, valid_on_date, observation_date)
				VALUES (?, ?, ?, ?, ?, ?)
			`, id, a.EntityID, a.AttrTypeID, millis(a.Date), nullMillis(a.ValidOnDate), millis(observed))
			return err
		})
}

// UpdateDateAttribute rewrites every mutable field of a.
func (s *Store) UpdateDateAttribute(ctx context.Context, sc Scope, a model.DateAttribute) error {
	return s.updateOne(ctx, sc, "update date attribute", "date attribute", a.ID, `
		UPDATE DateAttribute
		SET attr_type_id = ?, date = ?, valid_on_date = ?, observation_date = ?
		WHERE id = ? AND entity_id = ?
	`, a.AttrTypeID, millis(a.Date), nullMillis(a.ValidOnDate), millis(s.observed(a.ObservationDate)), a.ID, a.EntityID)
}

// DeleteDateAttribute removes a date attribute and its sorting row.
func (s *Store) DeleteDateAttribute(ctx context.Context, sc Scope, id int64) error {
	return s.deleteAttributeScoped(ctx, sc, "delete date attribute", model.DateForm, id)
}

// GetDateAttribute loads a date attribute by id.
func (s *Store) GetDateAttribute(ctx context.Context, id int64) (model.DateAttribute, error) {
	return getDate(ctx, s.reader(), id)
}

// DateAttributeKeyExists reports whether the date attribute exists.
func (s *Store) DateAttributeKeyExists(ctx context.Context, id int64) (bool, error) {
	return s.AttributeKeyExists(ctx, model.DateForm, id)
}

func getDate(ctx context.Context, r runner, id int64) (model.DateAttribute, error) {
	var (
		a       model.DateAttribute
		date    int64
		validOn sql.NullInt64
		obs     int64
	)
	err := r.queryRow(ctx, `
		SELECT id, entity_id, attr_type_id, date, valid_on_date, observation_date
		FROM DateAttribute WHERE id = ?
	`, id).Scan(&a.ID, &a.EntityID, &a.AttrTypeID, &date, &validOn, &obs)
	if err != nil {
		return model.DateAttribute{}, scanOne(err, "get date attribute", "date attribute", id)
	}
	a.Date = fromMillis(date)
	a.ValidOnDate = timePtr(validOn)
	a.ObservationDate = fromMillis(obs)
	return a, nil
}

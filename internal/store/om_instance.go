package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/roach88/onemodel/internal/model"
)

const omInstanceColumns = "id, local, address, insertion_date, entity_id"

func scanOmInstance(sc rowScanner) (model.OmInstance, error) {
	var (
		omi      model.OmInstance
		inserted int64
		entityID sql.NullInt64
	)
	if err := sc.Scan(&omi.ID, &omi.Local, &omi.Address, &inserted, &entityID); err != nil {
		return model.OmInstance{}, err
	}
	omi.InsertionDate = fromMillis(inserted)
	omi.EntityID = intPtr(entityID)
	return omi, nil
}

func omInstanceNotFound(op, id string) *Error {
	return newError(CodeNotFound, op, fmt.Sprintf("om instance %q not found", id))
}

func cleanAddress(op, address string) (string, error) {
	address = strings.TrimSpace(address)
	if address == "" {
		return "", newError(CodeInvalidInput, op, "address must not be empty")
	}
	return address, nil
}

// CreateOmInstance registers a remote store at address and returns its
// generated id. entityID optionally names an entity describing the store.
func (s *Store) CreateOmInstance(ctx context.Context, sc Scope, address string, entityID *int64) (string, error) {
	const op = "create om instance"
	address, err := cleanAddress(op, address)
	if err != nil {
		return "", err
	}
	o, err := s.begin(ctx, sc, op)
	if err != nil {
		return "", err
	}
	defer o.discard()
	id, err := s.insertOmInstance(ctx, o.runner, op, false, address, entityID)
	if err != nil {
		return "", err
	}
	if err := o.finish(); err != nil {
		return "", err
	}
	return id, nil
}

func (s *Store) insertOmInstance(ctx context.Context, r runner, op string, local bool, address string, entityID *int64) (string, error) {
	id := s.newInstanceID()
	_, err := r.exec(ctx, `
		INSERT INTO omInstance (id, local, address, insertion_date, entity_id) VALUES (?, ?, ?, ?, ?)
	`, id, local, address, millis(s.now()), nullInt(entityID))
	if err != nil {
		return "", &Error{Code: CodeIntegrity, Op: op, Message: fmt.Sprintf("insert om instance %q", id), Err: err}
	}
	return id, nil
}

// UpdateOmInstance changes an instance's address and describing entity.
func (s *Store) UpdateOmInstance(ctx context.Context, sc Scope, id, address string, entityID *int64) error {
	const op = "update om instance"
	address, err := cleanAddress(op, address)
	if err != nil {
		return err
	}
	o, err := s.begin(ctx, sc, op)
	if err != nil {
		return err
	}
	defer o.discard()
	res, err := o.exec(ctx, "UPDATE omInstance SET address = ?, entity_id = ? WHERE id = ?", address, nullInt(entityID), id)
	if err != nil {
		return wrap(op, err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return wrap(op, err)
	} else if n == 0 {
		return omInstanceNotFound(op, id)
	}
	return o.finish()
}

// GetOmInstance loads an instance by id.
func (s *Store) GetOmInstance(ctx context.Context, id string) (model.OmInstance, error) {
	omi, err := scanOmInstance(s.reader().queryRow(ctx, "SELECT "+omInstanceColumns+" FROM omInstance WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return model.OmInstance{}, omInstanceNotFound("get om instance", id)
	}
	if err != nil {
		return model.OmInstance{}, wrap("get om instance", err)
	}
	return omi, nil
}

// LocalOmInstance returns the instance flagged local.
func (s *Store) LocalOmInstance(ctx context.Context) (model.OmInstance, error) {
	omi, err := scanOmInstance(s.reader().queryRow(ctx, "SELECT "+omInstanceColumns+" FROM omInstance WHERE local = ?", true))
	if err != nil {
		return model.OmInstance{}, scanOne(err, "local om instance", "local om instance")
	}
	return omi, nil
}

// ListOmInstances returns every instance, the local one first.
func (s *Store) ListOmInstances(ctx context.Context) ([]model.OmInstance, error) {
	rows, err := s.reader().query(ctx,
		"SELECT "+omInstanceColumns+" FROM omInstance ORDER BY local DESC, insertion_date ASC, id ASC")
	if err != nil {
		return nil, fmt.Errorf("list om instances: %w", err)
	}
	defer rows.Close()

	instances := make([]model.OmInstance, 0)
	for rows.Next() {
		omi, err := scanOmInstance(rows)
		if err != nil {
			return nil, fmt.Errorf("list om instances: scan: %w", err)
		}
		instances = append(instances, omi)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list om instances: iterate: %w", err)
	}
	return instances, nil
}

// OmInstanceKeyExists reports whether the instance is registered.
func (s *Store) OmInstanceKeyExists(ctx context.Context, id string) (bool, error) {
	return rowExists(ctx, s.reader(), "SELECT COUNT(*) FROM omInstance WHERE id = ?", id)
}

// DeleteOmInstance unregisters a remote instance. Relations to its entities
// go with it. The local instance cannot be deleted.
func (s *Store) DeleteOmInstance(ctx context.Context, sc Scope, id string) error {
	const op = "delete om instance"
	o, err := s.begin(ctx, sc, op)
	if err != nil {
		return err
	}
	defer o.discard()

	var local bool
	err = o.queryRow(ctx, "SELECT local FROM omInstance WHERE id = ?", id).Scan(&local)
	if errors.Is(err, sql.ErrNoRows) {
		return omInstanceNotFound(op, id)
	}
	if err != nil {
		return wrap(op, err)
	}
	if local {
		return newError(CodeInvalidInput, op, fmt.Sprintf("om instance %q is the local instance", id))
	}
	if _, err := o.exec(ctx, "DELETE FROM omInstance WHERE id = ?", id); err != nil {
		return wrap(op, err)
	}
	return o.finish()
}

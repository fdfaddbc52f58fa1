package store

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"io"

	"github.com/roach88/onemodel/internal/blob"
	"github.com/roach88/onemodel/internal/model"
)

// CreateFileAttribute stores a file description and its content. Size and
// MD5Hash are computed from content; when a carries non-zero values they
// must agree, or the call fails with INTEGRITY.
//
// Content goes to the blob store when one is configured, otherwise to
// FileAttributeContent in the same transaction.
func (s *Store) CreateFileAttribute(ctx context.Context, sc Scope, a model.FileAttribute, content io.Reader, sortingIndex *int64) (int64, error) {
	const op = "create file attribute"
	data, err := io.ReadAll(content)
	if err != nil {
		return 0, fmt.Errorf("%s: read content: %w", op, err)
	}
	size, sum := int64(len(data)), md5Hex(data)
	if a.Size != 0 && a.Size != size {
		return 0, newError(CodeIntegrity, op, fmt.Sprintf("content is %d bytes, expected %d", size, a.Size), a.EntityID)
	}
	if a.MD5Hash != "" && a.MD5Hash != sum {
		return 0, newError(CodeIntegrity, op, fmt.Sprintf("content md5 %s, expected %s", sum, a.MD5Hash), a.EntityID)
	}
	a.Size, a.MD5Hash = size, sum
	if a.StoredDate.IsZero() {
		a.StoredDate = s.now()
	}

	o, err := s.begin(ctx, sc, op)
	if err != nil {
		return 0, err
	}
	defer o.discard()

	id, err := s.insertAttribute(ctx, o.runner, op, model.FileForm, a.EntityID, sortingIndex,
		func(ctx context.Context, r runner, id int64) error {
			_, err := r.exec(ctx, `
				INSERT INTO FileAttribute
				(id, entity_id, attr_type_id, description, original_file_date, stored_date,
				 original_file_path, readable, writable, executable, size, md5hash)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			`, id, a.EntityID, a.AttrTypeID, a.Description, millis(a.OriginalFileDate), millis(a.StoredDate),
				a.OriginalFilePath, a.Readable, a.Writable, a.Executable, a.Size, a.MD5Hash)
			if err != nil || s.blobs != nil {
				return err
			}
			_, err = r.exec(ctx, `
				INSERT INTO FileAttributeContent (file_attribute_id, contents) VALUES (?, ?)
			`, id, data)
			return err
		})
	if err != nil {
		return 0, err
	}

	if s.blobs != nil {
		if err := s.blobs.Put(ctx, blob.ContentKey(id), data); err != nil {
			return 0, fmt.Errorf("%s: store content %d: %w", op, id, err)
		}
	}
	if err := o.finish(); err != nil {
		if s.blobs != nil {
			_ = s.blobs.Delete(ctx, blob.ContentKey(id))
		}
		return 0, err
	}
	return id, nil
}

// UpdateFileAttribute rewrites the descriptive fields of a. Size and hash
// follow the content and are not changed here.
func (s *Store) UpdateFileAttribute(ctx context.Context, sc Scope, a model.FileAttribute) error {
	return s.updateOne(ctx, sc, "update file attribute", "file attribute", a.ID, `
		UPDATE FileAttribute
		SET attr_type_id = ?, description = ?, original_file_date = ?, stored_date = ?,
		    original_file_path = ?, readable = ?, writable = ?, executable = ?
		WHERE id = ? AND entity_id = ?
	`, a.AttrTypeID, a.Description, millis(a.OriginalFileDate), millis(a.StoredDate),
		a.OriginalFilePath, a.Readable, a.Writable, a.Executable, a.ID, a.EntityID)
}

// DeleteFileAttribute removes the file row, its sorting row and its content.
// Blob content is removed once the transaction commits: right away for a
// Standalone call, at Tx.Commit otherwise.
func (s *Store) DeleteFileAttribute(ctx context.Context, sc Scope, id int64) error {
	return s.deleteAttributeScoped(ctx, sc, "delete file attribute", model.FileForm, id)
}

// GetFileAttribute loads a file description by id.
func (s *Store) GetFileAttribute(ctx context.Context, id int64) (model.FileAttribute, error) {
	return getFile(ctx, s.reader(), id)
}

// FileAttributeKeyExists reports whether the file attribute exists.
func (s *Store) FileAttributeKeyExists(ctx context.Context, id int64) (bool, error) {
	return s.AttributeKeyExists(ctx, model.FileForm, id)
}

// FileContent returns the stored content of a file attribute after
// checking it against the recorded size and MD5 hash.
func (s *Store) FileContent(ctx context.Context, id int64) ([]byte, error) {
	const op = "get file content"
	a, err := s.GetFileAttribute(ctx, id)
	if err != nil {
		return nil, err
	}

	var data []byte
	if s.blobs != nil {
		data, err = s.blobs.Get(ctx, blob.ContentKey(id))
		if errors.Is(err, blob.ErrNotFound) {
			return nil, notFound(op, "file content", id)
		}
		if err != nil {
			return nil, fmt.Errorf("%s %d: %w", op, id, err)
		}
	} else {
		err = s.reader().queryRow(ctx, `
			SELECT contents FROM FileAttributeContent WHERE file_attribute_id = ?
		`, id).Scan(&data)
		if err != nil {
			return nil, scanOne(err, op, "file content", id)
		}
	}

	if int64(len(data)) != a.Size || md5Hex(data) != a.MD5Hash {
		return nil, newError(CodeIntegrity, op, "content does not match recorded size and md5", id)
	}
	return data, nil
}

func getFile(ctx context.Context, r runner, id int64) (model.FileAttribute, error) {
	var (
		a                 model.FileAttribute
		original, storedT int64
	)
	err := r.queryRow(ctx, `
		SELECT id, entity_id, attr_type_id, description, original_file_date, stored_date,
		       original_file_path, readable, writable, executable, size, md5hash
		FROM FileAttribute WHERE id = ?
	`, id).Scan(&a.ID, &a.EntityID, &a.AttrTypeID, &a.Description, &original, &storedT,
		&a.OriginalFilePath, &a.Readable, &a.Writable, &a.Executable, &a.Size, &a.MD5Hash)
	if err != nil {
		return model.FileAttribute{}, scanOne(err, "get file attribute", "file attribute", id)
	}
	a.OriginalFileDate = fromMillis(original)
	a.StoredDate = fromMillis(storedT)
	return a, nil
}

func md5Hex(data []byte) string {
	sum := md5.Sum(data)
	return hex.EncodeToString(sum[:])
}

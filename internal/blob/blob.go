// Package blob stores file-attribute content outside the relational store.
//
// Backends: the local filesystem, Amazon S3 (or any S3-compatible service),
// and an in-memory map for tests. Keys are slash-separated relative paths.
package blob

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrNotFound is returned by Get when no object exists under the key.
var ErrNotFound = errors.New("blob not found")

// Store is the minimal object store consumed by the storage engine.
// Put overwrites; Delete of a missing key is not an error.
type Store interface {
	Put(ctx context.Context, key string, data []byte) error
	Get(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
}

// ContentKey is the key under which a file attribute's content is stored.
func ContentKey(fileAttributeID int64) string {
	return fmt.Sprintf("file-attributes/%d", fileAttributeID)
}

// checkKey rejects keys that are empty, absolute, or escape the root.
func checkKey(key string) error {
	if strings.TrimSpace(key) == "" {
		return fmt.Errorf("empty key")
	}
	if strings.HasPrefix(key, "/") {
		return fmt.Errorf("invalid absolute key %q", key)
	}
	for _, part := range strings.Split(key, "/") {
		if part == ".." {
			return fmt.Errorf("invalid key %q contains '..'", key)
		}
	}
	return nil
}

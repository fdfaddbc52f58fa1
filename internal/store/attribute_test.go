package store

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/onemodel/internal/blob"
	"github.com/roach88/onemodel/internal/model"
)

var (
	validOn  = time.Date(2023, time.June, 1, 0, 0, 0, 0, time.UTC)
	observed = time.Date(2023, time.June, 2, 12, 30, 0, 0, time.UTC)
)

func sortingRows(t *testing.T, s *Store, key model.SortingKey) int64 {
	t.Helper()
	return countRows(t, s, `
		SELECT COUNT(*) FROM AttributeSorting
		WHERE entity_id = ? AND attribute_form_id = ? AND attribute_id = ?
	`, key.EntityID, key.FormID, key.AttributeID)
}

// Each case creates one attribute of its form on owner, updates it, and
// returns a fresh read of it.
func TestAttributeForms_CreateUpdateDelete(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)
	owner := mustEntity(t, s, "owner")
	attrType := mustEntity(t, s, "weight")
	unit := mustEntity(t, s, "kg")
	target := mustEntity(t, s, "target")
	group := mustGroup(t, s, "shelf", true)
	remote, err := s.CreateOmInstance(ctx, Standalone(), "om.example.org:9000", nil)
	require.NoError(t, err)
	has := s.Base().HasRelTypeID

	tests := []struct {
		name   string
		form   model.FormID
		create func() (int64, error)
		update func(id int64) error
		check  func(t *testing.T, attr model.Attribute)
		delete func(id int64) error
	}{
		{
			name: "quantity",
			form: model.QuantityForm,
			create: func() (int64, error) {
				return s.CreateQuantityAttribute(ctx, Standalone(), model.QuantityAttribute{
					EntityID: owner, AttrTypeID: attrType, UnitID: unit, Number: 1.5, ObservationDate: observed,
				}, nil)
			},
			update: func(id int64) error {
				return s.UpdateQuantityAttribute(ctx, Standalone(), model.QuantityAttribute{
					ID: id, EntityID: owner, AttrTypeID: attrType, UnitID: unit, Number: 2.25,
					ValidOnDate: &validOn, ObservationDate: observed,
				})
			},
			check: func(t *testing.T, attr model.Attribute) {
				q := attr.(model.QuantityAttribute)
				assert.Equal(t, 2.25, q.Number)
				assert.Equal(t, unit, q.UnitID)
				require.NotNil(t, q.ValidOnDate)
				assert.True(t, validOn.Equal(*q.ValidOnDate))
			},
			delete: func(id int64) error { return s.DeleteQuantityAttribute(ctx, Standalone(), id) },
		},
		{
			name: "date",
			form: model.DateForm,
			create: func() (int64, error) {
				return s.CreateDateAttribute(ctx, Standalone(), model.DateAttribute{
					EntityID: owner, AttrTypeID: attrType, Date: validOn,
				}, nil)
			},
			update: func(id int64) error {
				return s.UpdateDateAttribute(ctx, Standalone(), model.DateAttribute{
					ID: id, EntityID: owner, AttrTypeID: attrType, Date: observed, ObservationDate: observed,
				})
			},
			check: func(t *testing.T, attr model.Attribute) {
				d := attr.(model.DateAttribute)
				assert.True(t, observed.Equal(d.Date))
				assert.Nil(t, d.ValidOnDate)
			},
			delete: func(id int64) error { return s.DeleteDateAttribute(ctx, Standalone(), id) },
		},
		{
			name: "boolean",
			form: model.BooleanForm,
			create: func() (int64, error) {
				return s.CreateBooleanAttribute(ctx, Standalone(), model.BooleanAttribute{
					EntityID: owner, AttrTypeID: attrType, Value: false,
				}, nil)
			},
			update: func(id int64) error {
				return s.UpdateBooleanAttribute(ctx, Standalone(), model.BooleanAttribute{
					ID: id, EntityID: owner, AttrTypeID: attrType, Value: true, ObservationDate: observed,
				})
			},
			check: func(t *testing.T, attr model.Attribute) {
				assert.True(t, attr.(model.BooleanAttribute).Value)
			},
			delete: func(id int64) error { return s.DeleteBooleanAttribute(ctx, Standalone(), id) },
		},
		{
			name: "text",
			form: model.TextForm,
			create: func() (int64, error) {
				return s.CreateTextAttribute(ctx, Standalone(), model.TextAttribute{
					EntityID: owner, AttrTypeID: attrType, Text: "before",
				}, nil)
			},
			update: func(id int64) error {
				return s.UpdateTextAttribute(ctx, Standalone(), model.TextAttribute{
					ID: id, EntityID: owner, AttrTypeID: attrType, Text: "after", ObservationDate: observed,
				})
			},
			check: func(t *testing.T, attr model.Attribute) {
				txt := attr.(model.TextAttribute)
				assert.Equal(t, "after", txt.Text)
				assert.True(t, observed.Equal(txt.ObservationDate))
			},
			delete: func(id int64) error { return s.DeleteTextAttribute(ctx, Standalone(), id) },
		},
		{
			name: "file",
			form: model.FileForm,
			create: func() (int64, error) {
				return s.CreateFileAttribute(ctx, Standalone(), model.FileAttribute{
					EntityID: owner, AttrTypeID: attrType, Description: "notes",
					OriginalFileDate: validOn, OriginalFilePath: "/tmp/notes.txt", Readable: true,
				}, bytes.NewReader([]byte("file body")), nil)
			},
			update: func(id int64) error {
				a, err := s.GetFileAttribute(ctx, id)
				if err != nil {
					return err
				}
				a.Description = "renamed notes"
				a.Writable = true
				return s.UpdateFileAttribute(ctx, Standalone(), a)
			},
			check: func(t *testing.T, attr model.Attribute) {
				f := attr.(model.FileAttribute)
				assert.Equal(t, "renamed notes", f.Description)
				assert.True(t, f.Readable)
				assert.True(t, f.Writable)
				assert.Equal(t, int64(len("file body")), f.Size)
			},
			delete: func(id int64) error { return s.DeleteFileAttribute(ctx, Standalone(), id) },
		},
		{
			name: "relation to local entity",
			form: model.RelationToLocalEntityForm,
			create: func() (int64, error) {
				return s.CreateRelationToLocalEntity(ctx, Standalone(), model.RelationToLocalEntity{
					RelTypeID: has, EntityID: owner, EntityID2: target,
				}, nil)
			},
			update: func(id int64) error {
				return s.UpdateRelationToLocalEntity(ctx, Standalone(), model.RelationToLocalEntity{
					ID: id, RelTypeID: has, EntityID: owner, EntityID2: target,
					ValidOnDate: &validOn, ObservationDate: observed,
				})
			},
			check: func(t *testing.T, attr model.Attribute) {
				rel := attr.(model.RelationToLocalEntity)
				assert.Equal(t, target, rel.EntityID2)
				require.NotNil(t, rel.ValidOnDate)
			},
			delete: func(id int64) error { return s.DeleteRelationToLocalEntity(ctx, Standalone(), id) },
		},
		{
			name: "relation to group",
			form: model.RelationToGroupForm,
			create: func() (int64, error) {
				return s.CreateRelationToGroup(ctx, Standalone(), model.RelationToGroup{
					EntityID: owner, RelTypeID: has, GroupID: group,
				}, nil)
			},
			update: func(id int64) error {
				return s.UpdateRelationToGroup(ctx, Standalone(), model.RelationToGroup{
					ID: id, EntityID: owner, RelTypeID: has, GroupID: group, ObservationDate: observed,
				})
			},
			check: func(t *testing.T, attr model.Attribute) {
				rel := attr.(model.RelationToGroup)
				assert.Equal(t, group, rel.GroupID)
				assert.True(t, observed.Equal(rel.ObservationDate))
			},
			delete: func(id int64) error { return s.DeleteRelationToGroup(ctx, Standalone(), id) },
		},
		{
			name: "relation to remote entity",
			form: model.RelationToRemoteEntityForm,
			create: func() (int64, error) {
				return s.CreateRelationToRemoteEntity(ctx, Standalone(), model.RelationToRemoteEntity{
					RelTypeID: has, EntityID: owner, RemoteInstanceID: remote, EntityID2: 12345,
				}, nil)
			},
			update: func(id int64) error {
				return s.UpdateRelationToRemoteEntity(ctx, Standalone(), model.RelationToRemoteEntity{
					ID: id, RelTypeID: has, EntityID: owner, RemoteInstanceID: remote, EntityID2: 12345,
					ObservationDate: observed,
				})
			},
			check: func(t *testing.T, attr model.Attribute) {
				rel := attr.(model.RelationToRemoteEntity)
				assert.Equal(t, remote, rel.RemoteInstanceID)
				assert.Equal(t, int64(12345), rel.EntityID2)
			},
			delete: func(id int64) error { return s.DeleteRelationToRemoteEntity(ctx, Standalone(), id) },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, err := tt.create()
			require.NoError(t, err)
			assert.NotZero(t, id)
			key := model.SortingKey{EntityID: owner, FormID: tt.form, AttributeID: id}
			assert.Equal(t, int64(1), sortingRows(t, s, key))

			exists, err := s.AttributeKeyExists(ctx, tt.form, id)
			require.NoError(t, err)
			assert.True(t, exists)

			require.NoError(t, tt.update(id))
			attr, err := s.GetAttribute(ctx, tt.form, id)
			require.NoError(t, err)
			assert.Equal(t, tt.form, attr.Form())
			assert.Equal(t, key, attr.Key())
			tt.check(t, attr)

			require.NoError(t, tt.delete(id))
			assert.Equal(t, int64(0), sortingRows(t, s, key), "sorting row must go with the attribute")
			exists, err = s.AttributeKeyExists(ctx, tt.form, id)
			require.NoError(t, err)
			assert.False(t, exists)

			_, err = s.GetAttribute(ctx, tt.form, id)
			assert.True(t, IsNotFound(err), "got %v", err)
			assert.True(t, IsNotFound(tt.delete(id)))
		})
	}
}

func TestAttribute_UnknownOwner(t *testing.T) {
	s := createTestStore(t)
	_, err := s.CreateTextAttribute(context.Background(), Standalone(), model.TextAttribute{EntityID: 987654, AttrTypeID: 1, Text: "x"}, nil)
	assert.True(t, IsNotFound(err), "got %v", err)
}

func TestAttribute_UnknownForm(t *testing.T) {
	s := createTestStore(t)
	_, err := s.AttributeKeyExists(context.Background(), model.FormID(99), 1)
	assert.True(t, IsInvalidInput(err), "got %v", err)
	_, err = s.GetAttribute(context.Background(), model.FormID(0), 1)
	assert.True(t, IsInvalidInput(err), "got %v", err)
}

func TestDeleteEntity_CascadesAttributesAndSorting(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)
	owner := mustEntity(t, s, "owner")
	child := mustEntity(t, s, "child")
	noteType := mustEntity(t, s, "note")
	_, err := s.CreateTextAttribute(ctx, Standalone(), model.TextAttribute{EntityID: owner, AttrTypeID: noteType, Text: "n"}, nil)
	require.NoError(t, err)
	mustRelate(t, s, owner, child)
	g := mustGroup(t, s, "g", true)
	require.NoError(t, s.AddEntityToGroup(ctx, Standalone(), g, owner, nil))

	require.NoError(t, s.DeleteEntity(ctx, Standalone(), owner))

	assert.Equal(t, int64(0), countRows(t, s, "SELECT COUNT(*) FROM AttributeSorting WHERE entity_id = ?", owner))
	assert.Equal(t, int64(0), countRows(t, s, "SELECT COUNT(*) FROM TextAttribute WHERE entity_id = ?", owner))
	assert.Equal(t, int64(0), countRows(t, s, "SELECT COUNT(*) FROM RelationToEntity WHERE entity_id = ?", owner))
	in, err := s.IsEntityInGroup(ctx, g, owner)
	require.NoError(t, err)
	assert.False(t, in)

	ok, err := s.EntityKeyExists(ctx, child, false)
	require.NoError(t, err)
	assert.True(t, ok, "relation targets survive")
}

func TestDeleteEntity_UsedAsAttributeType(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)
	owner := mustEntity(t, s, "owner")
	attrType := mustEntity(t, s, "colour")
	_, err := s.CreateTextAttribute(ctx, Standalone(), model.TextAttribute{EntityID: owner, AttrTypeID: attrType, Text: "red"}, nil)
	require.NoError(t, err)

	err = s.DeleteEntity(ctx, Standalone(), attrType)
	assert.True(t, IsIntegrity(err), "got %v", err)
}

func TestSortedAttributes(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)
	owner := mustEntity(t, s, "owner")
	public := mustEntity(t, s, "public child")
	private := mustEntity(t, s, "private child")
	require.NoError(t, s.UpdateEntityPublic(ctx, Standalone(), public, boolPtrOf(true)))
	require.NoError(t, s.UpdateEntityPublic(ctx, Standalone(), private, boolPtrOf(false)))

	text := mustText(t, s, owner, "note")
	relPublic := mustRelate(t, s, owner, public)
	relPrivate := mustRelate(t, s, owner, private)

	all, total, err := s.SortedAttributes(ctx, owner, 0, 0, false)
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	require.Len(t, all, 3)
	assert.Equal(t, text, all[0].Attribute.Key().AttributeID)
	for i := 1; i < len(all); i++ {
		assert.Greater(t, all[i].SortingIndex, all[i-1].SortingIndex)
	}

	onlyPublic, _, err := s.SortedAttributes(ctx, owner, 0, 0, true)
	require.NoError(t, err)
	var relIDs []int64
	for _, a := range onlyPublic {
		if rel, ok := a.Attribute.(model.RelationToLocalEntity); ok {
			relIDs = append(relIDs, rel.ID)
		}
	}
	assert.Equal(t, []int64{relPublic}, relIDs)
	assert.NotContains(t, relIDs, relPrivate)

	page, total, err := s.SortedAttributes(ctx, owner, 1, 1, false)
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	require.Len(t, page, 1)
	assert.Equal(t, all[1].Attribute.Key(), page[0].Attribute.Key())
}

func TestFileAttribute_ContentInDatabase(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)
	owner := mustEntity(t, s, "owner")
	body := []byte("the quick brown fox")

	id, err := s.CreateFileAttribute(ctx, Standalone(), model.FileAttribute{
		EntityID: owner, AttrTypeID: owner, Description: "fox", MD5Hash: md5Hex(body),
	}, bytes.NewReader(body), nil)
	require.NoError(t, err)

	got, err := s.FileContent(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, body, got)

	_, err = s.db.Exec("UPDATE FileAttributeContent SET contents = ? WHERE file_attribute_id = ?", []byte("tampered"), id)
	require.NoError(t, err)
	_, err = s.FileContent(ctx, id)
	assert.True(t, IsIntegrity(err), "got %v", err)
}

func TestFileAttribute_MismatchedChecksum(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)
	owner := mustEntity(t, s, "owner")

	_, err := s.CreateFileAttribute(ctx, Standalone(), model.FileAttribute{
		EntityID: owner, AttrTypeID: owner, MD5Hash: "00000000000000000000000000000000",
	}, bytes.NewReader([]byte("x")), nil)
	assert.True(t, IsIntegrity(err), "got %v", err)

	_, err = s.CreateFileAttribute(ctx, Standalone(), model.FileAttribute{
		EntityID: owner, AttrTypeID: owner, Size: 99,
	}, bytes.NewReader([]byte("x")), nil)
	assert.True(t, IsIntegrity(err), "got %v", err)
	assert.Equal(t, int64(0), countRows(t, s, "SELECT COUNT(*) FROM FileAttribute"))
}

func TestFileAttribute_BlobBackend(t *testing.T) {
	ctx := context.Background()
	blobs := blob.NewMemory()
	opts := testOptions()
	opts.Blobs = blobs
	s := createTestStoreWith(t, opts)
	owner := mustEntity(t, s, "owner")
	body := []byte("stored off-database")

	id, err := s.CreateFileAttribute(ctx, Standalone(), model.FileAttribute{EntityID: owner, AttrTypeID: owner},
		bytes.NewReader(body), nil)
	require.NoError(t, err)
	assert.Equal(t, 1, blobs.Len())
	assert.Equal(t, int64(0), countRows(t, s, "SELECT COUNT(*) FROM FileAttributeContent"))

	got, err := s.FileContent(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, body, got)

	require.NoError(t, s.DeleteFileAttribute(ctx, Standalone(), id))
	assert.Equal(t, 0, blobs.Len())
}

func TestFileAttribute_BlobKeptWhenCallerRollsBack(t *testing.T) {
	ctx := context.Background()
	blobs := blob.NewMemory()
	opts := testOptions()
	opts.Blobs = blobs
	s := createTestStoreWith(t, opts)
	owner := mustEntity(t, s, "owner")

	id, err := s.CreateFileAttribute(ctx, Standalone(), model.FileAttribute{EntityID: owner, AttrTypeID: owner},
		bytes.NewReader([]byte("keep me")), nil)
	require.NoError(t, err)

	tx, err := s.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, s.DeleteFileAttribute(ctx, Within(tx), id))
	require.NoError(t, tx.Rollback())

	got, err := s.FileContent(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, []byte("keep me"), got)
}

func mustFile(t *testing.T, s *Store, entityID, attrTypeID int64, body string) int64 {
	t.Helper()
	id, err := s.CreateFileAttribute(context.Background(), Standalone(),
		model.FileAttribute{EntityID: entityID, AttrTypeID: attrTypeID, Description: body},
		bytes.NewReader([]byte(body)), nil)
	require.NoError(t, err, "CreateFileAttribute(%q)", body)
	return id
}

func blobStore(t *testing.T) (*Store, *blob.Memory) {
	t.Helper()
	blobs := blob.NewMemory()
	opts := testOptions()
	opts.Blobs = blobs
	return createTestStoreWith(t, opts), blobs
}

func TestFileAttribute_BlobRemovedAtCallerCommit(t *testing.T) {
	ctx := context.Background()
	s, blobs := blobStore(t)
	kind := mustEntity(t, s, "document")
	owner := mustEntity(t, s, "owner")
	id := mustFile(t, s, owner, kind, "scratch")

	tx, err := s.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, s.DeleteFileAttribute(ctx, Within(tx), id))
	assert.Equal(t, 1, blobs.Len(), "content removed before commit")
	require.NoError(t, tx.Commit())
	assert.Equal(t, 0, blobs.Len())
}

func TestFileAttribute_CascadedDeletesDropContent(t *testing.T) {
	ctx := context.Background()

	t.Run("entity", func(t *testing.T) {
		s, blobs := blobStore(t)
		kind := mustEntity(t, s, "document")
		owner := mustEntity(t, s, "owner")
		mustFile(t, s, owner, kind, "one")
		mustFile(t, s, owner, kind, "two")
		require.Equal(t, 2, blobs.Len())

		require.NoError(t, s.DeleteEntity(ctx, Standalone(), owner))
		assert.Equal(t, 0, blobs.Len())
	})

	t.Run("group entries", func(t *testing.T) {
		s, blobs := blobStore(t)
		kind := mustEntity(t, s, "document")
		group := mustGroup(t, s, "inbox", true)
		member := mustEntity(t, s, "member")
		require.NoError(t, s.AddEntityToGroup(ctx, Standalone(), group, member, nil))
		mustFile(t, s, member, kind, "attached")

		require.NoError(t, s.DeleteGroupRelationsToItAndItsEntries(ctx, Standalone(), group))
		assert.Equal(t, 0, blobs.Len())
	})

	t.Run("class template", func(t *testing.T) {
		s, blobs := blobStore(t)
		kind := mustEntity(t, s, "document")
		classID, templateID, err := s.CreateClassAndTemplateEntity(ctx, Standalone(), "report")
		require.NoError(t, err)
		mustFile(t, s, templateID, kind, "template file")

		require.NoError(t, s.DeleteClassAndTemplateEntity(ctx, Standalone(), classID))
		assert.Equal(t, 0, blobs.Len())
	})

	t.Run("caller rollback keeps content", func(t *testing.T) {
		s, blobs := blobStore(t)
		kind := mustEntity(t, s, "document")
		owner := mustEntity(t, s, "owner")
		id := mustFile(t, s, owner, kind, "keep")

		tx, err := s.Begin(ctx)
		require.NoError(t, err)
		require.NoError(t, s.DeleteEntity(ctx, Within(tx), owner))
		require.NoError(t, tx.Rollback())

		assert.Equal(t, 1, blobs.Len())
		got, err := s.FileContent(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, []byte("keep"), got)
	})
}

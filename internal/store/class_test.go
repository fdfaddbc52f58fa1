package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateClassAndTemplateEntity(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)

	classID, templateID, err := s.CreateClassAndTemplateEntity(ctx, Standalone(), "person")
	require.NoError(t, err)

	c, err := s.GetClass(ctx, classID)
	require.NoError(t, err)
	assert.Equal(t, "person", c.Name)
	assert.Equal(t, templateID, c.TemplateEntityID)
	assert.Nil(t, c.CreateDefaultAttributes)

	tmpl, err := s.GetEntity(ctx, templateID)
	require.NoError(t, err)
	assert.Equal(t, "person"+TemplateSuffix, tmpl.Name)
	require.NotNil(t, tmpl.ClassID)
	assert.Equal(t, classID, *tmpl.ClassID)

	in, err := s.IsEntityInGroup(ctx, s.Base().ClassGroupID, templateID)
	require.NoError(t, err)
	assert.True(t, in, "template is filed in the class-defining group")
}

func TestCreateClass_InvalidName(t *testing.T) {
	s := createTestStore(t)
	before, err := s.ClassCount(context.Background())
	require.NoError(t, err)

	_, _, err = s.CreateClassAndTemplateEntity(context.Background(), Standalone(), "  ")
	assert.True(t, IsInvalidInput(err))

	after, err := s.ClassCount(context.Background())
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestUpdateClassAndTemplateName(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)
	classID, templateID, err := s.CreateClassAndTemplateEntity(ctx, Standalone(), "persn")
	require.NoError(t, err)

	require.NoError(t, s.UpdateClassAndTemplateName(ctx, Standalone(), classID, "person"))

	c, err := s.GetClass(ctx, classID)
	require.NoError(t, err)
	assert.Equal(t, "person", c.Name)
	tmpl, err := s.GetEntity(ctx, templateID)
	require.NoError(t, err)
	assert.Equal(t, "person-template", tmpl.Name)

	assert.True(t, IsNotFound(s.UpdateClassAndTemplateName(ctx, Standalone(), 31337, "x")))
}

func TestUpdateClassCreateDefaultAttributes(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)
	classID := mustClass(t, s, "book")

	require.NoError(t, s.UpdateClassCreateDefaultAttributes(ctx, Standalone(), classID, boolPtrOf(true)))
	c, err := s.GetClass(ctx, classID)
	require.NoError(t, err)
	require.NotNil(t, c.CreateDefaultAttributes)
	assert.True(t, *c.CreateDefaultAttributes)

	require.NoError(t, s.UpdateClassCreateDefaultAttributes(ctx, Standalone(), classID, nil))
	c, err = s.GetClass(ctx, classID)
	require.NoError(t, err)
	assert.Nil(t, c.CreateDefaultAttributes)
}

func TestListClasses(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)
	zebra := mustClass(t, s, "zebra")
	apple := mustClass(t, s, "apple")
	mango := mustClass(t, s, "mango")

	all, err := s.ListClasses(ctx, 0, 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []int64{apple, mango, zebra}, []int64{all[0].ID, all[1].ID, all[2].ID})

	page, err := s.ListClasses(ctx, 1, 1)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, mango, page[0].ID)

	n, err := s.ClassCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
}

func TestIsDuplicateClassName(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)
	id := mustClass(t, s, "book")

	dup, err := s.IsDuplicateClassName(ctx, "book", nil)
	require.NoError(t, err)
	assert.True(t, dup)

	dup, err = s.IsDuplicateClassName(ctx, "book", &id)
	require.NoError(t, err)
	assert.False(t, dup)

	dup, err = s.IsDuplicateClassName(ctx, "film", nil)
	require.NoError(t, err)
	assert.False(t, dup)
}

func TestDeleteClassAndTemplateEntity(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)
	classID, templateID, err := s.CreateClassAndTemplateEntity(ctx, Standalone(), "book")
	require.NoError(t, err)
	member := mustClassedEntity(t, s, "Dune", classID)

	require.NoError(t, s.DeleteClassAndTemplateEntity(ctx, Standalone(), classID))

	ok, err := s.ClassKeyExists(ctx, classID)
	require.NoError(t, err)
	assert.False(t, ok)
	ok, err = s.EntityKeyExists(ctx, templateID, true)
	require.NoError(t, err)
	assert.False(t, ok)

	e, err := s.GetEntity(ctx, member)
	require.NoError(t, err, "members survive their class")
	assert.Nil(t, e.ClassID)

	in, err := s.IsEntityInGroup(ctx, s.Base().ClassGroupID, templateID)
	require.NoError(t, err)
	assert.False(t, in)

	assert.True(t, IsNotFound(s.DeleteClassAndTemplateEntity(ctx, Standalone(), classID)))
}

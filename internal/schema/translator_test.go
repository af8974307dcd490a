package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ripplekit/storebridge/internal/core"
)

func blogSchema() *core.SchemaDescription {
	return &core.SchemaDescription{
		Version:   "42",
		Namespace: "blog",
		Syncable:  true,
		Models: map[string]core.ModelDefinition{
			"Blog": {
				Name: "Blog",
				Fields: map[string]core.FieldDescriptor{
					"name": {Type: core.FieldTypeString, Required: true},
					"posts": {
						Type:        core.FieldTypeID,
						Association: &core.Association{Kind: core.HasMany, TargetModel: "Post"},
					},
				},
			},
			"Post": {
				Name: "Post",
				Fields: map[string]core.FieldDescriptor{
					"title":  {Type: core.FieldTypeString, Required: true},
					"rating": {Type: core.FieldTypeFloat},
					"status": {Type: core.FieldTypeEnum},
					"blog": {
						Type:        core.FieldTypeID,
						Association: &core.Association{Kind: core.BelongsTo, TargetModel: "Blog", ForeignKeyField: "blogID"},
					},
				},
			},
		},
	}
}

func TestBuildNativeSchema(t *testing.T) {
	tr := NewTranslator()
	native, err := tr.BuildNativeSchema(blogSchema())
	require.NoError(t, err)

	assert.Equal(t, "42", native.Version)
	assert.True(t, native.Syncable)

	// One table per model plus the metadata table.
	require.Len(t, native.Tables, 3)
	require.Contains(t, native.Tables, "blog")
	require.Contains(t, native.Tables, "post")
	require.Contains(t, native.Tables, core.MetadataTable)

	post := native.Tables["post"]
	names := make([]string, 0, len(post.Columns))
	for _, c := range post.Columns {
		names = append(names, c.Name)
	}
	// id first, declared columns sorted by name, system columns last.
	assert.Equal(t, []string{
		"id", "blog_id", "rating", "status", "title",
		"_version", "_last_changed_at", "_deleted", "created_at", "updated_at",
	}, names)

	// Has-many fields emit no column on the owning table.
	blog := native.Tables["blog"]
	assert.Nil(t, blog.Column("posts"))
	require.NotNil(t, blog.Column("name"))
	assert.False(t, blog.Column("name").Optional)

	// Belongs-to foreign keys are string-typed and indexed.
	fk := post.Column("blog_id")
	require.NotNil(t, fk)
	assert.Equal(t, core.ColumnTypeString, fk.Type)
	assert.True(t, fk.Indexed)

	// Allow-listed columns are indexed, the rest are not.
	assert.True(t, post.Column("status").Indexed)
	assert.True(t, post.Column("created_at").Indexed)
	assert.True(t, post.Column(core.ColumnDeleted).Indexed)
	assert.False(t, post.Column("title").Indexed)
	assert.False(t, post.Column("rating").Indexed)
}

func TestBuildNativeSchemaRejectsExplicitID(t *testing.T) {
	desc := &core.SchemaDescription{
		Models: map[string]core.ModelDefinition{
			"Bad": {
				Name:   "Bad",
				Fields: map[string]core.FieldDescriptor{"id": {Type: core.FieldTypeID}},
			},
		},
	}
	_, err := NewTranslator().BuildNativeSchema(desc)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "must not be declared")
}

func TestMapFieldType(t *testing.T) {
	tr := NewTranslator()
	assert.Equal(t, core.ColumnTypeString, tr.MapFieldType(core.FieldTypeString))
	assert.Equal(t, core.ColumnTypeString, tr.MapFieldType(core.FieldTypeEnum))
	assert.Equal(t, core.ColumnTypeString, tr.MapFieldType(core.FieldTypeJSON))
	assert.Equal(t, core.ColumnTypeNumber, tr.MapFieldType(core.FieldTypeInt))
	assert.Equal(t, core.ColumnTypeNumber, tr.MapFieldType(core.FieldTypeDateTime))
	assert.Equal(t, core.ColumnTypeNumber, tr.MapFieldType(core.FieldTypeTimestamp))
	assert.Equal(t, core.ColumnTypeBoolean, tr.MapFieldType(core.FieldTypeBoolean))
	assert.Equal(t, core.ColumnTypeString, tr.MapFieldType(core.FieldType("Mystery")))
}

func TestBuildModelDescriptors(t *testing.T) {
	tr := NewTranslator()
	desc := blogSchema()
	native, err := tr.BuildNativeSchema(desc)
	require.NoError(t, err)

	descriptors, err := tr.BuildModelDescriptors(desc, native)
	require.NoError(t, err)
	require.Len(t, descriptors, 2)

	post := descriptors["post"]
	require.NotNil(t, post)
	assert.Equal(t, "Post", post.Name)
	assert.Equal(t, "post", post.Table)

	// Stored mapping is authoritative in both directions.
	assert.Equal(t, "blog_id", post.ColumnFor("blog", ToSnake))
	assert.Equal(t, "title", post.ColumnFor("title", ToSnake))
	assert.Equal(t, core.ColumnLastChanged, post.ColumnFor("_lastChangedAt", ToSnake))
	assert.Equal(t, "blog", post.FieldFor("blog_id", ToCamel))
	assert.Equal(t, "updatedAt", post.FieldFor(core.ColumnUpdatedAt, ToCamel))

	// Unknown names fall back to derived conversion.
	assert.Equal(t, "not_declared", post.ColumnFor("notDeclared", ToSnake))

	// System columns are read-only.
	assert.True(t, post.ReadOnly[core.ColumnVersion])
	assert.True(t, post.ReadOnly[core.ColumnCreatedAt])
	assert.False(t, post.ReadOnly["title"])

	require.Len(t, post.BelongsTo, 1)
	assert.Equal(t, "blog", post.BelongsTo[0].Field)
	assert.Equal(t, "blog_id", post.BelongsTo[0].ForeignKeyColumn)
	assert.Equal(t, "blog", post.BelongsTo[0].TargetTable)

	blog := descriptors["blog"]
	require.Len(t, blog.HasMany, 1)
	assert.Equal(t, "posts", blog.HasMany[0].Field)
	assert.Equal(t, "post", blog.HasMany[0].TargetTable)
	assert.Equal(t, "blog_id", blog.HasMany[0].ForeignKeyColumn)
}

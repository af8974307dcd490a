package core

// FieldType is the primitive type of a model field as declared by the sync
// framework's schema description.
type FieldType string

const (
	FieldTypeID        FieldType = "ID"
	FieldTypeString    FieldType = "String"
	FieldTypeInt       FieldType = "Int"
	FieldTypeFloat     FieldType = "Float"
	FieldTypeBoolean   FieldType = "Boolean"
	FieldTypeDateTime  FieldType = "DateTime"
	FieldTypeDate      FieldType = "Date"
	FieldTypeTime      FieldType = "Time"
	FieldTypeTimestamp FieldType = "Timestamp"
	FieldTypeEnum      FieldType = "Enum"
	FieldTypeJSON      FieldType = "JSON"
)

// ConnectionKind is the association cardinality between two models.
type ConnectionKind string

const (
	// HasMany marks the owning side of a one-to-many association.
	HasMany ConnectionKind = "HAS_MANY"

	// BelongsTo marks the child side of a many-to-one association.
	BelongsTo ConnectionKind = "BELONGS_TO"
)

// Association describes a connection between the declaring field's model
// and a target model.
type Association struct {
	// Kind is the connection cardinality.
	Kind ConnectionKind

	// TargetModel is the name of the model on the far side.
	TargetModel string

	// ForeignKeyField is the mixed-case field on the owning side holding
	// the foreign key. Optional; derived from the field name when empty.
	ForeignKeyField string
}

// FieldDescriptor describes a single model field.
type FieldDescriptor struct {
	// Type is the primitive field type.
	Type FieldType

	// Required indicates the field may not be null.
	Required bool

	// Association is set when the field participates in a connection.
	Association *Association
}

// ModelDefinition describes one named model of the schema description.
// Every model implicitly carries a string "id" field; it is never declared.
type ModelDefinition struct {
	// Name is the model name (mixed case, e.g. "BlogPost").
	Name string

	// Fields maps field name to descriptor, excluding "id".
	Fields map[string]FieldDescriptor
}

// SchemaDescription is the versioned schema the sync framework hands to the
// adapter at setup. It is read-only to the adapter.
type SchemaDescription struct {
	// Version identifies the schema revision.
	Version string

	// Namespace is the framework namespace owning these models.
	Namespace string

	// Syncable indicates records must retain version and tombstone
	// metadata for remote synchronization. Deletes are soft when set.
	Syncable bool

	// Models maps model name to definition.
	Models map[string]ModelDefinition
}

// ColumnType is the native primitive type of a table column.
type ColumnType string

const (
	ColumnTypeString  ColumnType = "string"
	ColumnTypeNumber  ColumnType = "number"
	ColumnTypeBoolean ColumnType = "boolean"
)

// System column names appended to every translated table.
const (
	ColumnID          = "id"
	ColumnVersion     = "_version"
	ColumnLastChanged = "_last_changed_at"
	ColumnDeleted     = "_deleted"
	ColumnCreatedAt   = "created_at"
	ColumnUpdatedAt   = "updated_at"
)

// MetadataTable is the fixed table tracking per-model sync state. It exists
// outside the per-model tables and survives Clear of user collections.
const MetadataTable = "_model_metadata"

// ColumnSchema describes one column of a native table.
type ColumnSchema struct {
	// Name is the snake-cased column name.
	Name string

	// Type is the native primitive type.
	Type ColumnType

	// Optional indicates the column accepts null.
	Optional bool

	// Indexed indicates the column carries a secondary index.
	Indexed bool
}

// TableSchema describes one native table. Column order is deterministic:
// id first, declared columns in sorted field order, system columns last.
type TableSchema struct {
	// Name is the snake-cased table name.
	Name string

	// Columns are the table's columns in definition order.
	Columns []ColumnSchema
}

// Column returns the named column schema, or nil if absent.
func (t *TableSchema) Column(name string) *ColumnSchema {
	for i := range t.Columns {
		if t.Columns[i].Name == name {
			return &t.Columns[i]
		}
	}
	return nil
}

// NativeSchema is the full translated schema handed to a backend at setup.
// Immutable once built.
type NativeSchema struct {
	// Version mirrors the source schema description version.
	Version string

	// Syncable mirrors the source schema's sync-tracked flag.
	Syncable bool

	// Tables maps table name to table schema, metadata table included.
	Tables map[string]*TableSchema
}

// BelongsToAccessor resolves a child record's parent through a foreign-key
// column on the child's own table.
type BelongsToAccessor struct {
	// Field is the mixed-case association field name.
	Field string

	// ForeignKeyColumn is the snake-cased column on this model's table
	// holding the parent id.
	ForeignKeyColumn string

	// TargetModel and TargetTable identify the parent side.
	TargetModel string
	TargetTable string
}

// HasManyAccessor resolves a parent record's children by reverse lookup on
// the child table's foreign-key column.
type HasManyAccessor struct {
	// Field is the mixed-case association field name.
	Field string

	// TargetModel and TargetTable identify the child side.
	TargetModel string
	TargetTable string

	// ForeignKeyColumn is the column on the child table referencing this
	// model's id.
	ForeignKeyColumn string
}

// ModelDescriptor is the adapter's rendition of a generated model class:
// a static, per-model descriptor bound to its table, consulted by every
// translation path instead of synthesizing types at runtime. Built once at
// setup and never mutated afterward.
type ModelDescriptor struct {
	// Name is the model name.
	Name string

	// Table is the bound native table name.
	Table string

	// Schema is the bound table schema, system columns included.
	Schema *TableSchema

	// FieldToColumn maps every mixed-case field name (system fields
	// included) to its column name. This stored mapping is authoritative;
	// derived string conversion is only a fallback for unknown names.
	FieldToColumn map[string]string

	// ColumnToField is the inverse of FieldToColumn.
	ColumnToField map[string]string

	// ReadOnly marks columns the framework may not write directly.
	ReadOnly map[string]bool

	// BelongsTo and HasMany are the model's association accessors.
	BelongsTo []BelongsToAccessor
	HasMany   []HasManyAccessor
}

// ColumnFor returns the column name for a field, falling back to the given
// derive function for names outside the stored mapping.
func (m *ModelDescriptor) ColumnFor(field string, derive func(string) string) string {
	if col, ok := m.FieldToColumn[field]; ok {
		return col
	}
	return derive(field)
}

// FieldFor returns the field name for a column, falling back to the given
// derive function for names outside the stored mapping.
func (m *ModelDescriptor) FieldFor(column string, derive func(string) string) string {
	if f, ok := m.ColumnToField[column]; ok {
		return f
	}
	return derive(column)
}

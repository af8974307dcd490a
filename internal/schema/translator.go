// Package schema translates the sync framework's generic schema description
// into the native table schema and the per-model descriptors the adapter
// consults on every translation path.
package schema

import (
	"fmt"
	"sort"

	"github.com/ripplekit/storebridge/internal/core"
)

// indexedColumns is the fixed allow-list of commonly filtered columns that
// receive a secondary index even without an association.
var indexedColumns = map[string]bool{
	core.ColumnCreatedAt:   true,
	core.ColumnUpdatedAt:   true,
	core.ColumnVersion:     true,
	core.ColumnDeleted:     true,
	core.ColumnLastChanged: true,
	"owner":                true,
	"status":               true,
	"type":                 true,
}

// Translator builds native schemas and model descriptors from a schema
// description. Stateless; safe for concurrent use.
type Translator struct{}

// NewTranslator creates a new schema translator.
func NewTranslator() *Translator {
	return &Translator{}
}

// MapFieldType maps a framework field type to a native column type.
// Unknown kinds default to string.
func (t *Translator) MapFieldType(ft core.FieldType) core.ColumnType {
	switch ft {
	case core.FieldTypeID, core.FieldTypeString, core.FieldTypeEnum, core.FieldTypeJSON:
		return core.ColumnTypeString
	case core.FieldTypeInt, core.FieldTypeFloat, core.FieldTypeDateTime,
		core.FieldTypeDate, core.FieldTypeTime, core.FieldTypeTimestamp:
		return core.ColumnTypeNumber
	case core.FieldTypeBoolean:
		return core.ColumnTypeBoolean
	default:
		return core.ColumnTypeString
	}
}

// BuildNativeSchema converts a schema description into the native table
// schema: one table per model, one column per non-id field (has-many
// fields excepted; they live on the child table), six system columns, and
// the fixed metadata table.
func (t *Translator) BuildNativeSchema(desc *core.SchemaDescription) (*core.NativeSchema, error) {
	if desc == nil {
		return nil, fmt.Errorf("schema description cannot be nil")
	}

	native := &core.NativeSchema{
		Version:  desc.Version,
		Syncable: desc.Syncable,
		Tables:   make(map[string]*core.TableSchema, len(desc.Models)+1),
	}

	for name, model := range desc.Models {
		if name == "" {
			return nil, fmt.Errorf("model name cannot be empty")
		}
		table, err := t.buildTable(name, model)
		if err != nil {
			return nil, fmt.Errorf("failed to translate model %q: %w", name, err)
		}
		native.Tables[table.Name] = table
	}

	meta := metadataTableSchema()
	native.Tables[meta.Name] = meta
	return native, nil
}

// buildTable emits the table schema for one model. Columns are ordered
// deterministically: id, declared columns sorted by name, system columns.
func (t *Translator) buildTable(modelName string, model core.ModelDefinition) (*core.TableSchema, error) {
	table := &core.TableSchema{Name: ToSnake(modelName)}
	table.Columns = append(table.Columns, core.ColumnSchema{
		Name: core.ColumnID,
		Type: core.ColumnTypeString,
	})

	declared := make([]core.ColumnSchema, 0, len(model.Fields))
	for fieldName, fd := range model.Fields {
		if fieldName == core.ColumnID {
			return nil, fmt.Errorf("field %q must not be declared explicitly", core.ColumnID)
		}
		if fd.Association != nil && fd.Association.Kind == core.HasMany {
			// Reverse lookup only; the foreign key lives on the child.
			continue
		}

		col := core.ColumnSchema{
			Name:     ToSnake(fieldName),
			Type:     t.MapFieldType(fd.Type),
			Optional: !fd.Required,
		}
		if fd.Association != nil && fd.Association.Kind == core.BelongsTo {
			col.Name = foreignKeyColumn(fieldName, fd.Association)
			col.Type = core.ColumnTypeString
			col.Indexed = true
		}
		if indexedColumns[col.Name] {
			col.Indexed = true
		}
		declared = append(declared, col)
	}
	sort.Slice(declared, func(i, j int) bool { return declared[i].Name < declared[j].Name })
	table.Columns = append(table.Columns, declared...)
	table.Columns = append(table.Columns, systemColumns()...)
	return table, nil
}

// systemColumns returns the six columns appended to every model table.
// Timestamps are epoch milliseconds so they map onto the number type.
func systemColumns() []core.ColumnSchema {
	return []core.ColumnSchema{
		{Name: core.ColumnVersion, Type: core.ColumnTypeNumber, Optional: true, Indexed: true},
		{Name: core.ColumnLastChanged, Type: core.ColumnTypeNumber, Optional: true, Indexed: true},
		{Name: core.ColumnDeleted, Type: core.ColumnTypeBoolean, Optional: true, Indexed: true},
		{Name: core.ColumnCreatedAt, Type: core.ColumnTypeNumber, Optional: true, Indexed: true},
		{Name: core.ColumnUpdatedAt, Type: core.ColumnTypeNumber, Optional: true, Indexed: true},
	}
}

// metadataTableSchema is the fixed per-model sync-state table.
func metadataTableSchema() *core.TableSchema {
	return &core.TableSchema{
		Name: core.MetadataTable,
		Columns: []core.ColumnSchema{
			{Name: core.ColumnID, Type: core.ColumnTypeString},
			{Name: "namespace", Type: core.ColumnTypeString, Indexed: true},
			{Name: "model", Type: core.ColumnTypeString, Indexed: true},
			{Name: "last_sync_at", Type: core.ColumnTypeNumber, Optional: true},
			{Name: "sync_status", Type: core.ColumnTypeString, Optional: true},
		},
	}
}

// foreignKeyColumn derives the column holding a belongs-to foreign key.
func foreignKeyColumn(fieldName string, assoc *core.Association) string {
	if assoc.ForeignKeyField != "" {
		return ToSnake(assoc.ForeignKeyField)
	}
	return ToSnake(fieldName)
}

// BuildModelDescriptors constructs one descriptor per model, keyed by
// table name, wiring belongs-to fields to their foreign-key column and
// has-many fields to a reverse lookup on the child table. The native
// schema must come from the same description.
func (t *Translator) BuildModelDescriptors(desc *core.SchemaDescription, native *core.NativeSchema) (map[string]*core.ModelDescriptor, error) {
	if desc == nil || native == nil {
		return nil, fmt.Errorf("schema description and native schema are required")
	}

	descriptors := make(map[string]*core.ModelDescriptor, len(desc.Models))
	for name, model := range desc.Models {
		tableName := ToSnake(name)
		table, ok := native.Tables[tableName]
		if !ok {
			return nil, fmt.Errorf("native schema is missing table %q for model %q", tableName, name)
		}

		md := &core.ModelDescriptor{
			Name:          name,
			Table:         tableName,
			Schema:        table,
			FieldToColumn: make(map[string]string, len(model.Fields)+6),
			ColumnToField: make(map[string]string, len(model.Fields)+6),
			ReadOnly: map[string]bool{
				core.ColumnVersion:     true,
				core.ColumnLastChanged: true,
				core.ColumnDeleted:     true,
				core.ColumnCreatedAt:   true,
				core.ColumnUpdatedAt:   true,
			},
		}

		bind := func(field, column string) {
			md.FieldToColumn[field] = column
			md.ColumnToField[column] = field
		}
		bind(core.ColumnID, core.ColumnID)
		bind("_version", core.ColumnVersion)
		bind("_lastChangedAt", core.ColumnLastChanged)
		bind("_deleted", core.ColumnDeleted)
		bind("createdAt", core.ColumnCreatedAt)
		bind("updatedAt", core.ColumnUpdatedAt)

		for fieldName, fd := range model.Fields {
			if fd.Association == nil {
				bind(fieldName, ToSnake(fieldName))
				continue
			}
			switch fd.Association.Kind {
			case core.BelongsTo:
				fk := foreignKeyColumn(fieldName, fd.Association)
				bind(fieldName, fk)
				md.BelongsTo = append(md.BelongsTo, core.BelongsToAccessor{
					Field:            fieldName,
					ForeignKeyColumn: fk,
					TargetModel:      fd.Association.TargetModel,
					TargetTable:      ToSnake(fd.Association.TargetModel),
				})
			case core.HasMany:
				md.HasMany = append(md.HasMany, core.HasManyAccessor{
					Field:            fieldName,
					TargetModel:      fd.Association.TargetModel,
					TargetTable:      ToSnake(fd.Association.TargetModel),
					ForeignKeyColumn: reverseForeignKey(name, fd.Association),
				})
			default:
				return nil, fmt.Errorf("model %q field %q has unknown connection kind %q", name, fieldName, fd.Association.Kind)
			}
		}

		sort.Slice(md.BelongsTo, func(i, j int) bool { return md.BelongsTo[i].Field < md.BelongsTo[j].Field })
		sort.Slice(md.HasMany, func(i, j int) bool { return md.HasMany[i].Field < md.HasMany[j].Field })
		descriptors[tableName] = md
	}
	return descriptors, nil
}

// reverseForeignKey derives the child-table column referencing the owning
// model for a has-many association.
func reverseForeignKey(owningModel string, assoc *core.Association) string {
	if assoc.ForeignKeyField != "" {
		return ToSnake(assoc.ForeignKeyField)
	}
	return ToSnake(owningModel) + "_id"
}

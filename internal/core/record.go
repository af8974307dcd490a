package core

import "time"

// Record is the generic record representation exchanged between the sync
// framework and the adapter. Keys are field or column names depending on
// which side of the translation boundary the record sits on.
type Record map[string]interface{}

// Clone returns a shallow copy of the record.
func (r Record) Clone() Record {
	if r == nil {
		return nil
	}
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// ID returns the record's surrogate identifier, or "" if absent.
func (r Record) ID() string {
	id, _ := r[ColumnID].(string)
	return id
}

// OpType identifies the kind of write a save operation performed.
type OpType string

const (
	// OpInsert is reported when a save created a new record.
	OpInsert OpType = "INSERT"

	// OpUpdate is reported when a save updated an existing record.
	OpUpdate OpType = "UPDATE"
)

// QueryOne selects which end of the natural fetch order a single-record
// query returns.
type QueryOne string

const (
	// First returns the first record in fetch order.
	First QueryOne = "FIRST"

	// Last returns the last record in fetch order.
	Last QueryOne = "LAST"
)

// RecordFactory materializes a framework record from the plain field data
// the adapter produces for a model. The sync framework supplies its own
// constructor; the default copies the fields into a fresh Record.
type RecordFactory func(model string, fields Record) Record

// DefaultRecordFactory copies the field data into a new Record.
func DefaultRecordFactory(model string, fields Record) Record {
	return fields.Clone()
}

// ChangeKind identifies the mutation carried by a ChangeEvent.
type ChangeKind string

const (
	// ChangeCreated marks a newly inserted record.
	ChangeCreated ChangeKind = "created"

	// ChangeUpdated marks an in-place update.
	ChangeUpdated ChangeKind = "updated"

	// ChangeDeleted marks a soft or hard delete.
	ChangeDeleted ChangeKind = "deleted"
)

// ChangeEvent describes one committed mutation. Events are offered to the
// outbox after the owning write transaction commits so a sync engine can
// consume a change feed.
type ChangeEvent struct {
	// ID uniquely identifies the event.
	ID string `json:"id"`

	// Table is the native table the mutation touched.
	Table string `json:"table"`

	// Model is the framework model name for the table.
	Model string `json:"model"`

	// Kind is the mutation kind.
	Kind ChangeKind `json:"kind"`

	// RecordID is the id of the affected record.
	RecordID string `json:"record_id"`

	// Record is the post-mutation record in native column shape.
	// Nil for hard deletes.
	Record Record `json:"record,omitempty"`

	// Timestamp is when the mutation committed.
	Timestamp time.Time `json:"timestamp"`
}

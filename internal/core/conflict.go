package core

// ConflictResolution is the verdict a conflict handler returns.
type ConflictResolution string

const (
	// AcceptRemote discards the local mutation and takes the remote
	// record as-is.
	AcceptRemote ConflictResolution = "ACCEPT_REMOTE"

	// RetryLocal re-applies the local mutation against the remote
	// version.
	RetryLocal ConflictResolution = "RETRY_LOCAL"
)

// ConflictOperation is the kind of mutation that raised the conflict.
type ConflictOperation string

const (
	ConflictOpCreate ConflictOperation = "CREATE"
	ConflictOpUpdate ConflictOperation = "UPDATE"
	ConflictOpDelete ConflictOperation = "DELETE"
)

// ConflictData carries both sides of a sync conflict to a handler.
type ConflictData struct {
	// LocalRecord is the locally mutated record.
	LocalRecord Record

	// RemoteRecord is the server's current record.
	RemoteRecord Record

	// Operation is the mutation kind that conflicted.
	Operation ConflictOperation

	// Attempts counts how many times the local mutation has already
	// been retried.
	Attempts int
}

// ConflictHandler decides how a sync conflict resolves. Handlers must be
// pure: same input, same verdict, no side effects.
type ConflictHandler func(data ConflictData) ConflictResolution

// Package batch models per-item outcomes of bulk index-sync calls.
package batch

// ItemStatus is the processing outcome of a single batch item.
type ItemStatus string

// Batch item status values.
const (
	StatusCreated ItemStatus = "created"
	StatusUpdated ItemStatus = "updated"
	StatusDeleted ItemStatus = "deleted"
	StatusError   ItemStatus = "error"
)

// Result is the outcome of processing one item in a batch.
type Result struct {
	id     string
	status ItemStatus
	err    error
}

// NewUpserted creates a successful upsert result.
func NewUpserted(id string, created bool) Result {
	if created {
		return Result{id: id, status: StatusCreated}
	}
	return Result{id: id, status: StatusUpdated}
}

// NewDeleted creates a successful delete result.
func NewDeleted(id string) Result { return Result{id: id, status: StatusDeleted} }

// NewError creates a failed batch result.
func NewError(id string, err error) Result { return Result{id: id, status: StatusError, err: err} }

// ID returns the item identifier.
func (r Result) ID() string { return r.id }

// Status returns the processing outcome.
func (r Result) Status() ItemStatus { return r.status }

// OK reports whether the item was processed.
func (r Result) OK() bool { return r.status != StatusError }

// Err returns the error, if any.
func (r Result) Err() error { return r.err }

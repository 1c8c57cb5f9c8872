package types

import "context"

// DefaultPageSize is the List limit used when the caller passes none.
const DefaultPageSize = 50

// Table provides CRUD operations for the records of one Kind.
type Table interface {
	// Kind returns the kind of records this table holds.
	Kind() Kind

	// Create normalizes rec, assigns the next id (max+1, or 1 when empty),
	// stamps the header and inserts it. The header of rec is updated in
	// place. Returns the new id.
	Create(ctx context.Context, rec Record) (int64, error)

	// Get returns the record with the given id, or nil and no error when
	// there is none.
	Get(ctx context.Context, id int64) (Record, error)

	// GetByDate returns the earliest-created record filed under date, or
	// nil and no error. The date is normalized before matching.
	GetByDate(ctx context.Context, date string) (Record, error)

	// List returns records newest first. limit <= 0 means DefaultPageSize.
	List(ctx context.Context, limit, offset int) ([]Record, error)

	// Update deep-merges patch into the stored record and refreshes
	// updatedAt. Returns ErrNotFound when the id does not exist.
	Update(ctx context.Context, id int64, patch Patch) error

	// Delete removes the row only. Attachment files and rows pointing at
	// the record are the caller's to clean up. Returns ErrNotFound when
	// the id does not exist.
	Delete(ctx context.Context, id int64) error
}

// NormalizeKeyFor canonicalizes a lookup date for the given kind: YYYY-MM
// for monthly records, YYYY-MM-DD for the rest.
func NormalizeKeyFor(kind Kind, date string) (string, error) {
	if kind == KindMonthly {
		return NormalizeMonth(date)
	}
	return NormalizeDate(date)
}

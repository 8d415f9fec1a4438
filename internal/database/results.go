package database

// Results is the outcome of a single Execute call.
type Results struct {
	// Rows holds the fetched row tuples.
	Rows [][]any
	// Columns holds the result column names.
	Columns []string
	// Truncated reports whether rows beyond the configured maximum were
	// discarded.
	Truncated bool
}

// First returns the first value of the first row, if any.
func (r *Results) First() (any, bool) {
	if len(r.Rows) == 0 || len(r.Rows[0]) == 0 {
		return nil, false
	}
	return r.Rows[0][0], true
}

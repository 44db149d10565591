package batch

// ItemStatus is the ingestion outcome of a single seed record.
type ItemStatus string

// Item status values.
const (
	StatusOK        ItemStatus = "ok"
	StatusDuplicate ItemStatus = "duplicate"
	StatusInvalid   ItemStatus = "invalid"
	StatusError     ItemStatus = "error"
)

// Result is the outcome of one record in an ingestion run. Key is the book id when the
// record was valid, otherwise its position in the seed file ("#3").
type Result struct {
	key    string
	status ItemStatus
	err    error
}

// NewOK creates a successful result.
func NewOK(key string) Result { return Result{key: key, status: StatusOK} }

// NewDuplicate marks a record whose title was already seen in the same run.
func NewDuplicate(key string) Result { return Result{key: key, status: StatusDuplicate} }

// NewInvalid marks a record that failed validation.
func NewInvalid(key string, err error) Result { return Result{key: key, status: StatusInvalid, err: err} }

// NewError marks a valid record that could not be embedded or stored.
func NewError(key string, err error) Result { return Result{key: key, status: StatusError, err: err} }

// Key returns the record key.
func (r Result) Key() string { return r.key }

// Status returns the outcome.
func (r Result) Status() ItemStatus { return r.status }

// Err returns the error, if any.
func (r Result) Err() error { return r.err }

// Tally counts results per status.
func Tally(results []Result) map[ItemStatus]int {
	out := make(map[ItemStatus]int, 4)
	for _, r := range results {
		out[r.status]++
	}
	return out
}

package domain

// Operation names the engine call an outcome belongs to.
type Operation string

const (
	OperationAdd    Operation = "add"
	OperationSave   Operation = "save"
	OperationDelete Operation = "delete"
	OperationFetch  Operation = "fetch"
)

// Result says which path a reconciliation took.
type Result int

const (
	// Applied means the remote source accepted the change (or returned the list).
	Applied Result = iota
	// AppliedLocalOnly means the remote attempt failed and local state was kept as-is.
	AppliedLocalOnly
)

func (r Result) String() string {
	switch r {
	case Applied:
		return "applied"
	case AppliedLocalOnly:
		return "applied_local_only"
	default:
		return "unknown"
	}
}

// Outcome is the result of one background reconciliation. It never describes a
// rollback: AppliedLocalOnly keeps whatever the optimistic commit produced.
type Outcome[P any] struct {
	Op     Operation
	Result Result
	// Record is the confirmed record for add/save when Applied, the kept
	// provisional record when AppliedLocalOnly, and the removed record for delete.
	// When Discarded is set it is the record as this reconciliation sent it.
	Record Record[P]
	// Discarded reports an add/save whose record was deleted locally while the
	// create was in flight. The confirmed copy was removed again remotely.
	Discarded bool
	// LocalID is the record id at the optimistic commit.
	LocalID string
	// Records is the collection after a fetch.
	Records []Record[P]
	// Err is the remote failure that caused AppliedLocalOnly.
	Err error
}

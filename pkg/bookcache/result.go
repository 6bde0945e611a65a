package bookcache

// Status tags the outcome of a cache operation.
type Status int

const (
	// StatusEmpty means no usable snapshot; Reason says why.
	StatusEmpty Status = iota

	// StatusOK means Snapshot is present and valid.
	StatusOK

	// StatusFailed is internal only. Exported methods never return it.
	StatusFailed
)

// String implements fmt.Stringer.
func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusEmpty:
		return "empty"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Result is the tagged outcome of a read or write.
type Result struct {
	Status   Status
	Snapshot *Snapshot
	Reason   error
}

// OK reports whether the result carries a snapshot.
func (r Result) OK() bool {
	return r.Status == StatusOK && r.Snapshot != nil
}

func ok(s *Snapshot) Result {
	return Result{Status: StatusOK, Snapshot: s}
}

func empty(reason error) Result {
	return Result{Status: StatusEmpty, Reason: reason}
}

func failed(reason error) Result {
	return Result{Status: StatusFailed, Reason: reason}
}

// collapse turns an internal failure into an empty result.
func (r Result) collapse() Result {
	if r.Status == StatusFailed {
		return empty(r.Reason)
	}
	return r
}

package segment

// Status is the workflow state that gates rendering and the boxplot fetch.
type Status int

const (
	StatusIdle Status = iota
	StatusLoading
	StatusSuccess
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusLoading:
		return "loading"
	case StatusSuccess:
		return "success"
	case StatusError:
		return "error"
	}
	return "unknown"
}

// CanTransition reports whether s -> to is a legal edge.
// loading -> loading is a resubmit while a run is in flight; the older
// response is discarded by generation.
func (s Status) CanTransition(to Status) bool {
	switch to {
	case StatusLoading:
		return true
	case StatusSuccess, StatusError:
		return s == StatusLoading
	}
	return false
}

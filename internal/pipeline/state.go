package pipeline

// State is the position of an asset or branch task in its lifecycle
type State int

const (
	Pending State = iota
	FilteredOut
	SkippedDuplicate
	TestLogged
	Downloading
	Extracting
	Routed
	Recorded
	Failed
)

var stateNames = map[State]string{
	Pending:          "pending",
	FilteredOut:      "filtered_out",
	SkippedDuplicate: "skipped_duplicate",
	TestLogged:       "test_logged",
	Downloading:      "downloading",
	Extracting:       "extracting",
	Routed:           "routed",
	Recorded:         "recorded",
	Failed:           "failed",
}

// String returns the state name
func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return "unknown"
}

// Terminal reports whether no further transition can happen
func (s State) Terminal() bool {
	switch s {
	case FilteredOut, SkippedDuplicate, TestLogged, Recorded, Failed:
		return true
	}
	return false
}

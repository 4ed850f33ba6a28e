package models

// transitionTable maps a status to the statuses it may move to. A status that
// is absent from the table (or maps to nothing) is terminal.
type transitionTable[S ~string] map[S][]S

func (t transitionTable[S]) allows(from, to S) bool {
	for _, next := range t[from] {
		if next == to {
			return true
		}
	}
	return false
}

func (t transitionTable[S]) terminal(s S) bool {
	return len(t[s]) == 0
}

// Versioned is implemented by rows written with an optimistic version check
type Versioned interface {
	GetVersion() int
	BumpVersion()
}

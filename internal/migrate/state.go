package migrate

import (
	"fmt"
	"slices"

	"github.com/persistorai/listengraph/internal/metrics"
)

// State is a phase of a migration run.
type State int

// Run states, in the order a successful run visits them.
const (
	StateIdle State = iota
	StateConnecting
	StateSchemaReady
	StateMigrating
	StateIndexing
	StateReporting
	StateDone
	StateFailed
)

var stateNames = map[State]string{
	StateIdle:        "idle",
	StateConnecting:  "connecting",
	StateSchemaReady: "schema_ready",
	StateMigrating:   "migrating",
	StateIndexing:    "indexing",
	StateReporting:   "reporting",
	StateDone:        "done",
	StateFailed:      "failed",
}

// String returns the snake_case state name.
func (s State) String() string {
	if n, ok := stateNames[s]; ok {
		return n
	}

	return fmt.Sprintf("state(%d)", int(s))
}

// MarshalText lets states render by name in JSON.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Terminal reports whether no further transition is possible.
func (s State) Terminal() bool {
	return s == StateDone || s == StateFailed
}

// transitions lists the legal successors of each state. Failed is only
// reachable while connecting; later problems are counted, not fatal.
var transitions = map[State][]State{
	StateIdle:        {StateConnecting},
	StateConnecting:  {StateSchemaReady, StateFailed},
	StateSchemaReady: {StateMigrating},
	StateMigrating:   {StateIndexing},
	StateIndexing:    {StateReporting},
	StateReporting:   {StateDone},
}

// CanTransition reports whether from → to is legal.
func CanTransition(from, to State) bool {
	return slices.Contains(transitions[from], to)
}

// transition moves the run to next. An illegal move is a programming error.
func (m *Migrator) transition(next State) {
	m.mu.Lock()
	prev := m.state
	if !CanTransition(prev, next) {
		m.mu.Unlock()
		panic(fmt.Sprintf("migrate: illegal state transition %s -> %s", prev, next))
	}
	m.state = next
	m.mu.Unlock()

	metrics.MigrationState.Set(float64(next))
	m.log.WithField("from", prev.String()).WithField("to", next.String()).Info("migration state changed")
}

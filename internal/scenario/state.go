package scenario

// State is the scenario's lifecycle stage.
type State int

const (
	StateUninitialized State = iota
	// StateSchemaPending: schema fetch in flight.
	StateSchemaPending
	// StateSchemaLoaded: schema set, arguments defaulted.
	StateSchemaLoaded
	// StateEditing: arguments changed since defaulting.
	StateEditing
	// StatePersisting: save in flight.
	StatePersisting
	// StateReloading: load in flight.
	StateReloading
)

func (s State) String() string {
	switch s {
	case StateSchemaPending:
		return "schema_pending"
	case StateSchemaLoaded:
		return "schema_loaded"
	case StateEditing:
		return "editing"
	case StatePersisting:
		return "persisting"
	case StateReloading:
		return "reloading"
	default:
		return "uninitialized"
	}
}

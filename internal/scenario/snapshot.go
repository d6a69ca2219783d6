package scenario

import "modelr/internal/schema"

// Snapshot is the full local state of a scenario, for storing between runs.
type Snapshot struct {
	Name      string                  `json:"name"`
	Script    string                  `json:"script"`
	Arguments map[string]schema.Value `json:"arguments"`
	Info      *schema.Info            `json:"info,omitempty"`
	Edited    bool                    `json:"edited,omitempty"`
}

// Snapshot exports the scenario state.
func (s *Scenario) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{
		Name:      s.name,
		Script:    s.script,
		Arguments: copyArgs(s.arguments),
		Info:      s.info,
		Edited:    s.state == StateEditing,
	}
}

// Restore replaces the scenario state with snap. Argument kinds are
// re-derived from the snapshot's schema; values are not re-validated.
func (s *Scenario) Restore(snap Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.gen++
	s.name = snap.Name
	s.script = snap.Script
	s.info = snap.Info
	s.arguments = make(map[string]schema.Value, len(snap.Arguments))
	for k, v := range snap.Arguments {
		if arg := s.info.Lookup(k); arg != nil {
			v = arg.Tag(v.Raw)
		}
		s.arguments[k] = v
	}

	switch {
	case s.info == nil:
		s.state = StateUninitialized
	case snap.Edited:
		s.state = StateEditing
	default:
		s.state = StateSchemaLoaded
	}
}

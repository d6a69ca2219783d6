package workspace

import (
	"errors"

	"modelr/internal/rock"
	"modelr/internal/scenario"
)

// ErrNotFound is returned when a requested entry does not exist in the workspace.
var ErrNotFound = errors.New("not found")

// Store defines the local workspace persistence interface.
type Store interface {
	// Scenario snapshots
	SaveScenario(snap scenario.Snapshot) error
	GetScenario(name string) (*scenario.Snapshot, error)
	DeleteScenario(name string) error
	ListScenarios() ([]string, error)

	// Rocks defined locally, layered over the configured ones.
	SaveRock(r rock.Rock) error
	GetRock(name string) (*rock.Rock, error)
	DeleteRock(name string) error
	ListRocks() ([]rock.Rock, error)

	// SetCurrent records the scenario commands operate on by default.
	SetCurrent(name string) error
	Current() (string, error)

	Close() error
}

package schema

import (
	"encoding/json"
	"strconv"
)

// Value is an argument value tagged with its kind. Raw holds the canonical
// text form; for KindRock it is the rock name, not the rock's properties.
type Value struct {
	Kind Kind
	Raw  string
}

func (v Value) String() string { return v.Raw }

// Float returns the numeric form of a KindNumber value.
func (v Value) Float() (float64, bool) {
	if v.Kind != KindNumber {
		return 0, false
	}
	f, err := strconv.ParseFloat(v.Raw, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

// MarshalJSON encodes the value as its raw text, the form saved scenarios use.
func (v Value) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.Raw)
}

// UnmarshalJSON accepts any JSON scalar. The kind is left as KindText; it is
// re-derived from the schema when the value is applied to a scenario.
func (v *Value) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	v.Kind = KindText
	v.Raw = Text(raw)
	return nil
}

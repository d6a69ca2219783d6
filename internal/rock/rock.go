package rock

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// ErrInvalid is returned when a rock record or its wire value is malformed.
var ErrInvalid = errors.New("invalid rock")

// Rock is a named set of elastic rock properties.
type Rock struct {
	Name        string  `json:"name" yaml:"name"`
	Description string  `json:"description,omitempty" yaml:"description"`
	VP          float64 `json:"vp" yaml:"vp"`   // P-wave velocity
	VS          float64 `json:"vs" yaml:"vs"`   // S-wave velocity
	Rho         float64 `json:"rho" yaml:"rho"` // bulk density
}

// Value renders the rock in the "vp,vs,rho" form the plotting server expects
// for rock_properties_type arguments.
func (r Rock) Value() string {
	return format(r.VP) + "," + format(r.VS) + "," + format(r.Rho)
}

// Validate checks that the rock has a name and positive properties.
func (r Rock) Validate() error {
	if r.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalid)
	}
	if strings.ContainsAny(r.Name, ",&=?") {
		return fmt.Errorf("%w: name %q contains a reserved character", ErrInvalid, r.Name)
	}
	if r.VP <= 0 || r.VS < 0 || r.Rho <= 0 {
		return fmt.Errorf("%w: %s: vp and rho must be positive, vs non-negative", ErrInvalid, r.Name)
	}
	return nil
}

// Parse decodes a "vp,vs,rho" value into a rock named name.
func Parse(name, value string) (Rock, error) {
	parts := strings.Split(value, ",")
	if len(parts) != 3 {
		return Rock{}, fmt.Errorf("%w: %q: want vp,vs,rho", ErrInvalid, value)
	}
	var nums [3]float64
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return Rock{}, fmt.Errorf("%w: %q: %v", ErrInvalid, value, err)
		}
		nums[i] = f
	}
	return Rock{Name: name, VP: nums[0], VS: nums[1], Rho: nums[2]}, nil
}

// Mapping builds the name to wire value mapping used by the plotting client.
// Later rocks override earlier ones with the same name.
func Mapping(rocks []Rock) map[string]string {
	m := make(map[string]string, len(rocks))
	for _, r := range rocks {
		m[r.Name] = r.Value()
	}
	return m
}

// Merge returns base overlaid with override, keyed by name and sorted.
func Merge(base, override []Rock) []Rock {
	byName := make(map[string]Rock, len(base)+len(override))
	for _, r := range base {
		byName[r.Name] = r
	}
	for _, r := range override {
		byName[r.Name] = r
	}
	out := make([]Rock, 0, len(byName))
	for _, r := range byName {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func format(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

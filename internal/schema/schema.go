package schema

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Argument types the plotting server reports by name.
const (
	TypeRockProperties = "rock_properties_type"
	TypeInt            = "int"
	TypeFloat          = "float"
	TypeString         = "str"

	ActionList = "list"
)

var (
	// ErrInvalidValue is returned when a value does not satisfy its argument's type.
	ErrInvalidValue = errors.New("invalid value")
	// ErrRequired is returned when a required argument is given an empty value.
	ErrRequired = errors.New("value required")
)

// Kind tags an argument value with how it is validated and serialized.
type Kind int

const (
	KindText Kind = iota
	KindNumber
	KindChoice
	KindRock
	KindList
)

func (k Kind) String() string {
	switch k {
	case KindNumber:
		return "number"
	case KindChoice:
		return "choice"
	case KindRock:
		return "rock"
	case KindList:
		return "list"
	default:
		return "text"
	}
}

// Argument describes one script argument as declared by the plotting server.
type Argument struct {
	Name     string   `json:"name"`
	Type     string   `json:"type"`
	Default  any      `json:"default"`
	Required bool     `json:"required"`
	Help     string   `json:"help"`
	Choices  []string `json:"choices"`
	Action   string   `json:"action,omitempty"`
}

// Info is the schema of a script: its description and declared arguments.
type Info struct {
	Description string               `json:"description"`
	Arguments   map[string]*Argument `json:"arguments"`
}

// ParseInfo decodes a script_help.json body.
func ParseInfo(data []byte) (*Info, error) {
	var info Info
	if err := json.Unmarshal(data, &info); err != nil {
		return nil, fmt.Errorf("decode script info: %w", err)
	}
	if info.Arguments == nil {
		info.Arguments = make(map[string]*Argument)
	}
	for name, arg := range info.Arguments {
		if arg == nil {
			return nil, fmt.Errorf("argument %q: empty declaration", name)
		}
		if arg.Name == "" {
			arg.Name = name
		}
	}
	return &info, nil
}

// Names returns the declared argument names in iteration order.
func (i *Info) Names() []string {
	names := make([]string, 0, len(i.Arguments))
	for name := range i.Arguments {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Lookup returns the argument declaration for name, or nil.
func (i *Info) Lookup(name string) *Argument {
	if i == nil {
		return nil
	}
	return i.Arguments[name]
}

// Kind reports how values of this argument are tagged.
func (a *Argument) Kind() Kind {
	switch {
	case a.Type == TypeRockProperties:
		return KindRock
	case len(a.Choices) > 0:
		return KindChoice
	case a.Action == ActionList:
		return KindList
	case a.Type == TypeInt || a.Type == TypeFloat:
		return KindNumber
	default:
		return KindText
	}
}

// DefaultValue returns the declared default as a tagged value.
func (a *Argument) DefaultValue() Value {
	return Value{Kind: a.Kind(), Raw: Text(a.Default)}
}

// Tag wraps raw in this argument's kind without validating it.
func (a *Argument) Tag(raw string) Value {
	return Value{Kind: a.Kind(), Raw: raw}
}

// Parse validates raw against the argument declaration. rocks is the set of
// known rock names, consulted for rock-typed arguments.
func (a *Argument) Parse(raw string, rocks map[string]string) (Value, error) {
	v := a.Tag(raw)
	if raw == "" {
		if a.Required {
			return Value{}, fmt.Errorf("argument %s: %w", a.Name, ErrRequired)
		}
		return v, nil
	}

	switch v.Kind {
	case KindRock:
		if _, ok := rocks[raw]; !ok {
			return Value{}, fmt.Errorf("argument %s: unknown rock %q: %w", a.Name, raw, ErrInvalidValue)
		}
	case KindChoice:
		found := false
		for _, c := range a.Choices {
			if c == raw {
				found = true
				break
			}
		}
		if !found {
			return Value{}, fmt.Errorf("argument %s: must be one of %v (got %q): %w", a.Name, a.Choices, raw, ErrInvalidValue)
		}
	case KindNumber:
		if err := a.checkScalar(raw); err != nil {
			return Value{}, err
		}
	case KindList:
		for _, elem := range strings.Split(raw, ",") {
			if err := a.checkScalar(strings.TrimSpace(elem)); err != nil {
				return Value{}, err
			}
		}
	}
	return v, nil
}

func (a *Argument) checkScalar(raw string) error {
	switch a.Type {
	case TypeInt:
		if _, err := strconv.Atoi(raw); err != nil {
			return fmt.Errorf("argument %s: invalid int value %q: %w", a.Name, raw, ErrInvalidValue)
		}
	case TypeFloat:
		if _, err := strconv.ParseFloat(raw, 64); err != nil {
			return fmt.Errorf("argument %s: invalid float value %q: %w", a.Name, raw, ErrInvalidValue)
		}
	}
	return nil
}

// Text converts a decoded JSON scalar into its canonical text form.
func Text(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case bool:
		return strconv.FormatBool(val)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case int:
		return strconv.Itoa(val)
	case json.Number:
		return val.String()
	case []any:
		parts := make([]string, len(val))
		for i, elem := range val {
			parts[i] = Text(elem)
		}
		return strings.Join(parts, ",")
	default:
		return fmt.Sprintf("%v", val)
	}
}

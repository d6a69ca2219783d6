package scenario

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"modelr/internal/schema"
)

var (
	// ErrNoSchema is returned by operations that need the script schema before it is loaded.
	ErrNoSchema = errors.New("script schema not loaded")
	// ErrUnknownArgument is returned when updating an argument the schema does not declare.
	ErrUnknownArgument = errors.New("unknown argument")
	// ErrUnknownRock is returned when a rock argument names a rock with no known value.
	ErrUnknownRock = errors.New("unknown rock")
	// ErrStale is returned by a script selection superseded by a later one.
	ErrStale = errors.New("superseded by a later script selection")
)

// SchemaSource fetches script schemas. *plotserver.Client implements it.
type SchemaSource interface {
	ScriptInfo(ctx context.Context, script string) (*schema.Info, error)
}

// Backend persists scenario payloads by name. *backend.Client implements it.
type Backend interface {
	Save(ctx context.Context, name string, data []byte) error
	Load(ctx context.Context, name string) ([]byte, error)
}

// Change describes a single argument update.
type Change struct {
	Scenario string
	Script   string
	Attr     string
	Value    schema.Value
}

// Payload is the persisted form of a scenario.
type Payload struct {
	Script    string                  `json:"script"`
	Arguments map[string]schema.Value `json:"arguments"`
}

// Scenario is a named selection of a script and its argument values.
type Scenario struct {
	mu        sync.Mutex
	name      string
	script    string
	arguments map[string]schema.Value
	rocks     map[string]string
	info      *schema.Info
	state     State
	gen       uint64
	onChange  func(Change)
	logger    *slog.Logger
}

// New creates an empty scenario. rocks maps rock names to their wire values
// and is copied.
func New(name string, rocks map[string]string, logger *slog.Logger) *Scenario {
	s := &Scenario{
		name:      name,
		arguments: make(map[string]schema.Value),
		rocks:     make(map[string]string, len(rocks)),
		logger:    logger.With("component", "scenario"),
	}
	for k, v := range rocks {
		s.rocks[k] = v
	}
	return s
}

// SetOnChange installs the hook called after every successful Update.
func (s *Scenario) SetOnChange(fn func(Change)) {
	s.mu.Lock()
	s.onChange = fn
	s.mu.Unlock()
}

func (s *Scenario) Name() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.name
}

func (s *Scenario) Script() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.script
}

// Info returns the loaded schema, or nil.
func (s *Scenario) Info() *schema.Info {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.info
}

func (s *Scenario) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Arguments returns a copy of the current argument values.
func (s *Scenario) Arguments() map[string]schema.Value {
	s.mu.Lock()
	defer s.mu.Unlock()
	return copyArgs(s.arguments)
}

// Argument returns the current value of attr.
func (s *Scenario) Argument(attr string) (schema.Value, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.arguments[attr]
	return v, ok
}

// Rocks returns a copy of the rock mapping.
func (s *Scenario) Rocks() map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]string, len(s.rocks))
	for k, v := range s.rocks {
		out[k] = v
	}
	return out
}

// Update sets attr to raw and notifies the change hook. With a schema loaded,
// raw is validated first and a rejected value leaves the scenario untouched.
func (s *Scenario) Update(attr, raw string) error {
	s.mu.Lock()
	v := schema.Value{Kind: schema.KindText, Raw: raw}
	if s.info != nil {
		arg := s.info.Lookup(attr)
		if arg == nil {
			s.mu.Unlock()
			return fmt.Errorf("update %s: %w", attr, ErrUnknownArgument)
		}
		var err error
		if v, err = arg.Parse(raw, s.rocks); err != nil {
			s.mu.Unlock()
			return fmt.Errorf("update %s: %w", attr, err)
		}
	}
	s.arguments[attr] = v
	if s.state == StateSchemaLoaded {
		s.state = StateEditing
	}
	hook := s.onChange
	change := Change{Scenario: s.name, Script: s.script, Attr: attr, Value: v}
	s.mu.Unlock()

	if hook != nil {
		hook(change)
	}
	return nil
}

// DefaultArgs resets the arguments to the schema defaults, with overrides
// taking precedence. Override names the schema does not declare are ignored.
func (s *Scenario) DefaultArgs(overrides map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.info == nil {
		return ErrNoSchema
	}
	s.applyDefaults(overrides)
	s.state = StateSchemaLoaded
	return nil
}

func (s *Scenario) applyDefaults(overrides map[string]string) {
	args := make(map[string]schema.Value, len(s.info.Arguments))
	for name, arg := range s.info.Arguments {
		if o, ok := overrides[name]; ok {
			args[name] = arg.Tag(o)
		} else {
			args[name] = arg.DefaultValue()
		}
	}
	s.arguments = args
}

// QueryString renders "?script=<script>&<arg>=<value>..." in argument name
// order. Rock arguments are emitted as the rock's value, not its name.
func (s *Scenario) QueryString() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.info == nil {
		return "", ErrNoSchema
	}

	names := make([]string, 0, len(s.arguments))
	for name := range s.arguments {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	b.WriteString("?script=")
	b.WriteString(escape(s.script))
	for _, name := range names {
		v := s.arguments[name].Raw
		if arg := s.info.Lookup(name); arg != nil && arg.Kind() == schema.KindRock && v != "" {
			resolved, ok := s.rocks[v]
			if !ok {
				return "", fmt.Errorf("argument %s: %q: %w", name, v, ErrUnknownRock)
			}
			v = resolved
		}
		b.WriteByte('&')
		b.WriteString(escape(name))
		b.WriteByte('=')
		b.WriteString(escape(v))
	}
	return b.String(), nil
}

// SelectScript switches to script, fetches its schema from src and resets the
// arguments to its defaults with overrides applied. If another selection
// starts before this one completes, this one returns ErrStale and changes
// nothing further.
func (s *Scenario) SelectScript(ctx context.Context, src SchemaSource, script string, overrides map[string]string) error {
	s.mu.Lock()
	s.gen++
	gen := s.gen
	s.script = script
	s.info = nil
	s.state = StateSchemaPending
	s.mu.Unlock()

	info, err := src.ScriptInfo(ctx, script)

	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.gen {
		s.logger.Debug("discarding stale schema", "name", s.name, "script", script)
		return fmt.Errorf("select %s: %w", script, ErrStale)
	}
	if err != nil {
		s.state = StateUninitialized
		return fmt.Errorf("select %s: %w", script, err)
	}
	s.info = info
	s.applyDefaults(overrides)
	s.state = StateSchemaLoaded
	s.logger.Debug("script selected", "name", s.name, "script", script, "arguments", len(s.arguments))
	return nil
}

// Put saves the scenario's script and arguments under its name.
func (s *Scenario) Put(ctx context.Context, b Backend) error {
	s.mu.Lock()
	name := s.name
	payload := Payload{Script: s.script, Arguments: copyArgs(s.arguments)}
	prev := s.state
	s.state = StatePersisting
	s.mu.Unlock()

	err := s.put(ctx, b, name, payload)

	s.mu.Lock()
	if s.state == StatePersisting {
		s.state = prev
		if prev == StateEditing {
			s.state = StateSchemaLoaded
		}
	}
	s.mu.Unlock()

	if err != nil {
		s.logger.Error("save scenario", "name", name, "err", err)
		return err
	}
	s.logger.Info("scenario saved", "name", name, "script", payload.Script)
	return nil
}

func (s *Scenario) put(ctx context.Context, b Backend, name string, p Payload) error {
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("encode scenario %s: %w", name, err)
	}
	return b.Save(ctx, name, data)
}

// Get loads the saved payload for the scenario's name, then selects its
// script through src with the saved arguments as overrides.
func (s *Scenario) Get(ctx context.Context, b Backend, src SchemaSource) error {
	s.mu.Lock()
	name := s.name
	prev := s.state
	s.state = StateReloading
	s.mu.Unlock()

	p, err := load(ctx, b, name)
	if err != nil {
		s.mu.Lock()
		if s.state == StateReloading {
			s.state = prev
		}
		s.mu.Unlock()
		s.logger.Error("load scenario", "name", name, "err", err)
		return err
	}

	overrides := make(map[string]string, len(p.Arguments))
	for k, v := range p.Arguments {
		overrides[k] = v.Raw
	}
	if err := s.SelectScript(ctx, src, p.Script, overrides); err != nil {
		return err
	}
	s.logger.Info("scenario loaded", "name", name, "script", p.Script)
	return nil
}

func load(ctx context.Context, b Backend, name string) (*Payload, error) {
	data, err := b.Load(ctx, name)
	if err != nil {
		return nil, err
	}
	var p Payload
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("decode scenario %s: %w", name, err)
	}
	if p.Script == "" {
		return nil, fmt.Errorf("decode scenario %s: no script", name)
	}
	return &p, nil
}

func copyArgs(in map[string]schema.Value) map[string]schema.Value {
	out := make(map[string]schema.Value, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

// escape percent-encodes s like JavaScript's encodeURIComponent.
func escape(s string) string {
	const hex = "0123456789ABCDEF"
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		if unreserved(c) {
			b.WriteByte(c)
			continue
		}
		b.WriteByte('%')
		b.WriteByte(hex[c>>4])
		b.WriteByte(hex[c&0x0F])
	}
	return b.String()
}

func unreserved(c byte) bool {
	switch {
	case 'a' <= c && c <= 'z', 'A' <= c && c <= 'Z', '0' <= c && c <= '9':
		return true
	}
	return strings.IndexByte("-_.!~*'()", c) >= 0
}

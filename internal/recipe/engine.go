package recipe

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	lua "github.com/yuin/gopher-lua"

	"modelr/internal/scenario"
)

// DefaultTimeout bounds a recipe run when the engine has no timeout set.
const DefaultTimeout = 30 * time.Second

// Capture is a query string recorded by scenario.capture.
type Capture struct {
	Label string `json:"label,omitempty"`
	Query string `json:"query"`
}

// Result is the outcome of one recipe run.
type Result struct {
	OK       bool      `json:"ok"`
	Error    string    `json:"error,omitempty"`
	Logs     []string  `json:"logs"`
	Captures []Capture `json:"captures"`
	Duration string    `json:"duration"`
}

// Engine runs Lua recipes against a scenario in a sandboxed VM.
type Engine struct {
	src     scenario.SchemaSource
	timeout time.Duration
	logger  *slog.Logger
}

// NewEngine creates an engine. src serves scenario.select and may be nil,
// in which case recipes cannot switch scripts.
func NewEngine(src scenario.SchemaSource, timeout time.Duration, logger *slog.Logger) *Engine {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Engine{
		src:     src,
		timeout: timeout,
		logger:  logger.With("component", "recipe"),
	}
}

// run holds per-execution state shared with the Lua bindings.
type run struct {
	ctx      context.Context
	sc       *scenario.Scenario
	src      scenario.SchemaSource
	logger   *slog.Logger
	mu       sync.Mutex
	logs     []string
	captures []Capture
}

// Run executes code against sc. Changes made by the recipe stay on sc.
func (e *Engine) Run(ctx context.Context, sc *scenario.Scenario, code string) *Result {
	start := time.Now()

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	L := newSandbox()
	defer L.Close()
	L.SetContext(ctx)

	r := &run{ctx: ctx, sc: sc, src: e.src, logger: e.logger}
	registerScenarioModule(L, r)
	L.SetGlobal("log", L.NewFunction(r.log))

	e.logger.Debug("running recipe", "scenario", sc.Name(), "code_len", len(code))

	err := L.DoString(code)
	res := &Result{
		OK:       err == nil,
		Logs:     r.logs,
		Captures: r.captures,
		Duration: time.Since(start).String(),
	}
	if err != nil {
		res.Error = e.describe(ctx, err)
		e.logger.Warn("recipe failed", "scenario", sc.Name(), "err", res.Error)
		return res
	}
	e.logger.Debug("recipe complete", "scenario", sc.Name(), "captures", len(r.captures), "duration", res.Duration)
	return res
}

func (e *Engine) describe(ctx context.Context, err error) string {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) || strings.Contains(err.Error(), "context deadline exceeded") {
		return fmt.Sprintf("timeout (%s)", e.timeout)
	}
	return err.Error()
}

// newSandbox returns a state with the standard libraries minus anything that
// can touch the host or load code.
func newSandbox() *lua.LState {
	L := lua.NewState(lua.Options{SkipOpenLibs: false})
	L.SetGlobal("os", lua.LNil)
	L.SetGlobal("io", lua.LNil)
	L.SetGlobal("loadfile", lua.LNil)
	L.SetGlobal("dofile", lua.LNil)
	L.SetGlobal("require", lua.LNil)
	L.SetGlobal("load", lua.LNil)
	L.SetGlobal("loadstring", lua.LNil)
	L.SetGlobal("debug", lua.LNil)
	L.SetGlobal("package", lua.LNil)
	return L
}

// log(msg)
func (r *run) log(L *lua.LState) int {
	msg := L.CheckString(1)
	r.mu.Lock()
	r.logs = append(r.logs, msg)
	r.mu.Unlock()
	r.logger.Info("recipe log", "msg", msg)
	return 0
}

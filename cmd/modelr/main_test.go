package main

import (
	"bytes"
	"context"
	"io"
	"maps"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
)

const wedgeHelp = `{"description": "Wedge model", "arguments": {
	"theta": {"name": "theta", "type": "float", "default": 0, "required": false, "help": "Angle"},
	"Rock1": {"name": "Rock1", "type": "rock_properties_type", "default": "shale", "required": true, "help": "Upper rock"},
	"title": {"name": "title", "type": "str", "default": "Wedge", "required": false, "help": "Title"}
}}`

// fakeModelr serves the plotting server and scenario backend endpoints.
func fakeModelr(t *testing.T) *httptest.Server {
	t.Helper()
	var mu sync.Mutex
	saved := make(map[string]string)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/available_scripts.json":
			w.Write([]byte(`[["wedge.py", "Wedge model\nMore text"]]`))
		case "/script_help.json":
			if r.URL.Query().Get("script") != "wedge.py" {
				http.Error(w, "unknown script", http.StatusInternalServerError)
				return
			}
			w.Write([]byte(wedgeHelp))
		case "/plot.jpeg":
			w.Write([]byte("JPEG:" + r.URL.RawQuery))
		case "/save_scenario":
			mu.Lock()
			defer mu.Unlock()
			if r.Method == http.MethodPost {
				r.ParseForm()
				saved[r.PostForm.Get("name")] = r.PostForm.Get("json")
				return
			}
			data, ok := saved[r.URL.Query().Get("name")]
			if !ok {
				http.NotFound(w, r)
				return
			}
			w.Write([]byte(data))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func testConfig(t *testing.T, srv *httptest.Server) string {
	t.Helper()
	dir := t.TempDir()
	body := "plot_server:\n  hostname: " + srv.URL + "\n" +
		"workspace:\n  path: " + filepath.Join(dir, "ws.db") + "\n" +
		"log:\n  level: error\n" +
		"rocks:\n" +
		"  - {name: shale, vp: 2400, vs: 1200, rho: 2.3}\n" +
		"  - {name: granite, vp: 5500, vs: 3000, rho: 2.7}\n"
	path := filepath.Join(dir, "modelr.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func runCLI(t *testing.T, cfgPath string, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(append([]string{"--config", cfgPath}, args...))
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func mustRun(t *testing.T, cfgPath string, args ...string) string {
	t.Helper()
	out, err := runCLI(t, cfgPath, args...)
	if err != nil {
		t.Fatalf("modelr %s: %v", strings.Join(args, " "), err)
	}
	return out
}

func TestScenarioWorkflow(t *testing.T) {
	srv := fakeModelr(t)
	cfg := testConfig(t, srv)

	if out := mustRun(t, cfg, "new", "s1", "--script", "wedge.py"); out != "s1\n" {
		t.Errorf("new = %q", out)
	}
	mustRun(t, cfg, "set", "theta", "30")
	mustRun(t, cfg, "set", "title", "a b")

	want := "?script=wedge.py&Rock1=2400%2C1200%2C2.3&theta=30&title=a%20b"
	if out := mustRun(t, cfg, "qs"); out != want+"\n" {
		t.Errorf("qs = %q, want %q", out, want)
	}
	if out := mustRun(t, cfg, "qs", "--url"); out != srv.URL+"/plot.jpeg"+want+"\n" {
		t.Errorf("qs --url = %q", out)
	}

	if _, err := runCLI(t, cfg, "set", "Rock1", "basalt"); err == nil {
		t.Error("set unknown rock: expected error")
	}
	if _, err := runCLI(t, cfg, "set", "nope", "1"); err == nil {
		t.Error("set unknown argument: expected error")
	}

	mustRun(t, cfg, "put")
	mustRun(t, cfg, "rm", "s1")
	if out := mustRun(t, cfg, "ls"); strings.Contains(out, "s1") {
		t.Errorf("ls after rm = %q", out)
	}

	if out := mustRun(t, cfg, "get", "s1"); out != "s1\twedge.py\n" {
		t.Errorf("get = %q", out)
	}
	show := mustRun(t, cfg, "show")
	for _, s := range []string{"script: wedge.py", "theta", "30", "a b"} {
		if !strings.Contains(show, s) {
			t.Errorf("show missing %q:\n%s", s, show)
		}
	}

	mustRun(t, cfg, "defaults")
	if out := mustRun(t, cfg, "qs"); !strings.Contains(out, "theta=0") {
		t.Errorf("qs after defaults = %q", out)
	}
}

func TestGetMissing(t *testing.T) {
	srv := fakeModelr(t)
	cfg := testConfig(t, srv)

	if _, err := runCLI(t, cfg, "get", "nope"); err == nil {
		t.Error("expected error")
	}
}

func TestNoCurrentScenario(t *testing.T) {
	srv := fakeModelr(t)
	cfg := testConfig(t, srv)

	_, err := runCLI(t, cfg, "show")
	if err == nil || !strings.Contains(err.Error(), "no current scenario") {
		t.Errorf("err = %v, want no current scenario", err)
	}
}

func TestNewGeneratedNameAndUse(t *testing.T) {
	srv := fakeModelr(t)
	cfg := testConfig(t, srv)

	name := strings.TrimSpace(mustRun(t, cfg, "new"))
	if !strings.HasPrefix(name, "scenario-") {
		t.Errorf("generated name = %q", name)
	}
	mustRun(t, cfg, "new", "other")
	if _, err := runCLI(t, cfg, "new", "other"); err == nil {
		t.Error("duplicate new: expected error")
	}

	mustRun(t, cfg, "use", name)
	if out := mustRun(t, cfg, "ls"); !strings.Contains(out, "* "+name) {
		t.Errorf("ls = %q, want %s marked current", out, name)
	}
	if _, err := runCLI(t, cfg, "use", "missing"); err == nil {
		t.Error("use missing: expected error")
	}
}

func TestScriptsAndInfo(t *testing.T) {
	srv := fakeModelr(t)
	cfg := testConfig(t, srv)

	out := mustRun(t, cfg, "scripts")
	if !strings.Contains(out, "wedge.py") || strings.Contains(out, "More text") {
		t.Errorf("scripts = %q", out)
	}

	out = mustRun(t, cfg, "info", "wedge.py")
	for _, s := range []string{"Wedge model", "Rock1", "rock", "theta", "number"} {
		if !strings.Contains(out, s) {
			t.Errorf("info missing %q:\n%s", s, out)
		}
	}
}

func TestRocks(t *testing.T) {
	srv := fakeModelr(t)
	cfg := testConfig(t, srv)

	mustRun(t, cfg, "rock", "add", "sand", "3000", "1800", "2.1", "--description", "clean sand")
	out := mustRun(t, cfg, "rock", "ls")
	for _, s := range []string{"sand", "3000,1800,2.1", "clean sand", "granite"} {
		if !strings.Contains(out, s) {
			t.Errorf("rock ls missing %q:\n%s", s, out)
		}
	}

	mustRun(t, cfg, "new", "s1", "--script", "wedge.py")
	mustRun(t, cfg, "set", "Rock1", "sand")

	mustRun(t, cfg, "rock", "rm", "sand")
	if _, err := runCLI(t, cfg, "qs"); err == nil {
		t.Error("qs with removed rock: expected error")
	}
	if _, err := runCLI(t, cfg, "rock", "add", "x", "fast", "1", "1"); err == nil {
		t.Error("non-numeric vp: expected error")
	}
}

func TestSessionScenarioRocks(t *testing.T) {
	srv := fakeModelr(t)
	cfgPath := testConfig(t, srv)
	mustRun(t, cfgPath, "rock", "add", "sand", "3000", "1800", "2.1")

	cfg, err := loadConfig(cfgPath, true)
	if err != nil {
		t.Fatal(err)
	}
	a := &app{cfgPath: cfgPath, cfg: cfg, logger: newLogger(cfg, io.Discard)}
	s, err := a.open(context.Background(), false)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	got := s.newScenario("s1").Rocks()
	if !maps.Equal(got, s.plot.Rocks()) {
		t.Errorf("scenario rocks = %v, want plot server rocks %v", got, s.plot.Rocks())
	}
	if got["sand"] != "3000,1800,2.1" || got["granite"] != "5500,3000,2.7" {
		t.Errorf("scenario rocks = %v, want workspace and config rocks", got)
	}
}

func TestRunRecipe(t *testing.T) {
	srv := fakeModelr(t)
	cfg := testConfig(t, srv)
	mustRun(t, cfg, "new", "s1", "--script", "wedge.py")

	path := filepath.Join(t.TempDir(), "sweep.lua")
	recipe := `
scenario.set("Rock1", "granite")
for _, th in ipairs({10, 20}) do
  scenario.set("theta", th)
  scenario.capture("theta=" .. th)
end
log("done")
`
	if err := os.WriteFile(path, []byte(recipe), 0o644); err != nil {
		t.Fatal(err)
	}

	out := mustRun(t, cfg, "run", path)
	for _, s := range []string{"log: done", "theta=10\t?script=wedge.py&Rock1=5500%2C3000%2C2.7&theta=10", "theta=20"} {
		if !strings.Contains(out, s) {
			t.Errorf("run output missing %q:\n%s", s, out)
		}
	}
	if show := mustRun(t, cfg, "show"); !strings.Contains(show, "granite") {
		t.Errorf("recipe changes not saved:\n%s", show)
	}

	bad := filepath.Join(t.TempDir(), "bad.lua")
	os.WriteFile(bad, []byte(`scenario.set("theta", "steep")`), 0o644)
	if _, err := runCLI(t, cfg, "run", bad); err == nil {
		t.Error("failing recipe: expected error")
	}
}

func TestPlot(t *testing.T) {
	srv := fakeModelr(t)
	cfg := testConfig(t, srv)
	mustRun(t, cfg, "new", "s1", "--script", "wedge.py")

	img := filepath.Join(t.TempDir(), "out.jpeg")
	mustRun(t, cfg, "plot", "-o", img)
	data, err := os.ReadFile(img)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(string(data), "JPEG:script=wedge.py") {
		t.Errorf("image = %q", data)
	}
}

func TestVersion(t *testing.T) {
	out, err := runCLI(t, filepath.Join(t.TempDir(), "missing.yaml"), "version")
	if err != nil {
		t.Fatal(err)
	}
	if out != "modelr dev\n" {
		t.Errorf("version = %q", out)
	}
}

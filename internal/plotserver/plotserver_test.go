package plotserver

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"modelr/internal/remote"
	"modelr/internal/schema"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/available_scripts.json":
			if r.URL.Query().Get("type") != "plot" {
				w.Write([]byte("null"))
				return
			}
			w.Write([]byte(`[["wedge.py", "A wedge"], ["ava.py", null]]`))
		case "/script_help.json":
			switch r.URL.Query().Get("script") {
			case "wedge.py":
				w.Write([]byte(`{"description": "A wedge", "arguments": {"theta": {"type": "float", "default": 0}}}`))
			case "broken.py":
				w.Write([]byte(`<html>`))
			default:
				http.Error(w, "no such script", http.StatusInternalServerError)
			}
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestScripts(t *testing.T) {
	srv := newTestServer(t)
	p := New(srv.URL, nil, WithScriptType("plot"), WithLogger(testLogger()))

	docs, err := p.Scripts(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(docs) != 2 {
		t.Fatalf("docs = %d, want 2", len(docs))
	}
	if docs[0].Script != "wedge.py" || docs[0].Doc != "A wedge" {
		t.Errorf("docs[0] = %+v", docs[0])
	}
	if docs[1].Script != "ava.py" || docs[1].Doc != "" {
		t.Errorf("docs[1] = %+v", docs[1])
	}
}

func TestScriptsWithoutType(t *testing.T) {
	srv := newTestServer(t)
	p := New(srv.URL, nil, WithLogger(testLogger()))

	docs, err := p.Scripts(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(docs) != 0 {
		t.Errorf("docs = %v, want none", docs)
	}
}

func TestScriptInfo(t *testing.T) {
	srv := newTestServer(t)
	p := New(srv.URL, nil, WithScriptType("plot"), WithLogger(testLogger()))
	ctx := context.Background()

	info, err := p.ScriptInfo(ctx, "wedge.py")
	if err != nil {
		t.Fatal(err)
	}
	if info.Description != "A wedge" {
		t.Errorf("description = %q", info.Description)
	}
	if arg := info.Lookup("theta"); arg == nil || arg.Kind() != schema.KindNumber {
		t.Errorf("theta = %+v", arg)
	}

	_, err = p.ScriptInfo(ctx, "missing.py")
	var se *remote.StatusError
	if !errors.As(err, &se) || se.Code != http.StatusInternalServerError {
		t.Errorf("missing script err = %v, want status 500", err)
	}

	if _, err := p.ScriptInfo(ctx, "broken.py"); !errors.Is(err, remote.ErrMalformedResponse) {
		t.Errorf("broken script err = %v, want ErrMalformedResponse", err)
	}
}

func TestRocksCopied(t *testing.T) {
	src := map[string]string{"granite": "5500,3000,2.7"}
	p := New("http://example", src)

	src["granite"] = "changed"
	if got := p.Rocks()["granite"]; got != "5500,3000,2.7" {
		t.Errorf("rock mutated through constructor argument: %q", got)
	}

	out := p.Rocks()
	out["granite"] = "changed"
	if got := p.Rocks()["granite"]; got != "5500,3000,2.7" {
		t.Errorf("rock mutated through accessor: %q", got)
	}
}

func TestWithTimeout(t *testing.T) {
	p := New("http://example", nil, WithTimeout(5*time.Second))
	hc, ok := p.http.(*http.Client)
	if !ok {
		t.Fatalf("http = %T, want *http.Client", p.http)
	}
	if hc.Timeout != 5*time.Second {
		t.Errorf("timeout = %v, want 5s", hc.Timeout)
	}

	custom := &http.Client{}
	p = New("http://example", nil, WithTimeout(5*time.Second), WithHTTPClient(custom))
	if p.http != custom {
		t.Error("WithHTTPClient not used")
	}
}

func TestPlotURL(t *testing.T) {
	p := New("http://plots/", nil, WithScriptType("plot"))
	if got, want := p.PlotURL("?script=wedge.py&theta=10"), "http://plots/plot.jpeg?script=wedge.py&theta=10&type=plot"; got != want {
		t.Errorf("PlotURL = %q, want %q", got, want)
	}
	p = New("http://plots", nil)
	if got, want := p.PlotURL("?script=a.py"), "http://plots/plot.jpeg?script=a.py"; got != want {
		t.Errorf("PlotURL = %q, want %q", got, want)
	}
}

func TestPlot(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/plot.jpeg" || r.URL.Query().Get("script") != "wedge.py" {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "image/jpeg")
		w.Write([]byte{0xFF, 0xD8, 0xFF})
	}))
	defer srv.Close()
	p := New(srv.URL, nil, WithLogger(testLogger()))

	img, err := p.Plot(context.Background(), "?script=wedge.py")
	if err != nil {
		t.Fatal(err)
	}
	if len(img) != 3 || img[0] != 0xFF {
		t.Errorf("img = %x", img)
	}
	if _, err := p.Plot(context.Background(), "?script=other.py"); err == nil {
		t.Error("expected error for bad request")
	}
}

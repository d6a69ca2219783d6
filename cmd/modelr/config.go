package main

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"modelr/internal/rock"
)

const defaultConfigPath = "modelr.yaml"

type Config struct {
	PlotServer struct {
		Hostname   string `yaml:"hostname"`
		ScriptType string `yaml:"script_type"`
		Timeout    string `yaml:"timeout"`
	} `yaml:"plot_server"`
	Backend struct {
		URL string `yaml:"url"`
	} `yaml:"backend"`
	Workspace struct {
		Path string `yaml:"path"`
	} `yaml:"workspace"`
	Rocks []rock.Rock `yaml:"rocks"`
	MQTT  struct {
		Enabled     bool   `yaml:"enabled"`
		Broker      string `yaml:"broker"`
		Username    string `yaml:"username"`
		Password    string `yaml:"password"`
		TopicPrefix string `yaml:"topic_prefix"`
	} `yaml:"mqtt"`
	WebSocket struct {
		Enabled bool   `yaml:"enabled"`
		URL     string `yaml:"url"`
	} `yaml:"websocket"`
	Recipe struct {
		Timeout string `yaml:"timeout"`
	} `yaml:"recipe"`
	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`
}

func (c *Config) validate() error {
	if c.PlotServer.Hostname == "" {
		return fmt.Errorf("plot_server.hostname is required")
	}
	if _, err := time.ParseDuration(c.PlotServer.Timeout); err != nil {
		return fmt.Errorf("plot_server.timeout: %w", err)
	}
	if _, err := time.ParseDuration(c.Recipe.Timeout); err != nil {
		return fmt.Errorf("recipe.timeout: %w", err)
	}
	if c.MQTT.Enabled && c.MQTT.Broker == "" {
		return fmt.Errorf("mqtt.broker is required when mqtt is enabled")
	}
	if c.WebSocket.Enabled && c.WebSocket.URL == "" {
		return fmt.Errorf("websocket.url is required when websocket is enabled")
	}
	seen := make(map[string]bool, len(c.Rocks))
	for _, r := range c.Rocks {
		if err := r.Validate(); err != nil {
			return fmt.Errorf("rocks: %w", err)
		}
		if seen[r.Name] {
			return fmt.Errorf("rocks: duplicate rock %q", r.Name)
		}
		seen[r.Name] = true
	}
	return nil
}

// plotTimeout and recipeTimeout are only called after validate.
func (c *Config) plotTimeout() time.Duration {
	d, _ := time.ParseDuration(c.PlotServer.Timeout)
	return d
}

func (c *Config) recipeTimeout() time.Duration {
	d, _ := time.ParseDuration(c.Recipe.Timeout)
	return d
}

// loadConfig reads the YAML config at path. A missing file is an error only
// when the path was given explicitly; otherwise the defaults are used.
func loadConfig(path string, explicit bool) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if explicit || !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("read config: %w", err)
		}
		data = nil
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if cfg.PlotServer.Hostname == "" {
		cfg.PlotServer.Hostname = "http://127.0.0.1:8081"
	}
	if cfg.PlotServer.Timeout == "" {
		cfg.PlotServer.Timeout = "30s"
	}
	if cfg.Backend.URL == "" {
		cfg.Backend.URL = cfg.PlotServer.Hostname
	}
	if cfg.Workspace.Path == "" {
		cfg.Workspace.Path = "modelr.db"
	}
	if cfg.MQTT.TopicPrefix == "" {
		cfg.MQTT.TopicPrefix = "modelr"
	}
	if cfg.Recipe.Timeout == "" {
		cfg.Recipe.Timeout = "30s"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "warn"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}
	return &cfg, nil
}

// newLogger builds the process logger. Command output owns stdout, so logs
// go to w, normally stderr.
func newLogger(cfg *Config, w io.Writer) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(cfg.Log.Level) {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelWarn
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	switch strings.ToLower(cfg.Log.Format) {
	case "json":
		handler = slog.NewJSONHandler(w, opts)
	default:
		handler = slog.NewTextHandler(w, opts)
	}
	return slog.New(handler)
}

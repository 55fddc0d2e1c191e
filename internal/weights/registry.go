// Package weights manages the runtime-tunable weight tables consumed by the
// conflict detector and position sizer. The backing YAML file is watched and
// reloaded in place; consumers always read a consistent snapshot.
package weights

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"fusor/internal/logger"

	"github.com/fsnotify/fsnotify"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const fileSchema = `{
  "type": "object",
  "properties": {
    "analyzers": {
      "type": "object",
      "additionalProperties": {"type": "number", "minimum": 0}
    },
    "sizing_methods": {
      "type": "object",
      "additionalProperties": {"type": "number", "minimum": 0}
    }
  }
}`

// Snapshot is an immutable view of the weight tables. Version increases on
// every successful reload.
type Snapshot struct {
	Version       int64
	LoadedAt      time.Time
	Analyzers     map[string]float64
	SizingMethods map[string]float64
}

// ChangeListener fires after a successful reload.
type ChangeListener func(Snapshot)

// Registry loads the weights file and keeps it fresh.
type Registry struct {
	path   string
	v      *viper.Viper
	schema *jsonschema.Schema

	mu        sync.RWMutex
	snapshot  Snapshot
	listeners []ChangeListener
}

// NewRegistry reads the weights file and starts watching it for updates.
func NewRegistry(path string) (*Registry, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("weights registry requires path")
	}
	schema, err := jsonschema.CompileString("weights.json", fileSchema)
	if err != nil {
		return nil, fmt.Errorf("compile weights schema failed: %w", err)
	}
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read weights file failed: %w", err)
	}
	r := &Registry{path: path, v: v, schema: schema}
	if err := r.reload(); err != nil {
		return nil, err
	}
	v.OnConfigChange(func(evt fsnotify.Event) {
		if err := r.reload(); err != nil {
			logger.Errorf("weights reload failed: %v", err)
			return
		}
		r.notifyListeners()
	})
	v.WatchConfig()
	return r, nil
}

// Static builds a registry backed by fixed tables, with no file watch.
// Used when no weights file is configured and in tests.
func Static(analyzers, sizingMethods map[string]float64) *Registry {
	return &Registry{
		snapshot: Snapshot{
			Version:       1,
			LoadedAt:      time.Now().UTC(),
			Analyzers:     cloneTable(analyzers),
			SizingMethods: cloneTable(sizingMethods),
		},
	}
}

// Snapshot returns the current weight tables.
func (r *Registry) Snapshot() Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return cloneSnapshot(r.snapshot)
}

// OnChange registers a listener fired after each successful reload.
func (r *Registry) OnChange(fn ChangeListener) {
	if fn == nil {
		return
	}
	r.mu.Lock()
	r.listeners = append(r.listeners, fn)
	r.mu.Unlock()
}

func (r *Registry) reload() error {
	settings := r.v.AllSettings()
	doc, err := normalizeDocument(settings)
	if err != nil {
		return err
	}
	if err := r.schema.Validate(doc); err != nil {
		return fmt.Errorf("weights file failed schema check (%s): %w", r.path, err)
	}
	var file struct {
		Analyzers     map[string]float64 `mapstructure:"analyzers"`
		SizingMethods map[string]float64 `mapstructure:"sizing_methods"`
	}
	if err := r.v.Unmarshal(&file); err != nil {
		return fmt.Errorf("parse weights file failed: %w", err)
	}
	r.mu.Lock()
	r.snapshot = Snapshot{
		Version:       r.snapshot.Version + 1,
		LoadedAt:      time.Now().UTC(),
		Analyzers:     cloneTable(file.Analyzers),
		SizingMethods: cloneTable(file.SizingMethods),
	}
	version := r.snapshot.Version
	r.mu.Unlock()
	logger.Infof("weights loaded path=%s version=%d", r.path, version)
	return nil
}

func (r *Registry) notifyListeners() {
	r.mu.RLock()
	listeners := make([]ChangeListener, len(r.listeners))
	copy(listeners, r.listeners)
	snap := cloneSnapshot(r.snapshot)
	r.mu.RUnlock()
	for _, fn := range listeners {
		fn(snap)
	}
}

// normalizeDocument round-trips viper settings through YAML so nested maps
// come out as map[string]any, which is what the schema validator expects.
func normalizeDocument(settings map[string]any) (any, error) {
	raw, err := yaml.Marshal(settings)
	if err != nil {
		return nil, fmt.Errorf("normalize weights document failed: %w", err)
	}
	var doc any
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("normalize weights document failed: %w", err)
	}
	return doc, nil
}

func cloneSnapshot(s Snapshot) Snapshot {
	return Snapshot{
		Version:       s.Version,
		LoadedAt:      s.LoadedAt,
		Analyzers:     cloneTable(s.Analyzers),
		SizingMethods: cloneTable(s.SizingMethods),
	}
}

func cloneTable(src map[string]float64) map[string]float64 {
	if len(src) == 0 {
		return map[string]float64{}
	}
	out := make(map[string]float64, len(src))
	for k, v := range src {
		out[k] = v
	}
	return out
}

// Package themes holds the colour theme catalog and the current theme,
// persisted as a setting.
package themes

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"budgetcal/internal/core"
	"budgetcal/internal/storage"
)

// DefaultPrimary is the primary colour when a theme defines none.
const DefaultPrimary = "#2563eb"

const (
	fallbackLight = core.DefaultTheme
	fallbackDark  = "midnight"
)

var ErrUnknownTheme = errors.New("Thème inconnu")

type Theme struct {
	Key         string            `json:"key"`
	Name        string            `json:"name"`
	Category    string            `json:"category"`
	IsDark      bool              `json:"isDark"`
	Description string            `json:"description"`
	Colors      map[string]string `json:"colors"`
}

type CategoryGroup struct {
	Category string  `json:"category"`
	Themes   []Theme `json:"themes"`
}

// Config is the exported theme configuration.
type Config struct {
	CurrentTheme string           `json:"currentTheme"`
	Themes       map[string]Theme `json:"themes"`
	Timestamp    time.Time        `json:"timestamp"`
}

type Manager struct {
	store  storage.SettingsStore
	logger *slog.Logger
	now    func() time.Time

	mu      sync.RWMutex
	themes  []Theme
	current string
}

// NewManager restores the saved theme. A missing or unknown saved theme
// falls back to light.
func NewManager(ctx context.Context, store storage.SettingsStore, logger *slog.Logger) (*Manager, error) {
	if logger == nil {
		logger = slog.Default()
	}
	m := &Manager{
		store:   store,
		logger:  logger,
		now:     time.Now,
		themes:  append([]Theme(nil), catalog...),
		current: fallbackLight,
	}
	saved, err := store.GetSetting(ctx, storage.SettingTheme)
	switch {
	case errors.Is(err, storage.ErrNotFound):
	case err != nil:
		return nil, fmt.Errorf("load theme: %w", err)
	case m.indexLocked(saved) >= 0:
		m.current = saved
	default:
		logger.Warn("Unknown saved theme, using default", "theme", saved)
	}
	return m, nil
}

func (m *Manager) indexLocked(key string) int {
	for i, t := range m.themes {
		if t.Key == key {
			return i
		}
	}
	return -1
}

// List returns every theme in cycling order.
func (m *Manager) List() []Theme {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]Theme(nil), m.themes...)
}

func (m *Manager) Get(key string) (Theme, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if i := m.indexLocked(key); i >= 0 {
		return m.themes[i], true
	}
	return Theme{}, false
}

func (m *Manager) Current() Theme {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.themes[m.indexLocked(m.current)]
}

// Apply makes key the current theme and saves it.
func (m *Manager) Apply(ctx context.Context, key string) (Theme, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	i := m.indexLocked(key)
	if i < 0 {
		return Theme{}, fmt.Errorf("%w: %s", ErrUnknownTheme, key)
	}
	if err := m.store.SetSetting(ctx, storage.SettingTheme, key); err != nil {
		return Theme{}, fmt.Errorf("save theme: %w", err)
	}
	if m.current != key {
		m.logger.Info("Theme changed", "theme", key, "previous", m.current)
	}
	m.current = key
	return m.themes[i], nil
}

func (m *Manager) step(ctx context.Context, delta int) (Theme, error) {
	m.mu.RLock()
	n := len(m.themes)
	next := m.themes[((m.indexLocked(m.current)+delta)%n+n)%n].Key
	m.mu.RUnlock()
	return m.Apply(ctx, next)
}

func (m *Manager) Next(ctx context.Context) (Theme, error)     { return m.step(ctx, 1) }
func (m *Manager) Previous(ctx context.Context) (Theme, error) { return m.step(ctx, -1) }

// ToggleDark switches to a theme of the same category with the opposite
// darkness, or to midnight or light when the category has none.
func (m *Manager) ToggleDark(ctx context.Context) (Theme, error) {
	cur := m.Current()
	want := !cur.IsDark
	target := m.similar(cur, want)
	if target == "" {
		target = fallbackDark
		if !want {
			target = fallbackLight
		}
	}
	return m.Apply(ctx, target)
}

func (m *Manager) similar(cur Theme, wantDark bool) string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, t := range m.themes {
		if t.Key != cur.Key && t.Category == cur.Category && t.IsDark == wantDark {
			return t.Key
		}
	}
	return ""
}

// ByCategory groups themes by category in order of first appearance.
func (m *Manager) ByCategory() []CategoryGroup {
	m.mu.RLock()
	defer m.mu.RUnlock()
	idx := map[string]int{}
	var out []CategoryGroup
	for _, t := range m.themes {
		c := t.Category
		if c == "" {
			c = "Autres"
		}
		i, ok := idx[c]
		if !ok {
			i = len(out)
			idx[c] = i
			out = append(out, CategoryGroup{Category: c})
		}
		out[i].Themes = append(out[i].Themes, t)
	}
	return out
}

// IsDark reports whether key is a dark theme. An empty key checks the
// current theme.
func (m *Manager) IsDark(key string) bool {
	if key == "" {
		return m.Current().IsDark
	}
	t, _ := m.Get(key)
	return t.IsDark
}

// Colors returns the colour map of key, or of light when key is unknown.
func (m *Manager) Colors(key string) map[string]string {
	t, ok := m.Get(key)
	if !ok {
		t, _ = m.Get(fallbackLight)
	}
	out := make(map[string]string, len(t.Colors)+1)
	for k, v := range t.Colors {
		out[k] = v
	}
	if out["primary"] == "" {
		out["primary"] = DefaultPrimary
	}
	return out
}

// Preferred returns the theme matching the system colour scheme: midnight
// when the system is dark and the current theme is light, light in the
// opposite case, the current theme otherwise.
func (m *Manager) Preferred(systemDark bool) string {
	cur := m.Current()
	switch {
	case systemDark && !cur.IsDark:
		return fallbackDark
	case !systemDark && cur.IsDark:
		return fallbackLight
	default:
		return cur.Key
	}
}

func (m *Manager) ExportConfig() ([]byte, error) {
	m.mu.RLock()
	cfg := Config{CurrentTheme: m.current, Themes: make(map[string]Theme, len(m.themes)), Timestamp: m.now()}
	for _, t := range m.themes {
		cfg.Themes[t.Key] = t
	}
	m.mu.RUnlock()
	return json.MarshalIndent(cfg, "", "  ")
}

// ImportConfig merges the themes of data into the catalog and applies its
// current theme when known.
func (m *Manager) ImportConfig(ctx context.Context, data []byte) error {
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return fmt.Errorf("decode theme config: %w", err)
	}
	keys := make([]string, 0, len(cfg.Themes))
	for key := range cfg.Themes {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	m.mu.Lock()
	for _, key := range keys {
		t := cfg.Themes[key]
		t.Key = key
		if i := m.indexLocked(key); i >= 0 {
			m.themes[i] = t
		} else {
			m.themes = append(m.themes, t)
		}
	}
	known := m.indexLocked(cfg.CurrentTheme) >= 0
	m.mu.Unlock()

	if cfg.CurrentTheme != "" && known {
		if _, err := m.Apply(ctx, cfg.CurrentTheme); err != nil {
			return err
		}
	}
	return nil
}

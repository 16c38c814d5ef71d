// Package registry makes the optional application components reachable
// from one shared namespace.
//
// Components are handed over through an explicit Manifest with one nilable
// slot per known name. Export binds the slots that are set and skips the
// others; it only ever adds bindings.
package registry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"sort"
	"sync"
)

// Known component names.
const (
	TransactionManager    = "TransactionManager"
	ChartsManager         = "ChartsManager"
	EnhancedDashboard     = "EnhancedDashboard"
	BudgetPredictionsAI   = "BudgetPredictionsAI"
	AdvancedSearchManager = "AdvancedSearchManager"
	ThemeManager          = "ThemeManager"
)

// Names lists the exported names in their fixed order.
var Names = [...]string{
	TransactionManager,
	ChartsManager,
	EnhancedDashboard,
	BudgetPredictionsAI,
	AdvancedSearchManager,
	ThemeManager,
}

// Manifest has one optional slot per known name. A nil slot, or a slot
// holding a typed nil, means the component is not defined.
type Manifest struct {
	TransactionManager    any
	ChartsManager         any
	EnhancedDashboard     any
	BudgetPredictionsAI   any
	AdvancedSearchManager any
	ThemeManager          any
}

// Entry is a single (name, value) pair of a Manifest.
type Entry struct {
	Name  string
	Value any
}

// Entries returns the six slots in the order of Names.
func (m Manifest) Entries() []Entry {
	return []Entry{
		{TransactionManager, m.TransactionManager},
		{ChartsManager, m.ChartsManager},
		{EnhancedDashboard, m.EnhancedDashboard},
		{BudgetPredictionsAI, m.BudgetPredictionsAI},
		{AdvancedSearchManager, m.AdvancedSearchManager},
		{ThemeManager, m.ThemeManager},
	}
}

// Binder receives exported values. Namespace implements it.
type Binder interface {
	Bind(name string, value any) error
}

// Namespace is a concurrency-safe name to value map shared by reference.
type Namespace struct {
	mu     sync.RWMutex
	values map[string]any
}

// NewNamespace returns an empty namespace.
func NewNamespace() *Namespace {
	return &Namespace{values: make(map[string]any)}
}

// Bind sets name to value, replacing any earlier binding.
func (n *Namespace) Bind(name string, value any) error {
	if name == "" {
		return errors.New("registry: empty name")
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	n.values[name] = value
	return nil
}

// Lookup returns the value bound to name.
func (n *Namespace) Lookup(name string) (any, bool) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	v, ok := n.values[name]
	return v, ok
}

// Names returns the bound names sorted.
func (n *Namespace) Names() []string {
	n.mu.RLock()
	defer n.mu.RUnlock()
	out := make([]string, 0, len(n.values))
	for k := range n.values {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Len returns the number of bindings.
func (n *Namespace) Len() int {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return len(n.values)
}

// Typed looks name up and asserts it to T.
func Typed[T any](n *Namespace, name string) (T, bool) {
	var zero T
	if n == nil {
		return zero, false
	}
	v, ok := n.Lookup(name)
	if !ok {
		return zero, false
	}
	t, ok := v.(T)
	return t, ok
}

// Defined reports whether v is a usable value. It never panics.
func Defined(v any) bool {
	if v == nil {
		return false
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
		return !rv.IsNil()
	}
	return true
}

// Export binds every defined slot of m on b under its own name and logs a
// single info record. Undefined slots are skipped silently. A failure on one
// entry does not stop the others; the per-entry errors are joined.
func Export(ctx context.Context, b Binder, m Manifest, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	var (
		exported []string
		errs     []error
	)
	for _, e := range m.Entries() {
		if !Defined(e.Value) {
			continue
		}
		if err := bindOne(b, e); err != nil {
			errs = append(errs, err)
			continue
		}
		exported = append(exported, e.Name)
	}
	logger.InfoContext(ctx, "Components exported to namespace",
		"exported", exported,
		"count", len(exported))
	return errors.Join(errs...)
}

func bindOne(b Binder, e Entry) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("registry: bind %s: panic: %v", e.Name, r)
		}
	}()
	if err := b.Bind(e.Name, e.Value); err != nil {
		return fmt.Errorf("registry: bind %s: %w", e.Name, err)
	}
	return nil
}

// Package memory is an in-process implementation of the storage ports.
// With a data directory it keeps a JSON snapshot on disk, rewritten after
// every change, so a restart finds the same state.
package memory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"budgetcal/internal/core"
	"budgetcal/internal/storage"
)

const snapshotFile = "budgetcal.json"

type Store struct {
	mu   sync.Mutex
	path string

	items    map[string]core.Transaction
	fixed    core.FixedExpenses
	settings map[string]string
	learning core.LearningData
	filters  map[string]core.SavedFilter
	history  []string

	queue  []storage.SyncItem
	nextID int64
}

// state is the on-disk shape of a Store.
type state struct {
	Transactions  []core.Transaction          `json:"transactions"`
	FixedExpenses core.FixedExpenses          `json:"fixedExpenses"`
	Settings      map[string]string           `json:"settings"`
	Learning      core.LearningData           `json:"learning"`
	Filters       map[string]core.SavedFilter `json:"savedFilters"`
	History       []string                    `json:"searchHistory"`
}

// New returns an empty, non-persistent store.
func New() *Store {
	return &Store{
		items:    map[string]core.Transaction{},
		fixed:    core.DefaultFixedExpenses(),
		settings: map[string]string{},
		learning: core.NewLearningData(),
		filters:  map[string]core.SavedFilter{},
	}
}

// NewFromDir loads the snapshot kept in dir, if any, and persists to it.
func NewFromDir(dir string) (*Store, error) {
	s := New()
	if dir == "" {
		return s, nil
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}
	s.path = filepath.Join(dir, snapshotFile)

	raw, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	var st state
	if err := json.Unmarshal(raw, &st); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	for _, t := range st.Transactions {
		s.items[t.ID] = t
	}
	if st.FixedExpenses != nil {
		s.fixed = st.FixedExpenses.Normalize()
	}
	if st.Settings != nil {
		s.settings = st.Settings
	}
	if st.Learning.LabelToCategory != nil {
		s.learning = st.Learning
	}
	if st.Filters != nil {
		s.filters = st.Filters
	}
	s.history = st.History
	return s, nil
}

// persist writes the snapshot; callers hold mu.
func (s *Store) persist() error {
	if s.path == "" {
		return nil
	}
	st := state{
		Transactions:  s.sortedLocked(),
		FixedExpenses: s.fixed,
		Settings:      s.settings,
		Learning:      s.learning,
		Filters:       s.filters,
		History:       s.history,
	}
	raw, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	return os.Rename(tmp, s.path)
}

func (s *Store) sortedLocked() []core.Transaction {
	out := make([]core.Transaction, 0, len(s.items))
	for _, t := range s.items {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date.Time) {
			return out[i].Date.Before(out[j].Date)
		}
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (s *Store) Close() error { return nil }

// CreateTransaction implements storage.TransactionStore
func (s *Store) CreateTransaction(_ context.Context, t core.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[t.ID]; ok {
		return fmt.Errorf("transaction %s already exists", t.ID)
	}
	s.items[t.ID] = t
	return s.persist()
}

// GetTransaction implements storage.TransactionStore
func (s *Store) GetTransaction(_ context.Context, id string) (core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.items[id]
	if !ok {
		return core.Transaction{}, storage.ErrNotFound
	}
	return t, nil
}

// UpdateTransaction implements storage.TransactionStore
func (s *Store) UpdateTransaction(_ context.Context, t core.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[t.ID]; !ok {
		return storage.ErrNotFound
	}
	s.items[t.ID] = t
	return s.persist()
}

// DeleteTransaction implements storage.TransactionStore
func (s *Store) DeleteTransaction(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[id]; !ok {
		return storage.ErrNotFound
	}
	delete(s.items, id)
	return s.persist()
}

// ListTransactions implements storage.TransactionStore
func (s *Store) ListTransactions(_ context.Context) ([]core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sortedLocked(), nil
}

// ReplaceTransactions implements storage.TransactionStore
func (s *Store) ReplaceTransactions(_ context.Context, txs []core.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = make(map[string]core.Transaction, len(txs))
	for _, t := range txs {
		s.items[t.ID] = t
	}
	return s.persist()
}

// ClearTransactions implements storage.TransactionStore
func (s *Store) ClearTransactions(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = map[string]core.Transaction{}
	return s.persist()
}

// GetFixedExpenses implements storage.FixedExpenseStore
func (s *Store) GetFixedExpenses(_ context.Context) (core.FixedExpenses, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fixed.Normalize(), nil
}

// SaveFixedExpenses implements storage.FixedExpenseStore
func (s *Store) SaveFixedExpenses(_ context.Context, fe core.FixedExpenses) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fixed = fe.Normalize()
	return s.persist()
}

// GetSetting implements storage.SettingsStore
func (s *Store) GetSetting(_ context.Context, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.settings[key]
	if !ok {
		return "", storage.ErrNotFound
	}
	return v, nil
}

// SetSetting implements storage.SettingsStore
func (s *Store) SetSetting(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings[key] = value
	return s.persist()
}

// DeleteSetting implements storage.SettingsStore
func (s *Store) DeleteSetting(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.settings, key)
	return s.persist()
}

// LoadLearning implements storage.LearningStore
func (s *Store) LoadLearning(_ context.Context) (core.LearningData, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := core.NewLearningData()
	for k, v := range s.learning.LabelToCategory {
		out.LabelToCategory[k] = v
	}
	for k, v := range s.learning.UserCorrections {
		out.UserCorrections[k] = v
	}
	for k, v := range s.learning.CategoryStats {
		out.CategoryStats[k] = v
	}
	return out, nil
}

// SaveLearning implements storage.LearningStore
func (s *Store) SaveLearning(_ context.Context, data core.LearningData) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.learning = data
	return s.persist()
}

// ListSavedFilters implements storage.FilterStore
func (s *Store) ListSavedFilters(_ context.Context) ([]core.SavedFilter, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.SavedFilter, 0, len(s.filters))
	for _, f := range s.filters {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}

// SaveFilter implements storage.FilterStore
func (s *Store) SaveFilter(_ context.Context, f core.SavedFilter) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.filters[f.Name] = f
	return s.persist()
}

// DeleteFilter implements storage.FilterStore
func (s *Store) DeleteFilter(_ context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.filters[name]; !ok {
		return storage.ErrNotFound
	}
	delete(s.filters, name)
	return s.persist()
}

// SearchHistory implements storage.FilterStore
func (s *Store) SearchHistory(_ context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.history...), nil
}

// SaveSearchHistory implements storage.FilterStore
func (s *Store) SaveSearchHistory(_ context.Context, history []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = append([]string(nil), history...)
	return s.persist()
}

// EnqueueSync implements storage.SyncQueue. The outbox is never persisted.
func (s *Store) EnqueueSync(_ context.Context, op storage.SyncOperation, transactionID string, payload []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	now := time.Now()
	s.queue = append(s.queue, storage.SyncItem{
		ID:            s.nextID,
		TransactionID: transactionID,
		Operation:     op,
		Payload:       append([]byte(nil), payload...),
		Status:        storage.SyncPending,
		NextAttemptAt: now,
		CreatedAt:     now,
		UpdatedAt:     now,
	})
	return nil
}

// DequeueSyncBatch implements storage.SyncQueue
func (s *Store) DequeueSyncBatch(_ context.Context, limit int, now time.Time) ([]storage.SyncItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []storage.SyncItem
	for _, it := range s.queue {
		if len(out) >= limit {
			break
		}
		if it.Status == storage.SyncPending && !it.NextAttemptAt.After(now) {
			out = append(out, it)
		}
	}
	return out, nil
}

func (s *Store) updateItem(id int64, fn func(*storage.SyncItem)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.queue {
		if s.queue[i].ID == id {
			fn(&s.queue[i])
			s.queue[i].UpdatedAt = time.Now()
			return nil
		}
	}
	return storage.ErrNotFound
}

// MarkSyncProcessing implements storage.SyncQueue
func (s *Store) MarkSyncProcessing(_ context.Context, id int64) error {
	return s.updateItem(id, func(it *storage.SyncItem) { it.Status = storage.SyncProcessing })
}

// MarkSyncComplete implements storage.SyncQueue
func (s *Store) MarkSyncComplete(_ context.Context, id int64) error {
	return s.updateItem(id, func(it *storage.SyncItem) { it.Status = storage.SyncCompleted })
}

// MarkSyncFailed implements storage.SyncQueue
func (s *Store) MarkSyncFailed(_ context.Context, id int64, msg string) error {
	return s.updateItem(id, func(it *storage.SyncItem) {
		it.Status = storage.SyncFailed
		it.Attempts++
		it.LastError = msg
	})
}

// RetrySyncLater implements storage.SyncQueue
func (s *Store) RetrySyncLater(_ context.Context, id int64, msg string, next time.Time) error {
	return s.updateItem(id, func(it *storage.SyncItem) {
		it.Status = storage.SyncPending
		it.Attempts++
		it.LastError = msg
		it.NextAttemptAt = next
	})
}

// ResetStaleProcessing implements storage.SyncQueue
func (s *Store) ResetStaleProcessing(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.queue {
		if s.queue[i].Status == storage.SyncProcessing {
			s.queue[i].Status = storage.SyncPending
		}
	}
	return nil
}

// CleanupCompletedSyncs implements storage.SyncQueue
func (s *Store) CleanupCompletedSyncs(_ context.Context, before time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.queue[:0]
	for _, it := range s.queue {
		if it.Status == storage.SyncCompleted && it.UpdatedAt.Before(before) {
			continue
		}
		kept = append(kept, it)
	}
	s.queue = kept
	return nil
}

// RetryFailedSyncs implements storage.SyncQueue
func (s *Store) RetryFailedSyncs(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	for i := range s.queue {
		if s.queue[i].Status == storage.SyncFailed {
			s.queue[i].Status = storage.SyncPending
			s.queue[i].Attempts = 0
			s.queue[i].NextAttemptAt = now
		}
	}
	return nil
}

// SyncQueueStats implements storage.SyncQueue
func (s *Store) SyncQueueStats(_ context.Context) (storage.SyncQueueStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var st storage.SyncQueueStats
	for _, it := range s.queue {
		switch it.Status {
		case storage.SyncPending:
			st.Pending++
		case storage.SyncProcessing:
			st.Processing++
		case storage.SyncCompleted:
			st.Completed++
		case storage.SyncFailed:
			st.Failed++
		}
	}
	return st, nil
}

var (
	_ storage.Store     = (*Store)(nil)
	_ storage.SyncQueue = (*Store)(nil)
)

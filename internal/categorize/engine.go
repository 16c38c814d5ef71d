// Package categorize suggests a category for a transaction label from
// keyword rules, typical amounts and what it learned from the user.
package categorize

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strings"
	"sync"
	"time"
	"unicode"

	"budgetcal/internal/core"
	"budgetcal/internal/storage"
)

// Suggestion is a proposed category.
type Suggestion struct {
	Category   string  `json:"category"`
	Confidence float64 `json:"confidence"`
	Reason     string  `json:"reason"`
}

// TransactionSource supplies past transactions for similarity matching.
type TransactionSource interface {
	All(ctx context.Context) ([]core.Transaction, error)
}

type Engine struct {
	store  storage.LearningStore
	source TransactionSource
	logger *slog.Logger
	now    func() time.Time

	mu   sync.RWMutex
	data core.LearningData
}

// NewEngine loads the learning data from store. source may be nil.
func NewEngine(ctx context.Context, store storage.LearningStore, source TransactionSource, logger *slog.Logger) (*Engine, error) {
	if logger == nil {
		logger = slog.Default()
	}
	data, err := store.LoadLearning(ctx)
	if err != nil {
		return nil, fmt.Errorf("load learning data: %w", err)
	}
	return &Engine{
		store:  store,
		source: source,
		logger: logger,
		now:    time.Now,
		data:   normalizeData(data),
	}, nil
}

func normalizeData(d core.LearningData) core.LearningData {
	if d.LabelToCategory == nil {
		d.LabelToCategory = map[string]string{}
	}
	if d.UserCorrections == nil {
		d.UserCorrections = map[string]core.Correction{}
	}
	if d.CategoryStats == nil {
		d.CategoryStats = map[string]core.CategoryLearning{}
	}
	return d
}

// NormalizeLabel lowercases label, turns punctuation into spaces, drops
// digits and collapses whitespace.
func NormalizeLabel(label string) string {
	mapped := strings.Map(func(r rune) rune {
		switch {
		case unicode.IsDigit(r):
			return -1
		case unicode.IsLetter(r), r == '_':
			return unicode.ToLower(r)
		default:
			return ' '
		}
	}, label)
	return strings.Join(strings.Fields(mapped), " ")
}

type keywordMatch struct {
	category   string
	confidence float64
	keywords   []string
}

func analyzeKeywords(normalized string) (keywordMatch, bool) {
	best, bestCount := -1, 0
	for i, r := range keywordRules {
		n := 0
		for _, kw := range r.Keywords {
			if strings.Contains(normalized, kw) {
				n++
			}
		}
		if n > bestCount {
			best, bestCount = i, n
		}
	}
	if best < 0 {
		return keywordMatch{}, false
	}
	rule := keywordRules[best]
	var matched []string
	for _, kw := range rule.Keywords {
		if strings.Contains(normalized, kw) {
			matched = append(matched, kw)
		}
	}
	return keywordMatch{
		category:   rule.Category,
		confidence: math.Min(High, round2(Medium+float64(bestCount)*0.1)),
		keywords:   matched,
	}, true
}

// analyzeAmount matches euros against the typical amount patterns. Income
// is always Salaire.
func analyzeAmount(euros float64, typ core.TransactionType) (Suggestion, bool) {
	if typ == core.Income {
		return Suggestion{Category: "Salaire", Confidence: Medium, Reason: "Revenus"}, true
	}
	if euros <= 0 {
		return Suggestion{}, false
	}
	var best Suggestion
	found := false
	for _, p := range amountPatterns {
		if euros < p.Min || euros > p.Max {
			continue
		}
		closest := p.Typical[0]
		for _, v := range p.Typical {
			if math.Abs(euros-v) < math.Abs(euros-closest) {
				closest = v
			}
		}
		score := 1 - math.Abs(euros-closest)/closest
		conf := math.Max(Low, score*Medium)
		if !found || conf > best.Confidence {
			best = Suggestion{
				Category:   p.Category,
				Confidence: conf,
				Reason:     fmt.Sprintf("Montant typique pour cette catégorie (%s€)", formatEuros(euros)),
			}
			found = true
		}
	}
	return best, found
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func formatEuros(v float64) string {
	return strings.TrimSuffix(strings.TrimRight(fmt.Sprintf("%.2f", v), "0"), ".")
}

// similarity is the share of words of a found in b, by substring either way.
func similarity(a, b string) float64 {
	wa, wb := strings.Fields(a), strings.Fields(b)
	if len(wa) == 0 || len(wb) == 0 {
		return 0
	}
	common := 0
	for _, x := range wa {
		for _, y := range wb {
			if strings.Contains(x, y) || strings.Contains(y, x) {
				common++
				break
			}
		}
	}
	return float64(common) / float64(max(len(wa), len(wb)))
}

type candidate struct {
	label    string
	category string
}

func (e *Engine) similar(ctx context.Context, normalized string) (Suggestion, bool) {
	var cands []candidate
	e.mu.RLock()
	for label, category := range e.data.LabelToCategory {
		cands = append(cands, candidate{label, category})
	}
	e.mu.RUnlock()
	if e.source != nil {
		txs, err := e.source.All(ctx)
		if err != nil {
			e.logger.WarnContext(ctx, "Failed to load transactions for similarity", "error", err)
		}
		for _, t := range txs {
			cands = append(cands, candidate{t.Label, t.Category})
		}
	}

	bestSim, bestIdx := 0.0, -1
	for i, c := range cands {
		if s := similarity(normalized, NormalizeLabel(c.label)); s > 0.7 && s > bestSim {
			bestSim, bestIdx = s, i
		}
	}
	if bestIdx < 0 {
		return Suggestion{}, false
	}
	return Suggestion{
		Category:   cands[bestIdx].category,
		Confidence: math.Min(High, bestSim*Medium),
		Reason:     fmt.Sprintf("Similaire à: %q", cands[bestIdx].label),
	}, true
}

// Suggest proposes a category for label. A zero amount skips the amount
// rules for expenses.
func (e *Engine) Suggest(ctx context.Context, label string, amount core.Money, typ core.TransactionType) Suggestion {
	normalized := NormalizeLabel(label)

	e.mu.RLock()
	learned, ok := e.data.LabelToCategory[normalized]
	e.mu.RUnlock()
	if ok && normalized != "" {
		return Suggestion{Category: learned, Confidence: High, Reason: "Correspondance exacte apprise"}
	}

	if km, ok := analyzeKeywords(normalized); ok {
		return Suggestion{
			Category:   km.category,
			Confidence: km.confidence,
			Reason:     "Mots-clés détectés: " + strings.Join(km.keywords, ", "),
		}
	}

	if amount.Cents > 0 {
		if s, ok := analyzeAmount(amount.Euros(), typ); ok {
			if typ == core.Income {
				s.Reason = fmt.Sprintf("Montant typique pour cette catégorie (%s€)", formatEuros(amount.Euros()))
			}
			return s
		}
	}

	if s, ok := e.similar(ctx, normalized); ok {
		return s
	}

	if typ == core.Income {
		return Suggestion{Category: "Salaire", Confidence: Low, Reason: "Catégorie par défaut"}
	}
	return Suggestion{Category: "Autres", Confidence: Low, Reason: "Catégorie par défaut"}
}

// Learn records that label belongs to category. A non-empty suggested that
// differs from category is counted as a correction.
func (e *Engine) Learn(ctx context.Context, label, category, suggested string) error {
	normalized := NormalizeLabel(label)
	if normalized == "" || strings.TrimSpace(category) == "" {
		return fmt.Errorf("learn: %w", core.ErrLabelRequired)
	}
	now := e.now().UTC()

	e.mu.Lock()
	e.data.LabelToCategory[normalized] = category
	if suggested != "" && suggested != category {
		e.data.UserCorrections[normalized] = core.Correction{
			Label:     normalized,
			Suggested: suggested,
			Chosen:    category,
			At:        now,
		}
	}
	stats := e.data.CategoryStats[category]
	stats.Count++
	stats.LastUsed = now
	e.data.CategoryStats[category] = stats
	snapshot := cloneData(e.data)
	e.mu.Unlock()

	if err := e.store.SaveLearning(ctx, snapshot); err != nil {
		return fmt.Errorf("save learning data: %w", err)
	}
	e.logger.DebugContext(ctx, "Learned category", "label", normalized, "category", category)
	return nil
}

// SuggestAndLearn suggests and learns the result when it is highly confident.
func (e *Engine) SuggestAndLearn(ctx context.Context, label string, amount core.Money, typ core.TransactionType) (Suggestion, error) {
	s := e.Suggest(ctx, label, amount, typ)
	if s.Confidence >= High {
		if err := e.Learn(ctx, label, s.Category, ""); err != nil {
			return s, err
		}
	}
	return s, nil
}

// Suggestions returns the main suggestion and up to two alternatives,
// sorted by confidence.
func (e *Engine) Suggestions(ctx context.Context, label string, amount core.Money, typ core.TransactionType, limit int) []Suggestion {
	if limit <= 0 {
		limit = 3
	}
	main := e.Suggest(ctx, label, amount, typ)
	out := []Suggestion{main}
	seen := map[string]bool{main.Category: true}

	if km, ok := analyzeKeywords(NormalizeLabel(label)); ok && !seen[km.category] {
		seen[km.category] = true
		out = append(out, Suggestion{
			Category:   km.category,
			Confidence: km.confidence * 0.8,
			Reason:     "Alternative: Mots-clés détectés: " + strings.Join(km.keywords, ", "),
		})
	}
	if am, ok := analyzeAmount(amount.Euros(), typ); ok && !seen[am.Category] {
		out = append(out, Suggestion{
			Category:   am.Category,
			Confidence: am.Confidence * 0.7,
			Reason:     "Alternative: " + am.Reason,
		})
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Confidence > out[j].Confidence })
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

// CategoryCount is one entry of Statistics.TopCategories.
type CategoryCount struct {
	Category string `json:"category"`
	Count    int    `json:"count"`
}

type Statistics struct {
	TotalLearned  int                              `json:"totalLearned"`
	Corrections   int                              `json:"corrections"`
	AccuracyRate  float64                          `json:"accuracyRate"`
	CategoryStats map[string]core.CategoryLearning `json:"categoryStats"`
	TopCategories []CategoryCount                  `json:"topCategories"`
}

// Statistics reports what was learned. The accuracy rate is 100 until the
// first correction.
func (e *Engine) Statistics() Statistics {
	e.mu.RLock()
	defer e.mu.RUnlock()

	s := Statistics{
		TotalLearned:  len(e.data.LabelToCategory),
		Corrections:   len(e.data.UserCorrections),
		AccuracyRate:  100,
		CategoryStats: make(map[string]core.CategoryLearning, len(e.data.CategoryStats)),
	}
	if s.Corrections > 0 && s.TotalLearned > 0 {
		s.AccuracyRate = float64(s.TotalLearned-s.Corrections) / float64(s.TotalLearned) * 100
	}
	for c, st := range e.data.CategoryStats {
		s.CategoryStats[c] = st
		s.TopCategories = append(s.TopCategories, CategoryCount{c, st.Count})
	}
	sort.Slice(s.TopCategories, func(i, j int) bool {
		a, b := s.TopCategories[i], s.TopCategories[j]
		if a.Count != b.Count {
			return a.Count > b.Count
		}
		return a.Category < b.Category
	})
	if len(s.TopCategories) > 5 {
		s.TopCategories = s.TopCategories[:5]
	}
	return s
}

// Reset forgets everything learned.
func (e *Engine) Reset(ctx context.Context) error {
	e.mu.Lock()
	e.data = core.NewLearningData()
	e.mu.Unlock()
	if err := e.store.SaveLearning(ctx, core.NewLearningData()); err != nil {
		return fmt.Errorf("reset learning data: %w", err)
	}
	e.logger.InfoContext(ctx, "Learning data reset")
	return nil
}

// ExportLearning returns the learning data as indented JSON.
func (e *Engine) ExportLearning() ([]byte, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return json.MarshalIndent(e.data, "", "  ")
}

// ImportLearning merges raw into the current data. Imported entries win.
func (e *Engine) ImportLearning(ctx context.Context, raw []byte) error {
	var in core.LearningData
	if err := json.Unmarshal(raw, &in); err != nil {
		return fmt.Errorf("decode learning data: %w", err)
	}
	e.mu.Lock()
	for k, v := range in.LabelToCategory {
		e.data.LabelToCategory[k] = v
	}
	for k, v := range in.UserCorrections {
		e.data.UserCorrections[k] = v
	}
	for k, v := range in.CategoryStats {
		e.data.CategoryStats[k] = v
	}
	snapshot := cloneData(e.data)
	e.mu.Unlock()
	if err := e.store.SaveLearning(ctx, snapshot); err != nil {
		return fmt.Errorf("save learning data: %w", err)
	}
	return nil
}

func cloneData(d core.LearningData) core.LearningData {
	out := core.NewLearningData()
	for k, v := range d.LabelToCategory {
		out.LabelToCategory[k] = v
	}
	for k, v := range d.UserCorrections {
		out.UserCorrections[k] = v
	}
	for k, v := range d.CategoryStats {
		out.CategoryStats[k] = v
	}
	return out
}

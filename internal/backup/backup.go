// Package backup encodes and decodes full data snapshots as JSON or YAML
// files.
package backup

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"budgetcal/internal/core"
)

// Format is a snapshot file encoding.
type Format string

const (
	JSON Format = "json"
	YAML Format = "yaml"
)

// ErrInvalidFile is returned when a file carries no transaction array.
var ErrInvalidFile = errors.New("Fichier invalide: données de transactions manquantes")

// ParseFormat accepts json, yaml and yml.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimPrefix(s, ".")) {
	case "json", "":
		return JSON, nil
	case "yaml", "yml":
		return YAML, nil
	default:
		return "", fmt.Errorf("unsupported backup format %q", s)
	}
}

// FileName returns budget_export_YYYY-MM-DD.<ext> for the day of at.
func FileName(at time.Time, f Format) string {
	return fmt.Sprintf("budget_export_%s.%s", at.Format(core.DateLayout), f)
}

// Encode writes snap to w. JSON output is indented by two spaces.
func Encode(w io.Writer, snap core.Snapshot, f Format) error {
	if snap.Transactions == nil {
		snap.Transactions = []core.Transaction{}
	}
	switch f {
	case YAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(snap); err != nil {
			return fmt.Errorf("encode yaml backup: %w", err)
		}
		return enc.Close()
	default:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(snap); err != nil {
			return fmt.Errorf("encode json backup: %w", err)
		}
		return nil
	}
}

// rawSnapshot distinguishes a missing transaction array from an empty one.
type rawSnapshot struct {
	Transactions  *[]core.Transaction `json:"transactions" yaml:"transactions"`
	FixedExpenses core.FixedExpenses  `json:"fixedExpenses" yaml:"fixedExpenses"`
	Theme         string              `json:"theme" yaml:"theme"`
	ExportDate    time.Time           `json:"exportDate" yaml:"exportDate"`
}

// Decode reads a snapshot. The format comes from name's extension when it
// has one, otherwise from the content.
func Decode(r io.Reader, name string) (core.Snapshot, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return core.Snapshot{}, fmt.Errorf("read backup: %w", err)
	}
	f := detect(name, data)

	var raw rawSnapshot
	switch f {
	case YAML:
		err = yaml.Unmarshal(data, &raw)
	default:
		err = json.Unmarshal(data, &raw)
	}
	if err != nil {
		return core.Snapshot{}, fmt.Errorf("%w: %v", ErrInvalidFile, err)
	}
	if raw.Transactions == nil {
		return core.Snapshot{}, ErrInvalidFile
	}
	return core.Snapshot{
		Transactions:  *raw.Transactions,
		FixedExpenses: raw.FixedExpenses,
		Theme:         raw.Theme,
		ExportDate:    raw.ExportDate,
	}, nil
}

func detect(name string, data []byte) Format {
	if ext := filepath.Ext(name); ext != "" {
		if f, err := ParseFormat(ext); err == nil {
			return f
		}
	}
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && (trimmed[0] == '{' || trimmed[0] == '[') {
		return JSON
	}
	return YAML
}

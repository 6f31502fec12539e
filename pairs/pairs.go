// Package pairs ranks, stores and loads the basket of symbols to short.
package pairs

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"short_bot/models"
)

// LatestFile is rewritten on every Save and read by trade mode.
const LatestFile = "latest_pairs.json"

// Number decodes from a JSON number or a numeric string. NaN and infinities
// are rejected.
type Number float64

func (n *Number) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	if s == "null" {
		*n = 0
		return nil
	}
	if strings.HasPrefix(s, `"`) {
		unq, err := strconv.Unquote(s)
		if err != nil {
			return fmt.Errorf("invalid quoted number %s: %w", s, err)
		}
		s = strings.TrimSpace(unq)
		if s == "" {
			*n = 0
			return nil
		}
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("invalid number %s: %w", s, err)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return fmt.Errorf("number %s is not finite", s)
	}
	*n = Number(v)
	return nil
}

// Record is one ranked basket member as stored on disk.
type Record struct {
	Symbol      string `json:"symbol"`
	LastPrice   Number `json:"lastPrice"`
	Volume      Number `json:"volume"`
	MarketCap   Number `json:"marketCap"`
	MaxLeverage int    `json:"maxLeverage"`
}

// Load reads an ordered basket file.
func Load(path string) ([]Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read pairs file: %w", err)
	}
	var records []Record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("failed to parse pairs file %s: %w", path, err)
	}
	for i, r := range records {
		if r.Symbol == "" {
			return nil, fmt.Errorf("pairs file %s: record %d has no symbol", path, i)
		}
	}
	return records, nil
}

// Targets converts records into the engine's input, keeping file order.
func Targets(records []Record) []models.SymbolTarget {
	targets := make([]models.SymbolTarget, len(records))
	for i, r := range records {
		targets[i] = models.SymbolTarget{Symbol: r.Symbol, ReferencePrice: float64(r.LastPrice)}
	}
	return targets
}

// Save writes records to a timestamped history file and to LatestFile in
// dir. It returns the history file path.
func Save(dir string, records []Record, now time.Time) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create pairs directory: %w", err)
	}

	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode pairs: %w", err)
	}

	history := filepath.Join(dir, fmt.Sprintf("top_%d_pairs_%s.json", len(records), now.Format("20060102_150405")))
	if err := os.WriteFile(history, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", history, err)
	}
	latest := filepath.Join(dir, LatestFile)
	if err := os.WriteFile(latest, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", latest, err)
	}
	return history, nil
}

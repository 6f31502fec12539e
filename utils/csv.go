package utils

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"short_bot/models"
)

var outcomeHeader = []string{
	"Timestamp", "RunID", "Symbol", "Status", "Severity", "Quantity", "EntryPrice",
	"StopLoss", "StopLossAttempts", "TakeProfit", "TakeProfitAttempts", "Reason",
}

// AppendOutcomesToCSV appends one row per outcome to a CSV file, writing the
// header when the file is new.
func AppendOutcomesToCSV(filename, runID string, at time.Time, outcomes []models.OrderOutcome) error {
	// Ensure the directory exists
	dir := filepath.Dir(filename)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	file, err := os.OpenFile(filename, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open CSV file: %w", err)
	}
	defer file.Close()

	stat, err := file.Stat()
	if err != nil {
		return fmt.Errorf("failed to get file info: %w", err)
	}

	writer := csv.NewWriter(file)
	if stat.Size() == 0 {
		if err := writer.Write(outcomeHeader); err != nil {
			return fmt.Errorf("failed to write CSV header: %w", err)
		}
	}

	ts := at.UTC().Format(time.RFC3339)
	for _, out := range outcomes {
		record := []string{
			ts,
			runID,
			out.Symbol,
			string(out.Status),
			out.Status.Severity().String(),
			formatFloat(out.Quantity),
			formatFloat(out.EntryPrice),
			legPrice(out.StopLoss),
			strconv.Itoa(out.StopLoss.Attempts),
			legPrice(out.TakeProfit),
			strconv.Itoa(out.TakeProfit.Attempts),
			out.Reason(),
		}
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	return writer.Error()
}

func legPrice(leg models.LegResult) string {
	if !leg.Placed {
		return ""
	}
	return formatFloat(leg.FinalPrice)
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

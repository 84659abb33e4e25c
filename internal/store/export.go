package store

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/MelonMars/ABMMarket/internal/engine"
)

// ExportCSV writes one run's model series as a wide CSV: a step column
// followed by one column per series. It returns the written path.
func ExportCSV(dir, runID string, frame engine.Frame) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create export dir: %w", err)
	}
	path := filepath.Join(dir, runID+".csv")
	file, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create export: %w", err)
	}
	defer file.Close()

	w := csv.NewWriter(file)
	header := append([]string{"step"}, frame.Names...)
	if err := w.Write(header); err != nil {
		return "", fmt.Errorf("write header: %w", err)
	}

	row := make([]string, len(header))
	for i, step := range frame.Steps {
		row[0] = strconv.Itoa(step)
		for j, name := range frame.Names {
			col := frame.Series[name]
			if i < len(col) {
				row[j+1] = strconv.FormatFloat(col[i], 'f', -1, 64)
			} else {
				row[j+1] = ""
			}
		}
		if err := w.Write(row); err != nil {
			return "", fmt.Errorf("write row: %w", err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return "", fmt.Errorf("flush export: %w", err)
	}
	return path, nil
}

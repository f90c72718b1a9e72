package output

import (
	"bufio"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/use-agent/shelfscan/models"
)

// File formats.
const (
	FormatCSV      = "csv"
	FormatColumnar = "columnar"
)

const timestampLayout = "2006-01-02_15-04-05"

// FileSink writes one timestamped file per aggregate.
type FileSink struct {
	now func() time.Time
}

// NewFileSink creates a FileSink stamped with the local wall clock.
func NewFileSink() *FileSink {
	return &FileSink{now: time.Now}
}

// columnar is the column-oriented JSON layout: one array per column,
// all of equal length.
type columnar struct {
	ProductName []string `json:"product_name"`
	Price       []string `json:"price"`
	Weight      []string `json:"weight"`
	Category    []string `json:"category"`
}

// Write stores agg under <Destination>/<Folder>/<Prefix>_<timestamp>.<ext>
// and returns the file path. The file appears atomically.
func (s *FileSink) Write(ctx context.Context, agg models.AggregateResult, t Target) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", models.NewScrapeError(models.ErrCodeOutput, "output canceled", err)
	}
	if err := t.Validate(); err != nil {
		return "", err
	}

	format := strings.ToLower(t.Format)
	if format == "" {
		format = FormatCSV
	}
	ext := "csv"
	if format == FormatColumnar {
		ext = "json"
	}
	prefix := t.Prefix
	if prefix == "" {
		prefix = "products"
	}

	dir := filepath.Join(t.Destination, t.Folder)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", models.NewScrapeError(models.ErrCodeOutput, "failed to create output directory", err)
	}
	path := filepath.Join(dir, fmt.Sprintf("%s_%s.%s", prefix, s.now().Format(timestampLayout), ext))

	tmp, err := os.CreateTemp(dir, "."+prefix+"-*.tmp")
	if err != nil {
		return "", models.NewScrapeError(models.ErrCodeOutput, "failed to create output file", err)
	}
	defer os.Remove(tmp.Name())

	w := bufio.NewWriter(tmp)
	if format == FormatColumnar {
		err = writeColumnar(w, agg.Records)
	} else {
		err = writeCSV(w, agg.Records)
	}
	if err == nil {
		err = w.Flush()
	}
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return "", models.NewScrapeError(models.ErrCodeOutput, "failed to write "+format+" output", err)
	}

	if err := os.Rename(tmp.Name(), path); err != nil {
		return "", models.NewScrapeError(models.ErrCodeOutput, "failed to finalise output file", err)
	}
	return path, nil
}

// Close is a no-op.
func (s *FileSink) Close() error { return nil }

func writeCSV(w *bufio.Writer, records []models.ProductRecord) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Columns); err != nil {
		return err
	}
	for _, r := range records {
		if err := cw.Write(row(r)); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func writeColumnar(w *bufio.Writer, records []models.ProductRecord) error {
	cols := columnar{
		ProductName: make([]string, 0, len(records)),
		Price:       make([]string, 0, len(records)),
		Weight:      make([]string, 0, len(records)),
		Category:    make([]string, 0, len(records)),
	}
	for _, r := range records {
		cols.ProductName = append(cols.ProductName, r.ProductName)
		cols.Price = append(cols.Price, r.Price)
		cols.Weight = append(cols.Weight, r.Weight)
		cols.Category = append(cols.Category, r.Category)
	}
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	return enc.Encode(cols)
}

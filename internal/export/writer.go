// Package export serializes scrape batches to tabular files.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/IliaW/program-scraper/config"
	"github.com/IliaW/program-scraper/internal/model"
	jsoniter "github.com/json-iterator/go"
	"github.com/xuri/excelize/v2"
)

const (
	FormatCSV  = "csv"
	FormatXLSX = "xlsx"
	FormatJSON = "json"

	SheetName = "programs"
)

// utf8BOM lets spreadsheet programs detect the encoding of Thai text.
var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

type Writer struct {
	cfg *config.OutputConfig
	log *slog.Logger
	now func() time.Time
}

func NewWriter(cfg *config.OutputConfig, log *slog.Logger) *Writer {
	return &Writer{cfg: cfg, log: log, now: time.Now}
}

// Write stores the batch records in every configured format and returns the written paths.
// Files are named <prefix>_<YYYYMMDD_HHMMSS>.<format>.
func (w *Writer) Write(batch *model.ScrapeBatch) ([]string, error) {
	if err := os.MkdirAll(w.cfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}
	base := filepath.Join(w.cfg.Dir, fmt.Sprintf("%s_%s", w.cfg.FilePrefix, w.now().Format("20060102_150405")))

	var paths []string
	for _, format := range w.cfg.Formats {
		format = strings.ToLower(strings.TrimSpace(format))
		path := base + "." + format
		var err error
		switch format {
		case FormatCSV:
			err = writeFile(path, func(out io.Writer) error { return WriteCSV(out, batch.Records) })
		case FormatJSON:
			err = writeFile(path, func(out io.Writer) error { return WriteJSON(out, batch.Records) })
		case FormatXLSX:
			err = WriteXLSX(path, batch.Records)
		default:
			err = fmt.Errorf("unsupported output format %q", format)
		}
		if err != nil {
			return paths, fmt.Errorf("write %s: %w", path, err)
		}
		w.log.Info("records written.", slog.String("path", path), slog.Int("records", len(batch.Records)))
		paths = append(paths, path)
	}

	return paths, nil
}

func writeFile(path string, write func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err = write(f); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// WriteCSV writes a UTF-8 CSV with a byte order mark, a header row and one row per record.
func WriteCSV(out io.Writer, records []model.ProgramRecord) error {
	if _, err := out.Write(utf8BOM); err != nil {
		return err
	}
	cw := csv.NewWriter(out)
	if err := cw.Write(model.RecordColumns); err != nil {
		return err
	}
	for i := range records {
		if err := cw.Write(records[i].Row()); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func WriteJSON(out io.Writer, records []model.ProgramRecord) error {
	if records == nil {
		records = []model.ProgramRecord{}
	}
	enc := jsoniter.ConfigCompatibleWithStandardLibrary.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(records)
}

// WriteXLSX writes the records to a workbook with a single sheet.
func WriteXLSX(path string, records []model.ProgramRecord) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName("Sheet1", SheetName); err != nil {
		return err
	}
	header := make([]any, len(model.RecordColumns))
	for i, c := range model.RecordColumns {
		header[i] = c
	}
	if err := f.SetSheetRow(SheetName, "A1", &header); err != nil {
		return err
	}
	for i := range records {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		row := records[i].Row()
		values := make([]any, len(row))
		for j, v := range row {
			values[j] = v
		}
		if err = f.SetSheetRow(SheetName, cell, &values); err != nil {
			return err
		}
	}

	return f.SaveAs(path)
}

// Latest returns the newest file written with prefix and format in dir. Timestamped names sort
// chronologically, so the lexically greatest match wins.
func Latest(dir, prefix, format string) (string, error) {
	matches, err := filepath.Glob(filepath.Join(dir, prefix+"_*."+format))
	if err != nil {
		return "", err
	}
	if len(matches) == 0 {
		return "", fmt.Errorf("no %s files with prefix %q in %s", format, prefix, dir)
	}
	sort.Strings(matches)
	return matches[len(matches)-1], nil
}

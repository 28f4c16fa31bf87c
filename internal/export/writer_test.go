package export

import (
	"bytes"
	"encoding/csv"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/IliaW/program-scraper/config"
	"github.com/IliaW/program-scraper/internal/model"
	jsoniter "github.com/json-iterator/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func sampleRecords() []model.ProgramRecord {
	r1 := model.NewProgramRecord(model.NewProgramSummary("วิศวกรรม",
		"วิศวกรรมคอมพิวเตอร์\nคณะวิศวกรรมศาสตร์\nจุฬาลงกรณ์มหาวิทยาลัย", "https://course.mytcas.com/programs/1"))
	r1.ProgramType = "ภาษาไทย ปกติ"
	r1.TuitionCost = "21,000 บาท, ต่อภาคการศึกษา"
	r1.ScrapedAt = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	r2 := model.NewProgramRecord(model.NewProgramSummary("medicine", "Medicine", "https://course.mytcas.com/programs/2"))
	r2.ScrapedAt = time.Date(2026, 3, 1, 10, 0, 5, 0, time.UTC)
	return []model.ProgramRecord{r1, r2}
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, sampleRecords()))

	data := buf.Bytes()
	require.True(t, bytes.HasPrefix(data, utf8BOM))

	rows, err := csv.NewReader(bytes.NewReader(data[len(utf8BOM):])).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, model.RecordColumns, rows[0])
	assert.Equal(t, "วิศวกรรมคอมพิวเตอร์", rows[1][1])
	assert.Equal(t, "จุฬาลงกรณ์มหาวิทยาลัย", rows[1][2])
	assert.Equal(t, "21,000 บาท, ต่อภาคการศึกษา", rows[1][5])
	assert.Equal(t, "วิศวกรรมคอมพิวเตอร์\nคณะวิศวกรรมศาสตร์\nจุฬาลงกรณ์มหาวิทยาลัย", rows[1][7])
	assert.Equal(t, model.NotFound, rows[2][4])
	assert.Equal(t, "2026-03-01T10:00:05Z", rows[2][8])
}

func TestWriteJSONEmpty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteJSON(&buf, nil))
	assert.JSONEq(t, `[]`, buf.String())
}

func TestWriterWrite(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	w := NewWriter(&config.OutputConfig{Dir: dir, FilePrefix: "tcas_data", Formats: []string{"csv", " XLSX", "json"}},
		slog.New(slog.NewTextHandler(io.Discard, nil)))
	w.now = func() time.Time { return time.Date(2026, 3, 1, 9, 5, 7, 0, time.Local) }

	batch := model.NewScrapeBatch([]string{"วิศวกรรม"}, model.Curl)
	for _, r := range sampleRecords() {
		batch.Append(r)
	}

	paths, err := w.Write(batch)
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(dir, "tcas_data_20260301_090507.csv"),
		filepath.Join(dir, "tcas_data_20260301_090507.xlsx"),
		filepath.Join(dir, "tcas_data_20260301_090507.json"),
	}, paths)

	f, err := excelize.OpenFile(paths[1])
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows(SheetName)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, model.RecordColumns, rows[0])
	assert.Equal(t, "ภาษาไทย ปกติ", rows[1][4])

	data, err := os.ReadFile(paths[2])
	require.NoError(t, err)
	var decoded []model.ProgramRecord
	require.NoError(t, jsoniter.Unmarshal(data, &decoded))
	assert.Equal(t, batch.Records, decoded)
}

func TestWriterUnsupportedFormat(t *testing.T) {
	w := NewWriter(&config.OutputConfig{Dir: t.TempDir(), FilePrefix: "x", Formats: []string{"csv", "parquet"}},
		slog.New(slog.NewTextHandler(io.Discard, nil)))

	paths, err := w.Write(model.NewScrapeBatch(nil, model.Curl))
	assert.Error(t, err)
	assert.Len(t, paths, 1, "formats written before the failure are reported")
}

func TestLatest(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"tcas_data_20260301_090507.csv", "tcas_data_20260302_080000.csv",
		"tcas_data_20260303_080000.xlsx", "other_20270101_000000.csv"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), nil, 0o644))
	}

	got, err := Latest(dir, "tcas_data", FormatCSV)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "tcas_data_20260302_080000.csv"), got)

	_, err = Latest(dir, "tcas_data", FormatJSON)
	assert.Error(t, err)
}

package dashboard

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleCSV = "\xEF\xBB\xBFkeyword,university,program_type\n" +
	"วิศวกรรม,จุฬาลงกรณ์มหาวิทยาลัย,ภาษาไทย ปกติ\n" +
	"วิศวกรรม,มหาวิทยาลัยมหิดล,นานาชาติ\n" +
	"วิศวกรรม,จุฬาลงกรณ์มหาวิทยาลัย,not found\n" +
	"medicine,มหาวิทยาลัยมหิดล,นานาชาติ\n" +
	"medicine,,ภาษาไทย ปกติ\n" +
	"medicine,มหาวิทยาลัยเชียงใหม่\n"

func loadSample(t *testing.T) *Dataset {
	t.Helper()
	ds, err := ReadCSV(strings.NewReader(sampleCSV))
	require.NoError(t, err)
	return ds
}

func TestReadCSV(t *testing.T) {
	ds := loadSample(t)

	assert.Equal(t, []string{"keyword", "university", "program_type"}, ds.Columns, "byte order mark is stripped")
	require.Len(t, ds.Rows, 6)
	assert.Equal(t, []string{"medicine", "มหาวิทยาลัยเชียงใหม่", ""}, ds.Rows[5], "short rows are padded")
}

func TestReadCSVEmpty(t *testing.T) {
	_, err := ReadCSV(strings.NewReader(""))
	assert.ErrorIs(t, err, ErrEmptyDataset)
}

func TestLoadCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tcas.csv")
	require.NoError(t, os.WriteFile(path, []byte(sampleCSV), 0o644))

	ds, err := LoadCSV(path)
	require.NoError(t, err)
	assert.Len(t, ds.Rows, 6)

	_, err = LoadCSV(filepath.Join(t.TempDir(), "missing.csv"))
	assert.Error(t, err)
}

func TestTopValues(t *testing.T) {
	ds := loadSample(t)

	top, err := ds.TopValues("university", 10)
	require.NoError(t, err)
	assert.Equal(t, []ValueCount{
		{Value: "จุฬาลงกรณ์มหาวิทยาลัย", Count: 2, Share: 0.4},
		{Value: "มหาวิทยาลัยมหิดล", Count: 2, Share: 0.4},
		{Value: "มหาวิทยาลัยเชียงใหม่", Count: 1, Share: 0.2},
	}, top, "empty cells are ignored and ties keep first appearance order")

	top, err = ds.TopValues("program_type", 2)
	require.NoError(t, err)
	require.Len(t, top, 2)
	assert.Equal(t, "ภาษาไทย ปกติ", top[0].Value)
	assert.Equal(t, "นานาชาติ", top[1].Value)
	assert.InDelta(t, 0.5, top[0].Share, 1e-9)

	_, err = ds.TopValues("tuition_cost", 10)
	assert.ErrorIs(t, err, ErrUnknownColumn)
}

func TestPreview(t *testing.T) {
	ds := loadSample(t)

	assert.Len(t, ds.Preview(2), 2)
	assert.Len(t, ds.Preview(100), 6)
	assert.Len(t, ds.Preview(-1), 6)
	assert.Empty(t, ds.Preview(0))
}

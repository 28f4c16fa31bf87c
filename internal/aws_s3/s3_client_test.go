package aws_s3

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/IliaW/program-scraper/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

type storedObject struct {
	contentType string
	body        string
}

func newFakeS3(t *testing.T) (*httptest.Server, map[string]storedObject) {
	t.Helper()
	var mu sync.Mutex
	objects := map[string]storedObject{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut {
			http.Error(w, "unexpected method", http.StatusMethodNotAllowed)
			return
		}
		body, _ := io.ReadAll(r.Body)
		mu.Lock()
		objects[r.URL.Path] = storedObject{contentType: r.Header.Get("Content-Type"), body: string(body)}
		mu.Unlock()
		w.Header().Set("ETag", `"etag"`)
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)
	return srv, objects
}

func TestUpload(t *testing.T) {
	srv, objects := newFakeS3(t)
	cfg := &config.S3Config{
		AwsAccessKey:    "test",
		AwsSecretKey:    "test",
		AwsBaseEndpoint: srv.URL,
		Region:          "ap-southeast-1",
		BucketName:      "programs",
		KeyPrefix:       "program-scraper",
	}
	bc, err := NewS3BucketClient(context.Background(), cfg, discard)
	require.NoError(t, err)

	file := filepath.Join(t.TempDir(), "tcas_data_20260301_090507.csv")
	require.NoError(t, os.WriteFile(file, []byte("keyword\nวิศวกรรม\n"), 0o644))

	link, err := bc.Upload(context.Background(), "run-1", file)
	require.NoError(t, err)
	assert.Equal(t,
		"https://programs.s3.ap-southeast-1.amazonaws.com/program-scraper/run-1/tcas_data_20260301_090507.csv", link)

	obj, ok := objects["/programs/program-scraper/run-1/tcas_data_20260301_090507.csv"]
	require.True(t, ok, "path style request expected, got %v", objects)
	assert.Equal(t, "keyword\nวิศวกรรม\n", obj.body)
	assert.Equal(t, "text/csv; charset=utf-8", obj.contentType)
}

type fakeBucket struct {
	failing string
}

func (b fakeBucket) Upload(_ context.Context, runID, file string) (string, error) {
	if file == b.failing {
		return "", errors.New("access denied")
	}
	return runID + "/" + file, nil
}

func TestUploadAllSkipsFailures(t *testing.T) {
	links := UploadAll(context.Background(), fakeBucket{failing: "b.xlsx"}, "r", []string{"a.csv", "b.xlsx", "c.json"},
		discard)
	assert.Equal(t, []string{"r/a.csv", "r/c.json"}, links)
}

func TestContentType(t *testing.T) {
	assert.Equal(t, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", contentTypeOf("x.xlsx"))
	assert.Equal(t, "application/json", contentTypeOf("x.json"))
	assert.Equal(t, "application/octet-stream", contentTypeOf("x.unknownext"))
	assert.Equal(t, "program-scraper/run/x.csv", objectKey("program-scraper", "run", "/tmp/out/x.csv"))
}

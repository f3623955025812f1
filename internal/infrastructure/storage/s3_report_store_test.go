package storage

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/erp/arap/internal/infrastructure/config"
)

// fakeS3 serves the path-style subset of the S3 API the report store uses
type fakeS3 struct {
	mu           sync.Mutex
	buckets      map[string]bool
	objects      map[string][]byte
	contentTypes map[string]string
	creates      int
}

func newFakeS3(t *testing.T) (*fakeS3, *httptest.Server) {
	t.Helper()
	f := &fakeS3{
		buckets:      map[string]bool{},
		objects:      map[string][]byte{},
		contentTypes: map[string]string{},
	}
	srv := httptest.NewServer(http.HandlerFunc(f.serve))
	t.Cleanup(srv.Close)
	return f, srv
}

func (f *fakeS3) serve(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	bucket, key, _ := strings.Cut(strings.TrimPrefix(r.URL.Path, "/"), "/")
	switch {
	case key == "" && r.Method == http.MethodHead:
		if !f.buckets[bucket] {
			w.WriteHeader(http.StatusNotFound)
			return
		}
	case key == "" && r.Method == http.MethodPut:
		f.buckets[bucket] = true
		f.creates++
	case key != "" && r.Method == http.MethodPut:
		if !f.buckets[bucket] {
			w.Header().Set("Content-Type", "application/xml")
			w.WriteHeader(http.StatusNotFound)
			_, _ = io.WriteString(w, `<Error><Code>NoSuchBucket</Code><Message>missing</Message></Error>`)
			return
		}
		body, _ := io.ReadAll(r.Body)
		f.objects[bucket+"/"+key] = body
		f.contentTypes[bucket+"/"+key] = r.Header.Get("Content-Type")
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func newTestStore(t *testing.T, endpoint string) *S3ReportStore {
	t.Helper()
	store, err := NewS3ReportStore(context.Background(), config.StorageConfig{
		Endpoint:          endpoint,
		Bucket:            "arap-reports",
		AccessKey:         "test-key",
		SecretKey:         "test-secret",
		UsePathStyle:      true,
		PresignExpiration: 10 * time.Minute,
	}, zaptest.NewLogger(t))
	require.NoError(t, err)
	return store
}

func TestNewS3ReportStore_Validation(t *testing.T) {
	_, err := NewS3ReportStore(context.Background(), config.StorageConfig{AccessKey: "k", SecretKey: "s"}, nil)
	assert.ErrorContains(t, err, "bucket is required")

	_, err = NewS3ReportStore(context.Background(), config.StorageConfig{Bucket: "b", AccessKey: "k"}, nil)
	assert.ErrorContains(t, err, "secret key")

	store, err := NewS3ReportStore(context.Background(), config.StorageConfig{Bucket: "b", AccessKey: "k", SecretKey: "s"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "b", store.Bucket())
	assert.Equal(t, defaultPresignExpiration, store.presignExpiration)
}

func TestNormalizeEndpoint(t *testing.T) {
	assert.Equal(t, defaultEndpoint, normalizeEndpoint("", false))
	assert.Equal(t, "http://minio:9000", normalizeEndpoint("minio:9000", false))
	assert.Equal(t, "https://minio:9000", normalizeEndpoint("minio:9000", true))
	assert.Equal(t, "http://minio:9000", normalizeEndpoint("http://minio:9000", true))
}

func TestS3ReportStore_EnsureBucketAndPut(t *testing.T) {
	fake, srv := newFakeS3(t)
	store := newTestStore(t, srv.URL)
	ctx := context.Background()

	require.NoError(t, store.EnsureBucket(ctx))
	require.NoError(t, store.EnsureBucket(ctx))
	assert.Equal(t, 1, fake.creates, "an existing bucket is not created again")

	workbook := []byte("PK\x03\x04 aging workbook")
	location, err := store.Put(ctx, "aging/2024-05-10.xlsx", workbook,
		"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	require.NoError(t, err)

	assert.Equal(t, "s3://arap-reports/aging/2024-05-10.xlsx", location)
	assert.Equal(t, workbook, fake.objects["arap-reports/aging/2024-05-10.xlsx"])
	assert.Equal(t, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
		fake.contentTypes["arap-reports/aging/2024-05-10.xlsx"])
}

func TestS3ReportStore_PutErrors(t *testing.T) {
	_, srv := newFakeS3(t)
	store := newTestStore(t, srv.URL)

	_, err := store.Put(context.Background(), "", []byte("x"), "text/plain")
	assert.ErrorContains(t, err, "key is required")

	_, err = store.Put(context.Background(), "aging/x.xlsx", []byte("x"), "text/plain")
	assert.ErrorContains(t, err, "failed to upload report")
}

func TestS3ReportStore_DownloadURL(t *testing.T) {
	_, srv := newFakeS3(t)
	store := newTestStore(t, srv.URL)

	url, expires, err := store.DownloadURL(context.Background(), "aging/2024-05-10.xlsx")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(url, srv.URL+"/arap-reports/aging/2024-05-10.xlsx?"))
	assert.Contains(t, url, "X-Amz-Signature=")
	assert.Contains(t, url, "X-Amz-Expires=600")
	assert.WithinDuration(t, time.Now().Add(10*time.Minute), expires, time.Minute)

	_, _, err = store.DownloadURL(context.Background(), "")
	assert.Error(t, err)
}

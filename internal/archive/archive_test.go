package archive

import (
	"bytes"
	"io"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/wodesk/internal/config"
	"git.home.luguber.info/inful/wodesk/internal/events"
	"git.home.luguber.info/inful/wodesk/internal/foundation/errors"
	"git.home.luguber.info/inful/wodesk/internal/journal"
	"git.home.luguber.info/inful/wodesk/internal/workorder"
)

// fakeS3 accepts PUT requests and remembers the bodies by path.
type fakeS3 struct {
	mu      sync.Mutex
	objects map[string]string
	status  int
}

func (f *fakeS3) RoundTrip(req *http.Request) (*http.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.status != 0 {
		return &http.Response{StatusCode: f.status, Body: io.NopCloser(strings.NewReader("<Error><Code>AccessDenied</Code></Error>")), Header: http.Header{}}, nil
	}
	if req.Method != http.MethodPut {
		return &http.Response{StatusCode: http.StatusNotImplemented, Body: io.NopCloser(bytes.NewReader(nil)), Header: http.Header{}}, nil
	}
	body, _ := io.ReadAll(req.Body)
	f.objects[req.URL.Path] = string(body)
	return &http.Response{StatusCode: http.StatusOK, Body: io.NopCloser(bytes.NewReader(nil)), Header: http.Header{"ETag": {"\"etag\""}}}, nil
}

func newTestUploader(t *testing.T, rt http.RoundTripper) *Uploader {
	t.Helper()
	t.Setenv("AWS_EC2_METADATA_DISABLED", "true")
	u, err := New(t.Context(), config.ArchiveConfig{
		Bucket:    "wodesk-archive",
		Endpoint:  "https://archive.test",
		Prefix:    "journal",
		PathStyle: true,
	}, func(o *s3.Options) {
		o.HTTPClient = &http.Client{Transport: rt}
		o.Credentials = credentials.NewStaticCredentialsProvider("AKIA", "SECRET", "")
	})
	require.NoError(t, err)
	return u
}

func seededJournal(t *testing.T) journal.Store {
	t.Helper()
	store, err := journal.NewSQLiteStore(t.Context(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	sink := journal.NewSink(store)
	sink.RecordExpiry(t.Context(), events.TimerExpired{WorkOrderID: "WO1", State: workorder.StateQueued, ExpiredAt: time.Now()})
	sink.RecordExpiry(t.Context(), events.TimerExpired{WorkOrderID: "WO2", State: workorder.StateQueued, ExpiredAt: time.Now()})
	return store
}

func TestArchiveJournalUploadsExport(t *testing.T) {
	rt := &fakeS3{objects: map[string]string{}}
	u := newTestUploader(t, rt)
	store := seededJournal(t)

	start := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	end := time.Now().Add(time.Hour)
	key, n, err := u.ArchiveJournal(t.Context(), store, start, end)
	require.NoError(t, err)
	require.Equal(t, 2, n)
	require.True(t, strings.HasPrefix(key, "journal/journal-20260102T030405Z-"), key)
	require.True(t, strings.HasSuffix(key, ".jsonl"), key)

	body, ok := rt.objects["/wodesk-archive/"+key]
	require.True(t, ok, "objects: %v", rt.objects)
	require.Contains(t, body, `"work_order_id":"WO1"`)
	require.Contains(t, body, `"work_order_id":"WO2"`)
}

func TestArchiveJournalSkipsEmptyRange(t *testing.T) {
	rt := &fakeS3{objects: map[string]string{}}
	u := newTestUploader(t, rt)

	key, n, err := u.ArchiveJournal(t.Context(), journal.NopStore{}, time.Now().Add(-time.Hour), time.Now())
	require.NoError(t, err)
	require.Empty(t, key)
	require.Zero(t, n)
	require.Empty(t, rt.objects)
}

func TestPutFailureIsClassified(t *testing.T) {
	rt := &fakeS3{objects: map[string]string{}, status: http.StatusForbidden}
	u := newTestUploader(t, rt)

	err := u.Put(t.Context(), "journal/x.jsonl", []byte("{}\n"))
	require.Error(t, err)
	require.Contains(t, err.Error(), "upload object")
}

func TestNewRequiresBucket(t *testing.T) {
	_, err := New(t.Context(), config.ArchiveConfig{Region: "eu-north-1"})
	require.Error(t, err)
}

func TestNewUsesStaticCredentials(t *testing.T) {
	t.Setenv("AWS_EC2_METADATA_DISABLED", "true")
	u, err := New(t.Context(), config.ArchiveConfig{
		Bucket:          "wodesk-archive",
		Region:          "eu-north-1",
		AccessKeyID:     "AKIASTATIC",
		SecretAccessKey: "static-secret",
	})
	require.NoError(t, err)

	creds, err := u.client.Options().Credentials.Retrieve(t.Context())
	require.NoError(t, err)
	require.Equal(t, "AKIASTATIC", creds.AccessKeyID)
	require.Equal(t, "static-secret", creds.SecretAccessKey)
}

func TestArchiveJournalRejectsInvertedWindow(t *testing.T) {
	s3fake := &fakeS3{objects: map[string]string{}}
	u := newTestUploader(t, s3fake)
	now := time.Now()

	_, _, err := u.ArchiveJournal(t.Context(), seededJournal(t), now, now.Add(-time.Hour))
	require.Error(t, err)
	require.True(t, errors.HasCategory(err, errors.CategoryArchive), "got %v", err)
	require.Empty(t, s3fake.objects)
}

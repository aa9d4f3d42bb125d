package archive

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blueberrycongee/grandpal/internal/config"
)

type fakeS3 struct {
	mu      sync.Mutex
	methods []string
	paths   []string
	bodies  []string
	status  int
}

func (f *fakeS3) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	f.mu.Lock()
	f.methods = append(f.methods, r.Method)
	f.paths = append(f.paths, r.URL.Path)
	f.bodies = append(f.bodies, string(body))
	status := f.status
	f.mu.Unlock()

	if status != 0 {
		w.Header().Set("Content-Type", "application/xml")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, `<?xml version="1.0" encoding="UTF-8"?><Error><Code>AccessDenied</Code><Message>denied</Message></Error>`)
		return
	}
	w.Header().Set("ETag", `"abc"`)
	w.WriteHeader(http.StatusOK)
}

func newTestSink(t *testing.T, fake *fakeS3) *S3Sink {
	t.Helper()
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	sink, err := NewS3Sink(context.Background(), config.S3Config{
		Enabled:         true,
		Bucket:          "transcripts-bucket",
		Prefix:          "transcripts/",
		Region:          "us-east-1",
		Endpoint:        srv.URL,
		AccessKeyID:     "test",
		SecretAccessKey: "test",
	})
	require.NoError(t, err)
	return sink
}

func TestS3Sink_Archive(t *testing.T) {
	fake := &fakeS3{}
	sink := newTestSink(t, fake)

	err := sink.Archive(context.Background(), Entry{
		SessionID:  "4f1c",
		UserID:     "margaret",
		UserName:   "Margaret",
		Reason:     "ended",
		EndedAt:    time.Date(2026, 3, 4, 12, 0, 0, 0, time.UTC),
		Transcript: "Margaret: hello\n\n",
		Extraction: map[string]any{"emotional_state": "happy"},
	})
	require.NoError(t, err)

	fake.mu.Lock()
	defer fake.mu.Unlock()
	require.Len(t, fake.paths, 1)
	assert.Equal(t, http.MethodPut, fake.methods[0])
	assert.Equal(t, "/transcripts-bucket/transcripts/year=2026/month=03/day=04/margaret/4f1c.json", fake.paths[0])
	assert.Contains(t, fake.bodies[0], `"session_id":"4f1c"`)
	assert.Contains(t, fake.bodies[0], `"transcript":"Margaret: hello\n\n"`)
	assert.Contains(t, fake.bodies[0], `"emotional_state":"happy"`)
}

func TestS3Sink_ArchiveError(t *testing.T) {
	sink := newTestSink(t, &fakeS3{status: http.StatusForbidden})

	err := sink.Archive(context.Background(), Entry{SessionID: "s", UserID: "u", EndedAt: time.Now()})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "archive: upload")
}

func TestNewS3Sink_RequiresBucket(t *testing.T) {
	_, err := NewS3Sink(context.Background(), config.S3Config{Enabled: true})
	require.Error(t, err)
}

func TestS3Sink_KeyWithoutPrefix(t *testing.T) {
	s := &S3Sink{}
	key := s.key(Entry{SessionID: "abc", UserID: "tom", EndedAt: time.Date(2025, 12, 31, 23, 0, 0, 0, time.UTC)})
	assert.Equal(t, "year=2025/month=12/day=31/tom/abc.json", key)
}

func TestNop(t *testing.T) {
	assert.NoError(t, Nop{}.Archive(context.Background(), Entry{}))
}

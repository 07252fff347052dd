package progress

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bytedance/sonic"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gorilincode/backend/internal/infrastructure/config"
	"github.com/gorilincode/backend/internal/infrastructure/monitoring"
)

func sampleRecord(learner string) *Record {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	return &Record{
		LearnerID:        learner,
		CompletedLessons: []int{1, 2, 3, 4, 5, 9},
		Hearts:           6,
		GorillaHearts:    1,
		CreatedAt:        now,
		UpdatedAt:        now.Add(time.Hour),
	}
}

// exerciseStore runs the Store contract against s
func exerciseStore(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()

	_, err := s.Load(ctx, "user-missing")
	assert.ErrorIs(t, err, ErrNotFound)

	rec := sampleRecord("user-a")
	require.NoError(t, s.Save(ctx, rec))

	got, err := s.Load(ctx, "user-a")
	require.NoError(t, err)
	assert.Equal(t, rec.CompletedLessons, got.CompletedLessons)
	assert.Equal(t, rec.Hearts, got.Hearts)
	assert.Equal(t, rec.GorillaHearts, got.GorillaHearts)
	assert.True(t, rec.CreatedAt.Equal(got.CreatedAt))

	rec.CompletedLessons = append(rec.CompletedLessons, 10)
	rec.Hearts = 7
	require.NoError(t, s.Save(ctx, rec))
	got, err = s.Load(ctx, "user-a")
	require.NoError(t, err)
	assert.Equal(t, 7, got.Hearts)
	assert.Contains(t, got.CompletedLessons, 10)

	require.NoError(t, s.Delete(ctx, "user-a"))
	_, err = s.Load(ctx, "user-a")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, s.Delete(ctx, "user-a"))
}

func TestMemoryStore(t *testing.T) {
	exerciseStore(t, NewMemoryStore())
}

func TestMemoryStoreCopiesRecords(t *testing.T) {
	s := NewMemoryStore()
	rec := sampleRecord("user-a")
	require.NoError(t, s.Save(context.Background(), rec))
	rec.CompletedLessons[0] = 99

	got, err := s.Load(context.Background(), "user-a")
	require.NoError(t, err)
	assert.Equal(t, 1, got.CompletedLessons[0])
}

func TestFileStore(t *testing.T) {
	dir := t.TempDir()
	s, err := NewFileStore(filepath.Join(dir, "progress"))
	require.NoError(t, err)
	exerciseStore(t, s)
}

func TestFileStoreDocumentLayout(t *testing.T) {
	dir := t.TempDir()
	s, err := NewFileStore(dir)
	require.NoError(t, err)
	require.NoError(t, s.Save(context.Background(), sampleRecord("user-a")))

	data, err := os.ReadFile(filepath.Join(dir, "user-a.json"))
	require.NoError(t, err)
	var doc map[string]any
	require.NoError(t, sonic.Unmarshal(data, &doc))
	assert.Equal(t, "user-a", doc["learner_id"])
	assert.EqualValues(t, 6, doc["hearts"])
}

// fakeFirestore serves the subset of the Firestore REST API the store uses
type fakeFirestore struct {
	mu    sync.Mutex
	docs  map[string]string
	token string
}

func (f *fakeFirestore) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const prefix = "/projects/demo/databases/(default)/documents/progress/"
	w.Header().Set("Content-Type", "application/json")
	if !strings.HasPrefix(r.URL.Path, prefix) {
		http.NotFound(w, r)
		return
	}
	if f.token != "" && r.Header.Get("Authorization") != "Bearer "+f.token {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = io.WriteString(w, `{"error":{"code":401,"message":"missing token","status":"UNAUTHENTICATED"}}`)
		return
	}
	name := strings.TrimPrefix(r.URL.Path, prefix)

	f.mu.Lock()
	defer f.mu.Unlock()

	switch r.Method {
	case http.MethodGet:
		doc, ok := f.docs[name]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			_, _ = io.WriteString(w, `{"error":{"code":404,"message":"not found","status":"NOT_FOUND"}}`)
			return
		}
		_, _ = io.WriteString(w, doc)
	case http.MethodPatch:
		body, _ := io.ReadAll(r.Body)
		f.docs[name] = string(body)
		_, _ = w.Write(body)
	case http.MethodDelete:
		delete(f.docs, name)
		_, _ = io.WriteString(w, "{}")
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func TestFirestoreStore(t *testing.T) {
	fake := &fakeFirestore{docs: map[string]string{}, token: "secret"}
	srv := httptest.NewServer(fake)
	defer srv.Close()

	s, err := NewFirestoreStore(FirestoreOptions{BaseURL: srv.URL, Project: "demo", Token: "secret"})
	require.NoError(t, err)
	exerciseStore(t, s)
}

func TestFirestoreDocumentFields(t *testing.T) {
	fake := &fakeFirestore{docs: map[string]string{}}
	srv := httptest.NewServer(fake)
	defer srv.Close()

	s, err := NewFirestoreStore(FirestoreOptions{BaseURL: srv.URL, Project: "demo"})
	require.NoError(t, err)
	require.NoError(t, s.Save(context.Background(), sampleRecord("user-a")))

	raw := fake.docs["user-a"]
	for _, field := range []string{"completedLessons", "hearts", "gorillaHearts", "createdAt", "updatedAt"} {
		assert.Contains(t, raw, `"`+field+`"`)
	}
	assert.Contains(t, raw, `"integerValue":"6"`)
}

func TestFirestoreStoreErrors(t *testing.T) {
	fake := &fakeFirestore{docs: map[string]string{}, token: "secret"}
	srv := httptest.NewServer(fake)
	defer srv.Close()

	s, err := NewFirestoreStore(FirestoreOptions{BaseURL: srv.URL, Project: "demo"})
	require.NoError(t, err)

	_, err = s.Load(context.Background(), "user-a")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)
	assert.Contains(t, err.Error(), "missing token")

	_, err = NewFirestoreStore(FirestoreOptions{})
	assert.Error(t, err)
}

func TestSQLStoreSqlite(t *testing.T) {
	s, err := OpenSQLStore("sqlite", filepath.Join(t.TempDir(), "progress.db"), nil)
	if err != nil {
		t.Skipf("sqlite unavailable: %v", err)
	}
	defer s.Close()
	exerciseStore(t, s)
}

func TestRedisStore(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}
	s, err := NewRedisStore(context.Background(), RedisOptions{Addr: addr})
	require.NoError(t, err)
	defer s.Close()
	exerciseStore(t, s)
}

func TestInstrumentRecordsCalls(t *testing.T) {
	metrics := monitoring.NewMetrics()
	s := Instrument(NewMemoryStore(), "memory", metrics)

	_, _ = s.Load(context.Background(), "user-missing")
	require.NoError(t, s.Save(context.Background(), sampleRecord("user-a")))

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.StoreCalls.WithLabelValues("memory", "load", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.StoreCalls.WithLabelValues("memory", "save", "ok")))
}

func TestNewFromConfig(t *testing.T) {
	cfg := config.Default().Progress

	s, err := New(context.Background(), cfg, nil, nil)
	require.NoError(t, err)
	assert.IsType(t, &MemoryStore{}, s)

	cfg.Backend = config.BackendFile
	cfg.Dir = t.TempDir()
	s, err = New(context.Background(), cfg, nil, nil)
	require.NoError(t, err)
	assert.IsType(t, &FileStore{}, s)

	fake := &fakeFirestore{docs: map[string]string{}}
	srv := httptest.NewServer(fake)
	defer srv.Close()
	cfg.Backend = config.BackendFirestore
	cfg.FirestoreProject = "demo"
	cfg.FirestoreURL = srv.URL
	cfg.Fallback = true
	s, err = New(context.Background(), cfg, nil, nil)
	require.NoError(t, err)
	assert.IsType(t, &FallbackStore{}, s)

	cfg.Backend = "carrier-pigeon"
	_, err = New(context.Background(), cfg, nil, nil)
	assert.Error(t, err)
}

package blob

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStoreOverwrites(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, s.Save(ctx, "i18n/en.json", []byte(`{"a":1}`), "application/json"))
	require.NoError(t, s.Save(ctx, "i18n/en.json", []byte(`{"a":2}`), "application/json"))

	got, ok := s.Get("i18n/en.json")
	require.True(t, ok)
	assert.JSONEq(t, `{"a":2}`, string(got))
	assert.Equal(t, []string{"i18n/en.json"}, s.Paths())
}

func TestMemoryStoreRejectsEmptyPath(t *testing.T) {
	assert.ErrorIs(t, NewMemoryStore().Save(context.Background(), "", nil, ""), ErrEmptyPath)
}

type fakeS3 struct {
	mu      sync.Mutex
	objects map[string]string
	buckets map[string]bool
}

func (f *fakeS3) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	switch r.Method {
	case http.MethodHead:
		if !f.buckets[r.URL.Path] {
			w.WriteHeader(http.StatusNotFound)
			return
		}
	case http.MethodPut:
		b, _ := io.ReadAll(r.Body)
		if len(b) == 0 && r.ContentLength <= 0 {
			f.buckets[r.URL.Path] = true
			return
		}
		f.objects[r.URL.Path] = string(b)
	}
	w.WriteHeader(http.StatusOK)
}

func TestS3StoreSave(t *testing.T) {
	fake := &fakeS3{objects: map[string]string{}, buckets: map[string]bool{}}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)
	t.Setenv("AWS_REQUEST_CHECKSUM_CALCULATION", "when_required")

	ctx := context.Background()
	s, err := NewS3Store(ctx, S3Config{Endpoint: srv.URL, AccessKey: "k", SecretKey: "s", UsePathStyle: true}, "ngx-translate", nil)
	require.NoError(t, err)

	require.NoError(t, s.EnsureContainer(ctx))
	assert.True(t, fake.buckets["/ngx-translate"])

	require.NoError(t, s.Save(ctx, "i18n/en.json", []byte(`{"hello":"Hello"}`), "application/json"))
	assert.Equal(t, `{"hello":"Hello"}`, fake.objects["/ngx-translate/i18n/en.json"])
}

func TestNewS3StoreValidates(t *testing.T) {
	_, err := NewS3Store(context.Background(), S3Config{AccessKey: "k", SecretKey: "s"}, "", nil)
	assert.Error(t, err)
	_, err = NewS3Store(context.Background(), S3Config{}, "currency", nil)
	assert.Error(t, err)
}

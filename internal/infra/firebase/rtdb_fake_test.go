package firebase

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"firebase.google.com/go/v4/db"
	"github.com/stretchr/testify/require"

	"ticketgate/internal/config"
)

const nullETag = "null-etag"

// fakeRTDB serves the subset of the Realtime Database REST protocol the
// store uses: plain and shallow GET, ETag reads, conditional PUT and DELETE.
type fakeRTDB struct {
	mu   sync.Mutex
	data map[string]json.RawMessage

	// status, when non-zero, is returned by every request.
	status int
	// onConditionalPut runs once, with mu held, before an If-Match check.
	onConditionalPut func(f *fakeRTDB)
}

func newFakeRTDB() *fakeRTDB {
	return &fakeRTDB{data: map[string]json.RawMessage{}}
}

func (f *fakeRTDB) put(path, value string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.data[path] = json.RawMessage(value)
}

func (f *fakeRTDB) has(path string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.data[path]
	return ok
}

func (f *fakeRTDB) setStatus(code int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.status = code
}

func (f *fakeRTDB) value(path string) json.RawMessage {
	if v, ok := f.data[path]; ok {
		return v
	}
	return json.RawMessage("null")
}

func etagOf(v json.RawMessage) string {
	if isNull(v) {
		return nullETag
	}
	sum := sha1.Sum(v)
	return hex.EncodeToString(sum[:])
}

func (f *fakeRTDB) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.status != 0 {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(f.status)
		_, _ = io.WriteString(w, `{"error":"backend unavailable"}`)
		return
	}

	path := strings.TrimSuffix(strings.TrimPrefix(r.URL.Path, "/"), ".json")
	w.Header().Set("Content-Type", "application/json")

	switch r.Method {
	case http.MethodGet:
		if r.URL.Query().Get("shallow") == "true" {
			children := map[string]bool{}
			for k := range f.data {
				if rest, ok := strings.CutPrefix(k, path+"/"); ok {
					children[strings.SplitN(rest, "/", 2)[0]] = true
				}
			}
			if len(children) == 0 {
				_, _ = io.WriteString(w, "null")
				return
			}
			_ = json.NewEncoder(w).Encode(children)
			return
		}
		v := f.value(path)
		w.Header().Set("ETag", etagOf(v))
		_, _ = w.Write(v)

	case http.MethodPut:
		body, err := io.ReadAll(r.Body)
		if err != nil || !json.Valid(body) {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = io.WriteString(w, `{"error":"invalid data"}`)
			return
		}
		if match := r.Header.Get("If-Match"); match != "" {
			if f.onConditionalPut != nil {
				hook := f.onConditionalPut
				f.onConditionalPut = nil
				hook(f)
			}
			cur := f.value(path)
			if etagOf(cur) != match {
				w.Header().Set("ETag", etagOf(cur))
				w.WriteHeader(http.StatusPreconditionFailed)
				_, _ = w.Write(cur)
				return
			}
		}
		f.data[path] = json.RawMessage(body)
		if r.URL.Query().Get("print") == "silent" {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		w.Header().Set("ETag", etagOf(body))
		_, _ = w.Write(body)

	case http.MethodDelete:
		delete(f.data, path)
		_, _ = io.WriteString(w, "null")

	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// newFakeClient points the SDK at fake through its emulator mode, which
// any non-https database URL with a namespace selects.
func newFakeClient(t *testing.T, fake *fakeRTDB) *db.Client {
	t.Helper()
	t.Setenv("FIREBASE_DATABASE_EMULATOR_HOST", "")
	// Fail the project ID lookup fast instead of probing for a metadata server.
	t.Setenv("GOOGLE_APPLICATION_CREDENTIALS", filepath.Join(t.TempDir(), "absent.json"))

	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	_, port, err := net.SplitHostPort(srv.Listener.Addr().String())
	require.NoError(t, err)
	client, err := NewClient(context.Background(), &config.FirebaseConfig{
		DatabaseURL: "localhost:" + port + "?ns=ticketgate-test",
	})
	require.NoError(t, err)
	return client
}

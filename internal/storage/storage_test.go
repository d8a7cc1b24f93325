package storage

import (
	"compress/gzip"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-kivik/kivik/v4"
	_ "github.com/go-kivik/kivik/v4/couchdb"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// exerciseStorage runs the behaviour every backend must share.
func exerciseStorage(t *testing.T, s Storage) {
	t.Helper()
	ctx := context.Background()

	_, err := s.Get(ctx, "accessToken")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.Set(ctx, "accessToken", "T1"))
	value, err := s.Get(ctx, "accessToken")
	require.NoError(t, err)
	assert.Equal(t, "T1", value)

	require.NoError(t, s.Set(ctx, "accessToken", "T2"))
	value, err = s.Get(ctx, "accessToken")
	require.NoError(t, err)
	assert.Equal(t, "T2", value)

	require.NoError(t, s.Delete(ctx, "accessToken"))
	_, err = s.Get(ctx, "accessToken")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.Delete(ctx, "never-set"))
}

func TestMemoryStorage(t *testing.T) {
	s := NewMemoryStorage()
	exerciseStorage(t, s)

	if s.Len() != 0 {
		t.Errorf("Len() = %d, want 0", s.Len())
	}
}

func TestRedisStorage(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	s := NewRedisStorage(client, "kaspas:")
	exerciseStorage(t, s)

	require.NoError(t, s.Set(context.Background(), "cart", "[]"))
	assert.True(t, mr.Exists("kaspas:cart"), "key should carry the prefix")
}

func TestRedisStorage_ConnectionError(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { client.Close() })
	mr.Close()

	s := NewRedisStorage(client, "")
	_, err := s.Get(context.Background(), "accessToken")
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrNotFound))
}

// fakeCouch implements the handful of CouchDB endpoints the kivik couch
// driver touches for document CRUD.
type fakeCouch struct {
	mu      sync.Mutex
	dbName  string
	created bool
	docs    map[string]map[string]interface{}
	revs    map[string]int
	gzipped int
}

func newFakeCouch(dbName string) *fakeCouch {
	return &fakeCouch{
		dbName: dbName,
		docs:   make(map[string]map[string]interface{}),
		revs:   make(map[string]int),
	}
}

func (f *fakeCouch) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	parts := strings.SplitN(strings.Trim(r.URL.Path, "/"), "/", 2)
	if parts[0] != f.dbName {
		writeCouch(w, http.StatusNotFound, map[string]interface{}{"error": "not_found", "reason": "Database does not exist."})
		return
	}

	if len(parts) == 1 {
		switch r.Method {
		case http.MethodHead:
			if !f.created {
				w.WriteHeader(http.StatusNotFound)
				return
			}
			w.WriteHeader(http.StatusOK)
		case http.MethodPut:
			f.created = true
			writeCouch(w, http.StatusCreated, map[string]interface{}{"ok": true})
		default:
			writeCouch(w, http.StatusOK, map[string]interface{}{"db_name": f.dbName})
		}
		return
	}

	id := parts[1]
	doc, exists := f.docs[id]
	rev := fmt.Sprintf("%d-abc", f.revs[id])

	switch r.Method {
	case http.MethodHead:
		if !exists {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("ETag", `"`+rev+`"`)
		w.WriteHeader(http.StatusOK)
	case http.MethodGet:
		if !exists {
			writeCouch(w, http.StatusNotFound, map[string]interface{}{"error": "not_found", "reason": "missing"})
			return
		}
		w.Header().Set("ETag", `"`+rev+`"`)
		writeCouch(w, http.StatusOK, doc)
	case http.MethodPut:
		reader, err := f.body(r)
		if err != nil {
			writeCouch(w, http.StatusBadRequest, map[string]interface{}{"error": "bad_request", "reason": err.Error()})
			return
		}
		var body map[string]interface{}
		if err := json.NewDecoder(reader).Decode(&body); err != nil {
			writeCouch(w, http.StatusBadRequest, map[string]interface{}{"error": "bad_request", "reason": err.Error()})
			return
		}
		if exists && body["_rev"] != rev {
			writeCouch(w, http.StatusConflict, map[string]interface{}{"error": "conflict", "reason": "Document update conflict."})
			return
		}
		f.revs[id]++
		newRev := fmt.Sprintf("%d-abc", f.revs[id])
		body["_id"] = id
		body["_rev"] = newRev
		f.docs[id] = body
		writeCouch(w, http.StatusCreated, map[string]interface{}{"ok": true, "id": id, "rev": newRev})
	case http.MethodDelete:
		if !exists {
			writeCouch(w, http.StatusNotFound, map[string]interface{}{"error": "not_found", "reason": "missing"})
			return
		}
		if r.URL.Query().Get("rev") != rev {
			writeCouch(w, http.StatusConflict, map[string]interface{}{"error": "conflict", "reason": "Document update conflict."})
			return
		}
		delete(f.docs, id)
		f.revs[id]++
		writeCouch(w, http.StatusOK, map[string]interface{}{"ok": true, "id": id, "rev": fmt.Sprintf("%d-abc", f.revs[id])})
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// body undoes the gzip encoding the couch driver applies to uploads.
func (f *fakeCouch) body(r *http.Request) (io.Reader, error) {
	if r.Header.Get("Content-Encoding") != "gzip" {
		return r.Body, nil
	}
	f.gzipped++
	return gzip.NewReader(r.Body)
}

func writeCouch(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func TestCouchStorage(t *testing.T) {
	fake := newFakeCouch("kaspas")
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	client, err := kivik.New("couch", srv.URL)
	require.NoError(t, err)

	s, err := NewCouchStorage(context.Background(), client, "kaspas")
	require.NoError(t, err)
	assert.True(t, fake.created, "database should be created on open")

	exerciseStorage(t, s)

	fake.mu.Lock()
	defer fake.mu.Unlock()
	assert.Positive(t, fake.gzipped, "driver uploads documents gzip encoded")
}

package http_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"

	httpadapter "github.com/artpar/conftree/adapters/http"
	"github.com/artpar/conftree/adapters/metrics"
	"github.com/artpar/conftree/app"
	"github.com/artpar/conftree/core/tree"
)

type staticSource struct {
	data *tree.Map
}

func (s *staticSource) Name() string { return "static" }

func (s *staticSource) Load(ctx context.Context) (*tree.Map, error) {
	return s.data, nil
}

func newHandler(t *testing.T) http.Handler {
	t.Helper()

	db := tree.NewMap()
	db.Set("host", "localhost")
	db.Set("port", 5432)
	data := tree.NewMap()
	data.Set("app_name", "svc")
	data.Set("database", db)

	svc := app.NewService(app.Options{
		Source: &staticSource{data: data},
		Logger: zerolog.Nop(),
	})
	if err := svc.Load(context.Background()); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	return httpadapter.NewHandler(svc, nil, zerolog.Nop())
}

func TestGetConfig_FullSnapshot(t *testing.T) {
	h := newHandler(t)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/config", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if body["app_name"] != "svc" {
		t.Errorf("app_name = %v", body["app_name"])
	}
}

func TestGetConfig_ScalarKey(t *testing.T) {
	h := newHandler(t)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/config/app_name", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body["key"] != "app_name" || body["value"] != "svc" {
		t.Errorf("body = %v", body)
	}
}

func TestGetConfig_DottedKey(t *testing.T) {
	h := newHandler(t)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/config/database.host", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body["value"] != "localhost" {
		t.Errorf("value = %v", body["value"])
	}
}

func TestGetConfig_NamespaceKey(t *testing.T) {
	h := newHandler(t)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/config/database", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body["host"] != "localhost" {
		t.Errorf("body = %v", body)
	}
}

func TestGetConfig_UnknownKey(t *testing.T) {
	h := newHandler(t)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/config/nope", nil))

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestGetConfig_NoSnapshot(t *testing.T) {
	svc := app.NewService(app.Options{
		Source: &staticSource{data: tree.NewMap()},
		Logger: zerolog.Nop(),
	})
	h := httpadapter.NewHandler(svc, nil, zerolog.Nop())

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/config", nil))

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rec.Code)
	}
}

func TestGetConfig_ScalarIntermediate(t *testing.T) {
	h := newHandler(t)

	// app_name is a scalar; descending into it is a 404, not a 500.
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/config/app_name.x", nil))

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404; body = %s", rec.Code, rec.Body.String())
	}
}

// brokenCipher encrypts fine but refuses to decrypt.
type brokenCipher struct{}

func (brokenCipher) Encrypt(plaintext string) (string, error) { return "enc:" + plaintext, nil }

func (brokenCipher) Decrypt(string) (string, error) {
	return "", errors.New("cipher failure")
}

func TestGetConfig_DecryptFailureCounted(t *testing.T) {
	data := tree.NewMap()
	data.Set("api_key", "sekrit")

	svc := app.NewService(app.Options{
		Source:          &staticSource{data: data},
		Cipher:          brokenCipher{},
		Logger:          zerolog.Nop(),
		EncryptedFields: map[string]any{"api_key": true},
	})
	if err := svc.Load(context.Background()); err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	collector := metrics.New(prometheus.NewRegistry())
	h := httpadapter.NewHandler(svc, collector, zerolog.Nop())

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/config", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/config/api_key", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}

	if got := testutil.ToFloat64(collector.DecryptFailures); got != 2 {
		t.Errorf("decrypt_failures_total = %v, want 2", got)
	}
}

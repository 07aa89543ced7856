package registry

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/denghongcai/npm-dep-tree-analyzer/metrics"
	"github.com/denghongcai/npm-dep-tree-analyzer/models"
)

var testLog = slog.New(slog.DiscardHandler)

func TestGet(t *testing.T) {
	ctx := context.Background()

	t.Run("fetches and parses the metadata document", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{
				"name": "lodash",
				"dist-tags": {"latest": "4.17.21"},
				"versions": {
					"4.17.21": {"name": "lodash", "version": "4.17.21"}
				}
			}`))
		}))
		defer srv.Close()

		client := New(testLog, Options{URL: srv.URL}, metrics.Metrics{})
		doc, err := client.Get(ctx, "lodash")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		expected := models.Document{
			Name:     "lodash",
			DistTags: map[string]string{"latest": "4.17.21"},
			Versions: map[string]models.Version{
				"4.17.21": {Name: "lodash", Version: "4.17.21"},
			},
		}
		if diff := cmp.Diff(expected, doc); diff != "" {
			t.Error(diff)
		}
	})

	t.Run("scoped names encode the slash", func(t *testing.T) {
		var requestedPath string
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestedPath = r.URL.EscapedPath()
			w.Write([]byte(`{"name": "@scope/pkg", "dist-tags": {}, "versions": {}}`))
		}))
		defer srv.Close()

		client := New(testLog, Options{URL: srv.URL}, metrics.Metrics{})
		if _, err := client.Get(ctx, "@scope/pkg"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if requestedPath != "/@scope%2Fpkg" {
			t.Errorf("unexpected request path: got %q, want %q", requestedPath, "/@scope%2Fpkg")
		}
	})

	t.Run("default accept header is sent and caller headers win", func(t *testing.T) {
		var accept, auth string
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			accept = r.Header.Get("Accept")
			auth = r.Header.Get("Authorization")
			w.Write([]byte(`{"name": "x", "dist-tags": {}, "versions": {}}`))
		}))
		defer srv.Close()

		client := New(testLog, Options{URL: srv.URL, Headers: map[string]string{"Authorization": "Bearer token"}}, metrics.Metrics{})
		if _, err := client.Get(ctx, "x"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if accept != "application/json" {
			t.Errorf("unexpected accept header: %q", accept)
		}
		if auth != "Bearer token" {
			t.Errorf("unexpected authorization header: %q", auth)
		}

		client = New(testLog, Options{URL: srv.URL, Headers: map[string]string{"Accept": "application/vnd.npm.install-v1+json"}}, metrics.Metrics{})
		if _, err := client.Get(ctx, "x"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if accept != "application/vnd.npm.install-v1+json" {
			t.Errorf("caller accept header should win: %q", accept)
		}
	})

	t.Run("non-2xx status is a not found error", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "not found", http.StatusNotFound)
		}))
		defer srv.Close()

		client := New(testLog, Options{URL: srv.URL}, metrics.Metrics{})
		_, err := client.Get(ctx, "missing-package")
		var notFound *NotFoundError
		if !errors.As(err, &notFound) {
			t.Fatalf("expected NotFoundError, got %v", err)
		}
		if notFound.Name != "missing-package" {
			t.Errorf("unexpected name: %q", notFound.Name)
		}
	})

	t.Run("unparseable body is a not found error", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("not json"))
		}))
		defer srv.Close()

		client := New(testLog, Options{URL: srv.URL}, metrics.Metrics{})
		_, err := client.Get(ctx, "garbled")
		var notFound *NotFoundError
		if !errors.As(err, &notFound) {
			t.Fatalf("expected NotFoundError, got %v", err)
		}
		if notFound.Unwrap() == nil {
			t.Error("expected a cause to be attached")
		}
	})

	t.Run("timeout aborts the request with the cause attached", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			time.Sleep(500 * time.Millisecond)
			w.Write([]byte(`{}`))
		}))
		defer srv.Close()

		client := New(testLog, Options{URL: srv.URL, Timeout: time.Millisecond}, metrics.Metrics{})
		start := time.Now()
		_, err := client.Get(ctx, "slow-package")
		elapsed := time.Since(start)

		var notFound *NotFoundError
		if !errors.As(err, &notFound) {
			t.Fatalf("expected NotFoundError, got %v", err)
		}
		if notFound.Unwrap() == nil {
			t.Error("expected the transport error as cause")
		}
		if elapsed > 250*time.Millisecond {
			t.Errorf("expected fast failure, took %v", elapsed)
		}
	})
}

func TestNotFoundError(t *testing.T) {
	t.Run("includes descriptor and reason", func(t *testing.T) {
		err := &NotFoundError{Name: "express", Descriptor: "^99.0.0", Reason: "no matching version found"}
		expected := "package not found: express@^99.0.0: no matching version found"
		if err.Error() != expected {
			t.Errorf("got %q, want %q", err.Error(), expected)
		}
	})
	t.Run("wraps the cause", func(t *testing.T) {
		cause := errors.New("connection refused")
		err := &NotFoundError{Name: "express", Err: cause}
		if !errors.Is(err, cause) {
			t.Error("expected errors.Is to find the cause")
		}
	})
}

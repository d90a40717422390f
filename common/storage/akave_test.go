package storage

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/p2pml/training-dispatcher/common"
	"github.com/p2pml/training-dispatcher/common/config"
)

func testStoreConfig() config.StoreConfig {
	return config.StoreConfig{
		Endpoint:       "store.local:9000",
		Bucket:         "test-bucket",
		RequestTimeout: 100 * time.Millisecond,
	}
}

func TestNewAkaveStoreValidation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.StoreConfig)
	}{
		{"missing endpoint", func(c *config.StoreConfig) { c.Endpoint = "" }},
		{"missing bucket", func(c *config.StoreConfig) { c.Bucket = "  " }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testStoreConfig()
			tt.mutate(&cfg)

			_, err := NewAkaveStore(cfg)
			if !errors.Is(err, common.ErrInvalidConfig) {
				t.Errorf("Expected ErrInvalidConfig, got %v", err)
			}
		})
	}
}

func TestFetch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/manifest":
			w.Write([]byte("chunk-a,chunk-b"))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	store, err := NewAkaveStore(testStoreConfig())
	if err != nil {
		t.Fatal(err)
	}

	content, err := store.Fetch(context.Background(), server.URL+"/manifest")
	if err != nil {
		t.Fatal(err)
	}
	if string(content) != "chunk-a,chunk-b" {
		t.Errorf("Unexpected manifest content: %q", content)
	}

	if _, err := store.Fetch(context.Background(), server.URL+"/missing"); err == nil {
		t.Error("Expected an error for a non-200 response")
	}
}

func TestFetchBoundedByRequestTimeout(t *testing.T) {
	// A hung upstream must not stall the caller past the configured
	// request timeout.
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(10 * time.Second):
		case <-r.Context().Done():
		}
	}))
	defer server.Close()

	store, err := NewAkaveStore(testStoreConfig())
	if err != nil {
		t.Fatal(err)
	}

	start := time.Now()
	_, err = store.Fetch(context.Background(), server.URL)
	if err == nil {
		t.Fatal("Expected a timeout error, got none")
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("Fetch was not bounded by the request timeout, took %v", elapsed)
	}
}

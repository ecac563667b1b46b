package search

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHydeGenerator_Generate(t *testing.T) {
	var gotReq generateRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/generate", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))
		_ = json.NewEncoder(w).Encode(generateResponse{
			Response: "  A deadlock is a state where processes wait forever.  ",
			Done:     true,
		})
	}))
	defer srv.Close()

	g := NewHydeGenerator(HydeConfig{Host: srv.URL})
	answer, err := g.Generate(context.Background(), "what is a deadlock?")
	require.NoError(t, err)

	assert.Equal(t, "A deadlock is a state where processes wait forever.", answer)
	assert.Equal(t, DefaultHydeModel, gotReq.Model)
	assert.False(t, gotReq.Stream)
	assert.Contains(t, gotReq.Prompt, `"what is a deadlock?"`)
	assert.Contains(t, gotReq.Prompt, "2-3 sentences")
	assert.Equal(t, DefaultHydeMaxTokens, gotReq.Options.NumPredict)
	assert.InDelta(t, DefaultHydeTemperature, gotReq.Options.Temperature, 1e-9)
}

func TestHydeGenerator_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not loaded", http.StatusInternalServerError)
	}))
	defer srv.Close()

	g := NewHydeGenerator(HydeConfig{Host: srv.URL})
	_, err := g.Generate(context.Background(), "what is paging")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 500")
}

func TestHydeGenerator_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	srv.Close() // immediately closed: connection refused

	g := NewHydeGenerator(HydeConfig{Host: srv.URL})
	_, err := g.Generate(context.Background(), "what is paging")
	assert.Error(t, err)
	assert.False(t, g.Available(context.Background()))
}

func TestHydeGenerator_Available(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/tags", r.URL.Path)
		_, _ = w.Write([]byte(`{"models":[]}`))
	}))
	defer srv.Close()

	g := NewHydeGenerator(HydeConfig{Host: srv.URL})
	assert.True(t, g.Available(context.Background()))
}

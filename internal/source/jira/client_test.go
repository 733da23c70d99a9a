package jira

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/jira-import/internal/credential"
)

func TestNewClientTrimsBaseURL(t *testing.T) {
	c := NewClient(credential.Jira{BaseURL: "https://jira.example.com/", Token: "t"})
	assert.Equal(t, "https://jira.example.com", c.BaseURL())
	assert.Equal(t, "https://jira.example.com/browse/QA-1", c.BrowseURL("QA-1"))
}

func TestClientBearerAuth(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer pat", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Accept"))
		json.NewEncoder(w).Encode(map[string]string{"name": "qa"})
	}))
	defer server.Close()

	c := NewClient(credential.Jira{BaseURL: server.URL, Token: "pat"})
	var out map[string]string
	require.NoError(t, c.Get(context.Background(), "/rest/api/2/myself", &out))
	assert.Equal(t, "qa", out["name"])
}

func TestClientBasicAuthWithUsername(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "qa", user)
		assert.Equal(t, "secret", pass)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	c := NewClient(credential.Jira{BaseURL: server.URL, Username: "qa", Token: "secret"})
	require.NoError(t, c.Get(context.Background(), "/x", nil))
}

func TestClientUnauthorized(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	c := NewClient(credential.Jira{BaseURL: server.URL, Token: "bad"})
	err := c.Get(context.Background(), "/x", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestClientAPIErrorMessages(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"errorMessages":["Field 'foo' does not exist"]}`))
	}))
	defer server.Close()

	c := NewClient(credential.Jira{BaseURL: server.URL, Token: "t"})
	err := c.Post(context.Background(), "/rest/api/2/search", map[string]string{"jql": "foo=1"}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Field 'foo' does not exist")
}

func TestClientRetriesRateLimit(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "x", body["q"], "body is resent on retry")

		if calls.Add(1) == 1 {
			w.Header().Set("Retry-After", "0")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte(`{"ok":"yes"}`))
	}))
	defer server.Close()

	c := NewClient(credential.Jira{BaseURL: server.URL, Token: "t"})
	var out map[string]string
	require.NoError(t, c.Post(context.Background(), "/x", map[string]string{"q": "x"}, &out))
	assert.Equal(t, "yes", out["ok"])
	assert.EqualValues(t, 2, calls.Load())
}

func TestClientGivesUpAfterMaxRetries(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	c := NewClient(credential.Jira{BaseURL: server.URL, Token: "t"}, WithMaxBackoff(time.Millisecond))
	err := c.Get(context.Background(), "/x", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "max retries")
	assert.EqualValues(t, 4, calls.Load())
}

package cli

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorded struct {
	method string
	path   string
	auth   string
	body   map[string]any
}

func newAPI(t *testing.T, status int, reply any) (*httptest.Server, *[]recorded) {
	t.Helper()
	var calls []recorded
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := recorded{method: r.Method, path: r.URL.RequestURI(), auth: r.Header.Get("Authorization")}
		if r.Body != nil {
			_ = json.NewDecoder(r.Body).Decode(&rec.body)
		}
		calls = append(calls, rec)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(reply)
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func TestClientSendsTokenAndDecodes(t *testing.T) {
	srv, calls := newAPI(t, http.StatusOK, map[string]any{"currentDay": 3})
	client := NewClient(srv.URL+"/", "tok")

	out, err := client.Advance(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3.0, out["currentDay"])

	require.Len(t, *calls, 1)
	assert.Equal(t, http.MethodPost, (*calls)[0].method)
	assert.Equal(t, "/api/v1/admin/day/advance", (*calls)[0].path)
	assert.Equal(t, "Bearer tok", (*calls)[0].auth)
}

func TestConfigureAutoOmitsIntervalWhenUnset(t *testing.T) {
	srv, calls := newAPI(t, http.StatusOK, map[string]any{})
	client := NewClient(srv.URL, "")

	_, err := client.ConfigureAuto(context.Background(), false, nil)
	require.NoError(t, err)
	minutes := 2.5
	_, err = client.ConfigureAuto(context.Background(), true, &minutes)
	require.NoError(t, err)

	require.Len(t, *calls, 2)
	assert.Equal(t, map[string]any{"enabled": false}, (*calls)[0].body)
	assert.Equal(t, map[string]any{"enabled": true, "intervalMinutes": 2.5}, (*calls)[1].body)
	assert.Empty(t, (*calls)[0].auth)
}

func TestAPIErrorCarriesServerMessage(t *testing.T) {
	srv, _ := newAPI(t, http.StatusBadRequest, map[string]any{"error": "Simulation is not active"})
	client := NewClient(srv.URL, "tok")

	_, err := client.Stop(context.Background())
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusBadRequest, apiErr.Status)
	assert.Equal(t, "Simulation is not active", apiErr.Message)
}

func TestLeaderboardQuery(t *testing.T) {
	srv, calls := newAPI(t, http.StatusOK, map[string]any{"entries": []any{}})
	client := NewClient(srv.URL, "")

	_, err := client.Leaderboard(context.Background(), 0)
	require.NoError(t, err)
	_, err = client.Leaderboard(context.Background(), 5)
	require.NoError(t, err)

	assert.Equal(t, "/api/v1/public/leaderboard", (*calls)[0].path)
	assert.Equal(t, "/api/v1/public/leaderboard?limit=5", (*calls)[1].path)
}

package temporal

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newTestResolver() *Resolver {
	return &Resolver{
		explorers:  map[string]ExplorerConfig{},
		httpClient: &http.Client{Timeout: 2 * time.Second},
		log:        slog.Default(),
	}
}

func TestExplorerPast(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		fmt.Fprint(w, `{"status":"1","message":"OK","result":{"timeStamp":"1700000000"}}`)
	}))
	defer srv.Close()

	r := newTestResolver()
	ts, ok := r.explorerPast(context.Background(), ExplorerConfig{APIURL: srv.URL}, 100)
	require.True(t, ok)
	require.Equal(t, int64(1700000000), ts.Unix())
}

func TestExplorerPastBadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		fmt.Fprint(w, `{"status":"0","message":"NOTOK","result":{"timeStamp":""}}`)
	}))
	defer srv.Close()

	r := newTestResolver()
	_, ok := r.explorerPast(context.Background(), ExplorerConfig{APIURL: srv.URL}, 100)
	require.False(t, ok)
}

func TestExplorerFuture(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		fmt.Fprint(w, `{"status":"1","result":{"EstimateTimeInSec":"120"}}`)
	}))
	defer srv.Close()

	r := newTestResolver()
	before := time.Now()
	ts, ok := r.explorerFuture(context.Background(), ExplorerConfig{APIURL: srv.URL}, 100)
	require.True(t, ok)
	require.WithinDuration(t, before.Add(120*time.Second), ts, 5*time.Second)
}

func TestGetJSONRetriesThenSucceeds(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		calls++
		if calls < 2 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		fmt.Fprint(w, `{"status":"1","result":{"timeStamp":"42"}}`)
	}))
	defer srv.Close()

	r := newTestResolver()
	r.sleepBackoffOverride = func() time.Duration { return 0 }
	var out blockRewardResponse
	err := r.getJSON(context.Background(), srv.URL, &out)
	require.NoError(t, err)
	require.Equal(t, "42", out.Result.TimeStamp)
	require.GreaterOrEqual(t, calls, 2)
}

func TestGetJSONExhaustsRetries(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	r := newTestResolver()
	r.sleepBackoffOverride = func() time.Duration { return 0 }
	var out blockRewardResponse
	err := r.getJSON(context.Background(), srv.URL, &out)
	require.Error(t, err)
}

package policetocitizen

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jaisonv/cad-calls/lib/telemetry"

	"github.com/stretchr/testify/require"
)

func mustSpec(t *testing.T, method Transport) RequestSpec {
	t.Helper()
	spec, err := BuildRequestSpec(386, true, false, 5, 0, "", method)
	require.NoError(t, err)
	return spec
}

func mustClient(t *testing.T, baseUrl string, timeout time.Duration) *Client {
	t.Helper()
	client, err := NewClient(ClientOptions{
		BaseUrl:   baseUrl,
		VerifySsl: true,
		Timeout:   timeout,
	})
	require.NoError(t, err)
	return client
}

const fiveCallsBody = `{"CADCalls":[
	{"IncidentId":"24-001","CallType":"In Progress","Agency":"South Miami PD"},
	{"IncidentId":"24-002","CallType":"In Progress","Agency":"South Miami PD"},
	{"IncidentId":"24-003","CallType":"Dispatched","Agency":"South Miami PD"},
	{"IncidentId":"24-004","CallType":"On Scene","Agency":"South Miami PD"},
	{"IncidentId":"24-005","CallType":"In Progress","Agency":"South Miami PD"}
],"Total":5}`

func TestFetchCallsPost(t *testing.T) {
	cleanup := telemetry.SetupForTesting(t, "test:scrapers/policetocitizen")
	defer cleanup()

	requests := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/api/CADCalls/386", r.URL.Path)

		var payload map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		require.Contains(t, payload, "IncludeOpenCalls")
		require.Contains(t, payload, "PagingOptions")

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(fiveCallsBody))
	}))
	defer server.Close()

	client := mustClient(t, server.URL, 0)
	set, err := client.FetchCalls(context.Background(), mustSpec(t, TransportPost))
	require.NoError(t, err)

	require.Equal(t, 1, requests)
	require.Equal(t, 386, set.AgencyId)
	require.Equal(t, "South Miami PD", set.AgencyName)
	require.Equal(t, 5, set.Total)
	require.Len(t, set.Calls, 5)
	require.Equal(t, "24-001", set.Calls[0].Text("IncidentId"))
	require.Equal(t, "24-005", set.Calls[4].Text("IncidentId"))
	require.False(t, set.Retrieved.IsZero())
}

func TestFetchCallsFallsBackOn500(t *testing.T) {
	var methods []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		methods = append(methods, r.Method)
		if r.Method == http.MethodPost {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		require.Equal(t, "true", r.URL.Query().Get("includeOpen"))
		require.Equal(t, "5", r.URL.Query().Get("take"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(fiveCallsBody))
	}))
	defer server.Close()

	client := mustClient(t, server.URL, 0)
	set, err := client.FetchCalls(context.Background(), mustSpec(t, TransportPost))
	require.NoError(t, err)

	// exactly one fallback, POST then GET
	require.Equal(t, []string{http.MethodPost, http.MethodGet}, methods)
	require.Len(t, set.Calls, 5)
}

func TestFetchCallsNoSecondFallback(t *testing.T) {
	requests := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := mustClient(t, server.URL, 0)
	_, err := client.FetchCalls(context.Background(), mustSpec(t, TransportPost))
	require.Error(t, err)

	require.Equal(t, 2, requests)

	var failure *Failure
	require.True(t, errors.As(err, &failure))
	require.Equal(t, HttpError, failure.Kind)
	require.Equal(t, 500, failure.Status)
	require.Equal(t, TransportGet, failure.Method)
}

func TestFetchCallsGetConfigured(t *testing.T) {
	requests := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		require.Equal(t, http.MethodGet, r.Method)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(fiveCallsBody))
	}))
	defer server.Close()

	client := mustClient(t, server.URL, 0)
	set, err := client.FetchCalls(context.Background(), mustSpec(t, TransportGet))
	require.NoError(t, err)

	// GET as the configured encoding is the only attempt
	require.Equal(t, 1, requests)
	require.Len(t, set.Calls, 5)
}

func TestFetchCallsBlockedDoesNotFallBack(t *testing.T) {
	requests := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		w.Header().Set("X-WAF", "blocked")
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte("forbidden"))
	}))
	defer server.Close()

	client := mustClient(t, server.URL, 0)
	_, err := client.FetchCalls(context.Background(), mustSpec(t, TransportPost))
	require.Error(t, err)
	require.Equal(t, 1, requests)

	var failure *Failure
	require.True(t, errors.As(err, &failure))
	require.Equal(t, Blocked, failure.Kind)
	require.Equal(t, 403, failure.Status)
}

func TestFetchCallsTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(time.Second * 2)
	}))
	defer server.Close()

	client := mustClient(t, server.URL, time.Millisecond*100)
	_, err := client.FetchCalls(context.Background(), mustSpec(t, TransportGet))
	require.Error(t, err)

	var failure *Failure
	require.True(t, errors.As(err, &failure))
	require.Equal(t, Timeout, failure.Kind)
}

func TestFetchCallsConnectionError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	baseUrl := server.URL
	server.Close()

	client := mustClient(t, baseUrl, 0)
	_, err := client.FetchCalls(context.Background(), mustSpec(t, TransportGet))
	require.Error(t, err)

	var failure *Failure
	require.True(t, errors.As(err, &failure))
	require.Equal(t, ConnectionError, failure.Kind)
}

func TestInvalidSpecNeverHitsNetwork(t *testing.T) {
	requests := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
	}))
	defer server.Close()

	_, err := BuildRequestSpec(386, true, false, 0, 0, "", TransportPost)
	require.Error(t, err)
	require.Equal(t, 0, requests)
}

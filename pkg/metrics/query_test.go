package metrics

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sample struct {
	labels map[string]string
	value  string
}

// fakePrometheus answers /api/v1/query with the samples whose key is a
// substring of the query.
func fakePrometheus(t *testing.T, answers map[string][]sample) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, r.ParseForm())
		assert.Equal(t, "/api/v1/query", r.URL.Path)
		query := r.Form.Get("query")

		var results []string
		for key, samples := range answers {
			if !strings.Contains(query, key) {
				continue
			}
			for _, s := range samples {
				var labels []string
				for k, v := range s.labels {
					labels = append(labels, fmt.Sprintf("%q:%q", k, v))
				}
				results = append(results, fmt.Sprintf(`{"metric":{%s},"value":[1700000000,%q]}`, strings.Join(labels, ","), s.value))
			}
			break
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"status":"success","data":{"resultType":"vector","result":[%s]}}`, strings.Join(results, ","))
	}))
}

func TestSessionUsage(t *testing.T) {
	server := fakePrometheus(t, map[string][]sample{
		`type="prompt"`:           {{value: "120"}},
		`type="completion"`:       {{value: "30"}},
		`ganesha_llm_costs_total`: {{value: "0.45"}},
	})
	defer server.Close()

	q, err := NewQueryService(server.URL)
	require.NoError(t, err)

	usage, err := q.SessionUsage(context.Background(), "session-1")
	require.NoError(t, err)
	assert.Equal(t, "session-1", usage.SessionID)
	assert.Equal(t, int64(120), usage.PromptTokens)
	assert.Equal(t, int64(30), usage.CompletionTokens)
	assert.Equal(t, int64(150), usage.TotalTokens)
	assert.InDelta(t, 0.45, usage.TotalCost, 1e-9)
}

func TestSessionUsageEmpty(t *testing.T) {
	server := fakePrometheus(t, nil)
	defer server.Close()

	q, err := NewQueryService(server.URL)
	require.NoError(t, err)

	usage, err := q.SessionUsage(context.Background(), "nothing")
	require.NoError(t, err)
	assert.Zero(t, usage.TotalTokens)
	assert.Zero(t, usage.TotalCost)
}

func TestSessionUsageByProvider(t *testing.T) {
	server := fakePrometheus(t, map[string][]sample{
		`ganesha_llm_tokens_total`: {
			{labels: map[string]string{"provider": "beast", "type": "prompt"}, value: "100"},
			{labels: map[string]string{"provider": "beast", "type": "completion"}, value: "20"},
			{labels: map[string]string{"provider": "sonnet", "type": "prompt"}, value: "7"},
		},
		`ganesha_llm_costs_total`: {
			{labels: map[string]string{"provider": "sonnet"}, value: "0.021"},
		},
	})
	defer server.Close()

	q, err := NewQueryService(server.URL)
	require.NoError(t, err)

	got, err := q.SessionUsageByProvider(context.Background(), "s")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, int64(120), got["beast"].TotalTokens)
	assert.Zero(t, got["beast"].TotalCost)
	assert.Equal(t, int64(7), got["sonnet"].PromptTokens)
	assert.InDelta(t, 0.021, got["sonnet"].TotalCost, 1e-9)
}

func TestSessionUsageServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"status":"error","errorType":"bad_data","error":"parse error"}`)
	}))
	defer server.Close()

	q, err := NewQueryService(server.URL)
	require.NoError(t, err)
	_, err = q.SessionUsage(context.Background(), "s")
	assert.Error(t, err)
}

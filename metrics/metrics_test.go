package metrics

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finbot/finbench/core"
)

func TestRecorderExposesResults(t *testing.T) {
	t.Parallel()

	r := NewRecorder()
	r.RecordResult(&core.Result{
		Pipeline: "finance-bot-tests",
		Failed:   true,
		ExitCode: 2,
		Duration: 3 * time.Second,
	})
	r.RecordResult(&core.Result{
		Pipeline: "finance-bot-tests",
		Duration: 2 * time.Second,
	})

	req := httptest.NewRequest("GET", "/metrics", nil)
	w := httptest.NewRecorder()
	r.Handler().ServeHTTP(w, req)

	require.Equal(t, 200, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, `finbench_pipeline_runs_total{outcome="failure",pipeline="finance-bot-tests"} 1`)
	assert.Contains(t, body, `finbench_pipeline_runs_total{outcome="success",pipeline="finance-bot-tests"} 1`)
	assert.Contains(t, body, `finbench_pipeline_last_exit_code{pipeline="finance-bot-tests"} 0`)
}

func TestRecordersAreIndependent(t *testing.T) {
	t.Parallel()

	a := NewRecorder()
	b := NewRecorder()
	a.RecordResult(&core.Result{Pipeline: "p"})

	req := httptest.NewRequest("GET", "/metrics", nil)
	w := httptest.NewRecorder()
	b.Handler().ServeHTTP(w, req)
	assert.NotContains(t, w.Body.String(), `pipeline="p"`)
}

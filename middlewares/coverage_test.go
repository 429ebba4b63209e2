package middlewares

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finbot/finbench/core"
)

const passingRunOutput = `
tests/test_transactions.py::test_create PASSED
tests/test_budgets.py::test_limit PASSED

---------- coverage: platform linux, python 3.11 ----------
Name                      Stmts   Miss  Cover
---------------------------------------------
app/config.py                30      2    93%
app/models.py               120     10    92%
---------------------------------------------
TOTAL                       150     12    92%

========== 42 passed in 3.21s ==========
`

const lowCoverageRunOutput = `
---------- coverage: platform linux, python 3.11 ----------
Name                      Stmts   Miss  Cover
---------------------------------------------
TOTAL                       150     60    60%
`

func TestNewCoverageEmpty(t *testing.T) {
	t.Parallel()
	assert.Nil(t, NewCoverage(&CoverageConfig{}))
}

func TestParseCoverage(t *testing.T) {
	t.Parallel()

	pct, ok := ParseCoverage(passingRunOutput)
	require.True(t, ok)
	assert.InDelta(t, 92.0, pct, 0.001)

	pct, ok = ParseCoverage("TOTAL    100    5    95.5%")
	require.True(t, ok)
	assert.InDelta(t, 95.5, pct, 0.001)

	_, ok = ParseCoverage("no summary here")
	assert.False(t, ok)
}

func TestCoverageGatePasses(t *testing.T) {
	t.Parallel()
	ctx, _ := setupTestContext(t)

	ctx.Start()
	_, _ = ctx.Execution.OutputStream.Write([]byte(passingRunOutput))

	m := NewCoverage(&CoverageConfig{MinCoverage: 80})
	require.NoError(t, m.Run(ctx))
	assert.False(t, ctx.Execution.Failed)
}

func TestCoverageGateFails(t *testing.T) {
	t.Parallel()
	ctx, _ := setupTestContext(t)

	ctx.Start()
	_, _ = ctx.Execution.OutputStream.Write([]byte(lowCoverageRunOutput))

	m := NewCoverage(&CoverageConfig{MinCoverage: 80})
	err := m.Run(ctx)
	require.Error(t, err)
	assert.True(t, ctx.Execution.Failed)
	assert.Contains(t, err.Error(), "below the required")
}

func TestCoverageGateSkipsWithoutSummary(t *testing.T) {
	t.Parallel()
	ctx, _ := setupTestContext(t)

	ctx.Start()
	_, _ = ctx.Execution.OutputStream.Write([]byte("1 passed"))

	m := NewCoverage(&CoverageConfig{MinCoverage: 80})
	require.NoError(t, m.Run(ctx))
	assert.False(t, ctx.Execution.Failed)
}

// verdictRecorder captures the execution verdict an outer reporter
// middleware observes once the inner chain returns.
type verdictRecorder struct {
	sawFailed bool
	sawError  error
}

func (m *verdictRecorder) ContinueOnStop() bool {
	return true
}

func (m *verdictRecorder) Run(ctx *core.Context) error {
	err := ctx.Next()
	m.sawFailed = ctx.Execution.Failed
	m.sawError = ctx.Execution.Error
	return err
}

func TestCoverageGateVerdictVisibleToReporters(t *testing.T) {
	t.Parallel()

	// Reporters wrap the gate, so the gate must flip the verdict before
	// they observe the execution.
	task := &TestTask{}
	recorder := &verdictRecorder{}
	task.Use(recorder)
	task.Use(NewCoverage(&CoverageConfig{MinCoverage: 80}))

	e, err := core.NewExecution()
	require.NoError(t, err)
	ctx := core.NewContext(core.NewPipeline("test", &TestLogger{}), task, e)

	ctx.Start()
	_, _ = e.OutputStream.Write([]byte(lowCoverageRunOutput))
	require.NoError(t, ctx.Next())

	assert.True(t, recorder.sawFailed)
	require.Error(t, recorder.sawError)
	assert.Contains(t, recorder.sawError.Error(), "below the required")
	assert.True(t, e.Failed)
}

func TestCoverageGateIgnoresFailedRuns(t *testing.T) {
	t.Parallel()
	ctx, _ := setupTestContext(t)

	ctx.Start()
	_, _ = ctx.Execution.OutputStream.Write([]byte(lowCoverageRunOutput))
	ctx.Execution.Failed = true

	// A failed test run keeps its own error; the gate stays out of the way.
	m := NewCoverage(&CoverageConfig{MinCoverage: 80})
	require.NoError(t, m.Run(ctx))
}

package middlewares

import (
	"fmt"
	"regexp"
	"strconv"

	"github.com/finbot/finbench/core"
)

// pytest-cov prints a summary table ending in a TOTAL row, e.g.
// "TOTAL    423    61    86%". The percentage may carry decimals when
// --cov-precision is set.
var coverageTotalRe = regexp.MustCompile(`(?m)^TOTAL\s+.*?(\d+(?:\.\d+)?)%\s*$`)

// CoverageConfig configuration for the Coverage middleware
type CoverageConfig struct {
	// MinCoverage is the percentage below which the stage fails even when
	// every test passed. Zero disables the gate.
	MinCoverage float64 `gcfg:"min-coverage" mapstructure:"min-coverage"`
}

// NewCoverage returns a Coverage middleware if a threshold is configured
func NewCoverage(c *CoverageConfig) core.Middleware {
	var m core.Middleware
	if !IsEmpty(c) {
		m = &Coverage{*c}
	}

	return m
}

// Coverage enforces a minimum test-coverage percentage by parsing the
// coverage summary from the stage's stdout. Independent from the report
// artifacts: the HTML report is written by the runner itself, the gate only
// decides pass or fail.
type Coverage struct {
	CoverageConfig
}

// ContinueOnStop returns false; there is nothing to gate when the stage
// already stopped.
func (m *Coverage) ContinueOnStop() bool {
	return false
}

// Run lets the stage execute, then fails it when the reported total
// coverage is below the configured minimum.
func (m *Coverage) Run(ctx *core.Context) error {
	if err := ctx.Next(); err != nil {
		return err
	}

	if ctx.Execution.Failed || ctx.Execution.Skipped || m.MinCoverage <= 0 {
		return nil
	}

	pct, ok := ParseCoverage(ctx.Execution.GetStdout())
	if !ok {
		ctx.Warn("No coverage summary found in output, skipping coverage gate")
		return nil
	}

	if pct < m.MinCoverage {
		err := fmt.Errorf("coverage %.1f%% is below the required %.1f%%", pct, m.MinCoverage)
		// The inner chain has already stopped the execution as successful, so
		// the verdict is flipped on the execution itself.
		ctx.Execution.Failed = true
		ctx.Execution.Error = err
		ctx.Log("Coverage gate failed: " + err.Error())
		return err
	}

	ctx.Log(fmt.Sprintf("Coverage gate passed: %.1f%% >= %.1f%%", pct, m.MinCoverage))
	return nil
}

// ParseCoverage extracts the total coverage percentage from a test run's
// output. The second return value reports whether a summary was found.
func ParseCoverage(output string) (float64, bool) {
	matches := coverageTotalRe.FindStringSubmatch(output)
	if matches == nil {
		return 0, false
	}

	pct, err := strconv.ParseFloat(matches[1], 64)
	if err != nil {
		return 0, false
	}
	return pct, true
}

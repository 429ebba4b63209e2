package middlewares

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSlackEmpty(t *testing.T) {
	t.Parallel()
	assert.Nil(t, NewSlack(&SlackConfig{}))
}

func TestSlackRunSuccess(t *testing.T) {
	t.Parallel()
	ctx, _ := setupTestContext(t)

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var m slackMessage
		_ = json.Unmarshal([]byte(r.FormValue(slackPayloadVar)), &m)
		assert.Equal(t, "Execution successful", m.Attachments[0].Title)
	}))
	defer ts.Close()

	ctx.Start()
	ctx.Stop(nil)

	m := NewSlack(&SlackConfig{SlackWebhook: ts.URL})
	require.NoError(t, m.Run(ctx))
}

func TestSlackRunFailed(t *testing.T) {
	t.Parallel()
	ctx, _ := setupTestContext(t)

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var m slackMessage
		_ = json.Unmarshal([]byte(r.FormValue(slackPayloadVar)), &m)
		assert.Equal(t, "Execution failed", m.Attachments[0].Title)
	}))
	defer ts.Close()

	ctx.Start()
	ctx.Stop(errors.New("pytest exited 1"))

	m := NewSlack(&SlackConfig{SlackWebhook: ts.URL})
	require.NoError(t, m.Run(ctx))
}

func TestSlackOnlyOnErrorSkipsSuccess(t *testing.T) {
	t.Parallel()
	ctx, _ := setupTestContext(t)

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("should not be called")
	}))
	defer ts.Close()

	ctx.Start()
	ctx.Stop(nil)

	m := NewSlack(&SlackConfig{SlackWebhook: ts.URL, SlackOnlyOnError: true})
	require.NoError(t, m.Run(ctx))
}

func TestSlackInvalidWebhookURL(t *testing.T) {
	t.Parallel()
	ctx, _ := setupTestContext(t)

	ctx.Start()
	ctx.Stop(nil)

	m := NewSlack(&SlackConfig{SlackWebhook: "::not-a-url"})
	require.NoError(t, m.Run(ctx))
}

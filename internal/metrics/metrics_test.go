package metrics

import (
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valyala/fasthttp"
)

func TestSubmissionCounters(t *testing.T) {
	c := New()
	c.Submission("health", "IN", OutcomeSuccess, 120*time.Millisecond)
	c.Submission("health", "IN", OutcomeDiscarded, time.Second)
	c.Submission("life", "IN", OutcomeInvalid, 0)

	assert.Equal(t, 1.0, testutil.ToFloat64(c.submissions.WithLabelValues("health", "IN", OutcomeSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.discarded))
	assert.Equal(t, 1, testutil.CollectAndCount(c.submitDuration))
}

func TestHandlerExposesRegistry(t *testing.T) {
	c := New()
	c.SessionStarted("life", "AU")
	c.SetLiveSessions(3)

	var req fasthttp.Request
	req.SetRequestURI("http://localhost/metrics")
	var ctx fasthttp.RequestCtx
	ctx.Init(&req, nil, nil)
	c.Handler()(&ctx)

	require.Equal(t, fasthttp.StatusOK, ctx.Response.StatusCode())
	body := string(ctx.Response.Body())
	assert.True(t, strings.Contains(body, `quote_wizard_sessions_started_total{country="AU",product="life"} 1`))
	assert.True(t, strings.Contains(body, "quote_wizard_sessions_live 3"))
}

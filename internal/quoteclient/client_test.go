package quoteclient

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttputil"

	"quote-wizard/internal/model"
)

func serve(t *testing.T, h fasthttp.RequestHandler, timeout time.Duration) *Client {
	t.Helper()
	ln := fasthttputil.NewInmemoryListener()
	srv := &fasthttp.Server{Handler: h}
	go srv.Serve(ln) //nolint:errcheck
	t.Cleanup(func() { _ = ln.Close() })

	c, err := New("http://recommender.test", timeout, nil, WithDial(func(string) (net.Conn, error) {
		return ln.Dial()
	}))
	require.NoError(t, err)
	return c
}

func healthRequest() *model.QuoteRequest {
	return &model.QuoteRequest{
		Country:    "INDIA",
		PolicyType: "HEALTH",
		Fields:     map[string]any{"age": 25, "sumassured": 150000},
	}
}

func TestRecommendSuccess(t *testing.T) {
	var gotBody map[string]any
	var gotPath, gotMethod string
	c := serve(t, func(ctx *fasthttp.RequestCtx) {
		gotPath = string(ctx.Path())
		gotMethod = string(ctx.Method())
		_ = json.Unmarshal(ctx.PostBody(), &gotBody)
		ctx.SetContentType("application/json")
		ctx.SetBodyString(`{
			"prediction": {
				"recommended_tier": "Premium",
				"all_tiers": {"Premium": 3000, "Basic": 1000, "Standard": 2000},
				"confidence": {"premium": 0.82},
				"policytype": "HEALTH"
			},
			"explanation": {"Premium": "Best cover", "why_recommended": "Young and healthy", "score": 3}
		}`)
	}, time.Second)

	res, err := c.Recommend(context.Background(), healthRequest())
	require.NoError(t, err)

	assert.Equal(t, "/recommend", gotPath)
	assert.Equal(t, fasthttp.MethodPost, gotMethod)
	assert.Equal(t, "INDIA", gotBody["country"])
	assert.Equal(t, "HEALTH", gotBody["policy_type"])
	assert.EqualValues(t, 150000, gotBody["sumassured"])

	assert.Equal(t, "Premium", res.RecommendedTier)
	require.Len(t, res.AllTiers, 3)
	assert.Equal(t, "Premium", res.AllTiers[0].Name)
	assert.Equal(t, "Basic", res.AllTiers[1].Name)
	assert.Equal(t, "Standard", res.AllTiers[2].Name)
	assert.InDelta(t, 0.82, res.Confidence["premium"], 1e-9)
	assert.Equal(t, "Young and healthy", res.WhyRecommended)
	assert.Equal(t, map[string]string{"Premium": "Best cover"}, res.Explanation)
}

func TestRecommendNoPrediction(t *testing.T) {
	for name, body := range map[string]string{
		"missing": `{"explanation": {}}`,
		"null":    `{"prediction": null}`,
	} {
		t.Run(name, func(t *testing.T) {
			c := serve(t, func(ctx *fasthttp.RequestCtx) {
				ctx.SetBodyString(body)
			}, time.Second)

			res, err := c.Recommend(context.Background(), healthRequest())
			assert.Nil(t, res)
			assert.ErrorIs(t, err, model.ErrNoRecommendation)
			assert.False(t, model.Retryable(err))
		})
	}
}

func TestRecommendMalformed(t *testing.T) {
	cases := map[string]string{
		"not json":        `<html>oops</html>`,
		"array":           `[1, 2]`,
		"tier not number": `{"prediction": {"recommended_tier": "Basic", "all_tiers": {"Basic": "cheap"}}}`,
		"no tiers":        `{"prediction": {"recommended_tier": "Basic"}}`,
		"confidence > 1":  `{"prediction": {"recommended_tier": "Basic", "all_tiers": {"Basic": 1}, "confidence": {"basic": 3}}}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			c := serve(t, func(ctx *fasthttp.RequestCtx) {
				ctx.SetBodyString(body)
			}, time.Second)

			_, err := c.Recommend(context.Background(), healthRequest())
			assert.ErrorIs(t, err, model.ErrMalformedResponse)
		})
	}
}

func TestRecommendServerDetail(t *testing.T) {
	c := serve(t, func(ctx *fasthttp.RequestCtx) {
		ctx.SetStatusCode(fasthttp.StatusUnprocessableEntity)
		ctx.SetBodyString(`{"detail": "age must be positive"}`)
	}, time.Second)

	_, err := c.Recommend(context.Background(), healthRequest())
	require.ErrorIs(t, err, model.ErrServerDetail)

	var se *model.SubmissionError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, fasthttp.StatusUnprocessableEntity, se.Status)
	assert.Equal(t, "age must be positive", model.UserMessage(err))
	assert.True(t, model.Retryable(err))
}

func TestRecommendServerErrorWithoutDetail(t *testing.T) {
	c := serve(t, func(ctx *fasthttp.RequestCtx) {
		ctx.SetStatusCode(fasthttp.StatusInternalServerError)
		ctx.SetBodyString(`{"detail": [{"loc": ["body"]}]}`)
	}, time.Second)

	_, err := c.Recommend(context.Background(), healthRequest())
	require.ErrorIs(t, err, model.ErrServerDetail)
	assert.Equal(t, "Server error occurred", model.UserMessage(err))
}

func TestRecommendConnectivity(t *testing.T) {
	c, err := New("http://recommender.test", time.Second, nil, WithDial(func(string) (net.Conn, error) {
		return nil, errors.New("connection refused")
	}))
	require.NoError(t, err)

	_, err = c.Recommend(context.Background(), healthRequest())
	require.ErrorIs(t, err, model.ErrConnectivity)
	assert.NotErrorIs(t, err, model.ErrTimeout)
	assert.Equal(t, "Could not connect to server. Please try again later.", model.UserMessage(err))
}

func TestRecommendTimeout(t *testing.T) {
	release := make(chan struct{})
	c := serve(t, func(ctx *fasthttp.RequestCtx) {
		<-release
		ctx.SetBodyString(`{}`)
	}, 50*time.Millisecond)
	defer close(release)

	_, err := c.Recommend(context.Background(), healthRequest())
	require.ErrorIs(t, err, model.ErrTimeout)
	assert.ErrorIs(t, err, model.ErrConnectivity)
}

func TestRecommendCanceledContext(t *testing.T) {
	c := serve(t, func(ctx *fasthttp.RequestCtx) {
		t.Error("request should not be sent")
	}, time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := c.Recommend(ctx, healthRequest())
	assert.ErrorIs(t, err, model.ErrConnectivity)
}

func TestNewRejectsBadURL(t *testing.T) {
	for _, u := range []string{"", "recommender", "ftp://host", "http://"} {
		_, err := New(u, time.Second, nil)
		assert.ErrorIs(t, err, model.ErrRequestConstruction, u)
	}
}

func TestHealth(t *testing.T) {
	healthy := true
	c := serve(t, func(ctx *fasthttp.RequestCtx) {
		if string(ctx.Path()) != "/health" {
			ctx.SetStatusCode(fasthttp.StatusNotFound)
			return
		}
		if !healthy {
			ctx.SetStatusCode(fasthttp.StatusServiceUnavailable)
			return
		}
		ctx.SetBodyString(`{"status": "ok"}`)
	}, time.Second)

	require.NoError(t, c.Health(context.Background()))
	healthy = false
	assert.ErrorIs(t, c.Health(context.Background()), model.ErrServerDetail)
}

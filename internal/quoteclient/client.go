// Package quoteclient calls the recommendation backend's /recommend
// endpoint and classifies every failure into the submission or contract
// error taxonomy.
package quoteclient

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/valyala/fasthttp"

	"quote-wizard/internal/logger"
	"quote-wizard/internal/model"
)

// DefaultTimeout bounds a recommendation call.
const DefaultTimeout = 10 * time.Second

const (
	msgNoConnection = "Could not connect to server. Please try again later."
	msgTimeout      = "The server took too long to respond. Please try again."
	msgServerError  = "Server error occurred"
)

// Client is safe for concurrent use.
type Client struct {
	baseURL  string
	timeout  time.Duration
	http     *fasthttp.Client
	contract *jsonschema.Schema
	log      *logger.Logger
}

type Option func(*Client)

// WithDial replaces the dialer, e.g. with an in-memory listener.
func WithDial(dial fasthttp.DialFunc) Option {
	return func(c *Client) { c.http.Dial = dial }
}

// New validates baseURL and builds a client. timeout <= 0 uses DefaultTimeout.
func New(baseURL string, timeout time.Duration, log *logger.Logger, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, &model.SubmissionError{
			Kind:    model.RequestConstruction,
			Message: "Invalid recommendation service URL",
			Err:     fmt.Errorf("base url %q", baseURL),
		}
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	contract, err := compileContract()
	if err != nil {
		return nil, fmt.Errorf("compile response contract: %w", err)
	}
	if log == nil {
		log = logger.Nop()
	}
	c := &Client{
		baseURL: u.String(),
		timeout: timeout,
		http: &fasthttp.Client{
			Name:                "quote-wizard",
			MaxConnsPerHost:     64,
			MaxIdleConnDuration: 90 * time.Second,
			ReadTimeout:         timeout,
			WriteTimeout:        timeout,
		},
		contract: contract,
		log:      log.With("component", "quoteclient"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Recommend posts the request and returns the decoded recommendation.
func (c *Client) Recommend(ctx context.Context, qr *model.QuoteRequest) (*model.RecommendationResult, error) {
	body, err := json.Marshal(qr)
	if err != nil {
		return nil, &model.SubmissionError{Kind: model.RequestConstruction, Message: "Could not build the request", Err: err}
	}
	if err := ctx.Err(); err != nil {
		return nil, &model.SubmissionError{Kind: model.Connectivity, Message: msgNoConnection, Err: err}
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(c.baseURL + "/recommend")
	req.Header.SetMethod(fasthttp.MethodPost)
	req.Header.SetContentType("application/json")
	req.SetBody(body)

	start := time.Now()
	if err := c.http.DoDeadline(req, resp, c.deadline(ctx)); err != nil {
		se := classify(err)
		c.log.Warn("recommend call failed", "policy_type", qr.PolicyType, "kind", se.Kind, "error", err)
		return nil, se
	}
	status := resp.StatusCode()
	c.log.Debug("recommend call done", "policy_type", qr.PolicyType, "status", status, "elapsed", time.Since(start))

	if status < 200 || status >= 300 {
		return nil, &model.SubmissionError{Kind: model.ServerDetail, Message: detail(resp.Body()), Status: status}
	}
	return c.decode(resp.Body())
}

// Health calls GET /health on the backend.
func (c *Client) Health(ctx context.Context) error {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(c.baseURL + "/health")
	req.Header.SetMethod(fasthttp.MethodGet)
	if err := c.http.DoDeadline(req, resp, c.deadline(ctx)); err != nil {
		return classify(err)
	}
	if resp.StatusCode() != fasthttp.StatusOK {
		return &model.SubmissionError{Kind: model.ServerDetail, Message: detail(resp.Body()), Status: resp.StatusCode()}
	}
	return nil
}

func (c *Client) deadline(ctx context.Context) time.Time {
	d := time.Now().Add(c.timeout)
	if cd, ok := ctx.Deadline(); ok && cd.Before(d) {
		return cd
	}
	return d
}

func (c *Client) decode(body []byte) (*model.RecommendationResult, error) {
	var doc any
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, &model.ContractError{Kind: model.MalformedResponse, Err: err}
	}
	obj, ok := doc.(map[string]any)
	if !ok {
		return nil, &model.ContractError{Kind: model.MalformedResponse, Err: errors.New("response is not an object")}
	}
	if obj["prediction"] == nil {
		return nil, &model.ContractError{Kind: model.NoRecommendation}
	}
	if err := c.contract.Validate(doc); err != nil {
		return nil, &model.ContractError{Kind: model.MalformedResponse, Err: err}
	}

	var rr model.RecommendResponse
	if err := json.Unmarshal(body, &rr); err != nil {
		return nil, &model.ContractError{Kind: model.MalformedResponse, Err: err}
	}
	return rr.Result(), nil
}

func classify(err error) *model.SubmissionError {
	var ne net.Error
	if errors.Is(err, fasthttp.ErrTimeout) || errors.Is(err, fasthttp.ErrDialTimeout) ||
		(errors.As(err, &ne) && ne.Timeout()) {
		return &model.SubmissionError{Kind: model.Timeout, Message: msgTimeout, Err: err}
	}
	return &model.SubmissionError{Kind: model.Connectivity, Message: msgNoConnection, Err: err}
}

// detail extracts FastAPI's {"detail": "..."} message.
func detail(body []byte) string {
	var payload struct {
		Detail any `json:"detail"`
	}
	if err := json.Unmarshal(body, &payload); err == nil {
		if s, ok := payload.Detail.(string); ok && strings.TrimSpace(s) != "" {
			return s
		}
	}
	return msgServerError
}

// Package handler exposes the quote wizard over HTTP.
package handler

import (
	"context"
	"errors"
	"strings"

	json "github.com/goccy/go-json"
	"github.com/valyala/fasthttp"
	"golang.org/x/time/rate"

	"quote-wizard/internal/engine"
	"quote-wizard/internal/logger"
	"quote-wizard/internal/metrics"
	"quote-wizard/internal/model"
	"quote-wizard/internal/session"
	"quote-wizard/internal/wizard"
)

// Catalog lists the schemas on offer.
type Catalog interface {
	SchemaFor(model.ProductType, model.Country) (*model.FieldSchema, error)
	Products(model.Country) []model.ProductType
}

// HealthChecker probes the recommendation backend.
type HealthChecker interface {
	Health(context.Context) error
}

type Handler struct {
	engine  *engine.Engine
	catalog Catalog
	backend HealthChecker
	metrics *metrics.Collector
	limiter *rate.Limiter
	log     *logger.Logger
}

// New builds the handler. rps <= 0 disables rate limiting.
func New(e *engine.Engine, catalog Catalog, backend HealthChecker, m *metrics.Collector, rps float64, burst int, log *logger.Logger) *Handler {
	if log == nil {
		log = logger.Nop()
	}
	if m == nil {
		m = metrics.New()
	}
	limit := rate.Inf
	if rps > 0 {
		limit = rate.Limit(rps)
	}
	if burst <= 0 {
		burst = 1
	}
	return &Handler{
		engine:  e,
		catalog: catalog,
		backend: backend,
		metrics: m,
		limiter: rate.NewLimiter(limit, burst),
		log:     log.With("component", "http"),
	}
}

// Handle routes a request.
func (h *Handler) Handle(ctx *fasthttp.RequestCtx) {
	route := h.route(ctx)
	h.metrics.Request(route, ctx.Response.StatusCode())
}

func (h *Handler) route(ctx *fasthttp.RequestCtx) string {
	parts := splitPath(string(ctx.Path()))
	method := string(ctx.Method())

	if len(parts) == 1 && parts[0] == "metrics" && method == fasthttp.MethodGet {
		h.metrics.Handler()(ctx)
		return "/metrics"
	}
	if len(parts) == 1 && parts[0] == "health" && method == fasthttp.MethodGet {
		h.health(ctx)
		return "/health"
	}

	if !h.limiter.Allow() {
		h.metrics.RateLimited()
		writeError(ctx, fasthttp.StatusTooManyRequests, "Too many requests")
		return "ratelimited"
	}

	switch {
	case len(parts) == 3 && parts[0] == "countries" && parts[2] == "products" && method == fasthttp.MethodGet:
		h.products(ctx, parts[1])
		return "/countries/{country}/products"
	case len(parts) == 3 && parts[0] == "schemas" && method == fasthttp.MethodGet:
		h.schema(ctx, parts[1], parts[2])
		return "/schemas/{country}/{product}"
	case len(parts) == 1 && parts[0] == "sessions" && method == fasthttp.MethodPost:
		h.createSession(ctx)
		return "/sessions"
	case len(parts) == 2 && parts[0] == "sessions":
		switch method {
		case fasthttp.MethodGet:
			h.getSession(ctx, parts[1])
		case fasthttp.MethodDelete:
			h.deleteSession(ctx, parts[1])
		default:
			writeError(ctx, fasthttp.StatusMethodNotAllowed, "Method not allowed")
		}
		return "/sessions/{id}"
	case len(parts) == 4 && parts[0] == "sessions" && parts[2] == "fields" && method == fasthttp.MethodPut:
		h.editField(ctx, parts[1], parts[3])
		return "/sessions/{id}/fields/{key}"
	case len(parts) == 3 && parts[0] == "sessions" && method == fasthttp.MethodPost:
		h.action(ctx, parts[1], parts[2])
		if !actions[parts[2]] {
			return "unmatched"
		}
		return "/sessions/{id}/" + parts[2]
	}

	writeError(ctx, fasthttp.StatusNotFound, "Not found")
	return "unmatched"
}

func (h *Handler) health(ctx *fasthttp.RequestCtx) {
	if string(ctx.QueryArgs().Peek("deep")) == "1" && h.backend != nil {
		if err := h.backend.Health(ctx); err != nil {
			h.log.Warn("backend health check failed", "error", err)
			writeError(ctx, fasthttp.StatusServiceUnavailable, "Recommendation service unavailable")
			return
		}
	}
	writeJSON(ctx, fasthttp.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) products(ctx *fasthttp.RequestCtx, rawCountry string) {
	country, err := model.ParseCountry(rawCountry)
	if err != nil {
		h.fail(ctx, err)
		return
	}
	view, err := productsView(country, h.catalog.Products(country))
	if err != nil {
		h.fail(ctx, err)
		return
	}
	writeJSON(ctx, fasthttp.StatusOK, view)
}

func (h *Handler) schema(ctx *fasthttp.RequestCtx, rawCountry, rawProduct string) {
	country, product, err := parsePair(rawCountry, rawProduct)
	if err != nil {
		h.fail(ctx, err)
		return
	}
	s, err := h.catalog.SchemaFor(product, country)
	if err != nil {
		h.fail(ctx, err)
		return
	}
	view, err := schemaView(s)
	if err != nil {
		h.fail(ctx, err)
		return
	}
	writeJSON(ctx, fasthttp.StatusOK, view)
}

type pairRequest struct {
	Country string `json:"country"`
	Product string `json:"product"`
}

func (h *Handler) createSession(ctx *fasthttp.RequestCtx) {
	var req pairRequest
	if err := json.Unmarshal(ctx.PostBody(), &req); err != nil {
		writeError(ctx, fasthttp.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	country, product, err := parsePair(req.Country, req.Product)
	if err != nil {
		h.fail(ctx, err)
		return
	}
	snap, err := h.engine.Create(ctx, product, country)
	if err != nil {
		h.fail(ctx, err)
		return
	}
	writeJSON(ctx, fasthttp.StatusCreated, sessionView(snap))
}

func (h *Handler) getSession(ctx *fasthttp.RequestCtx, id string) {
	snap, err := h.engine.Get(ctx, id)
	h.respond(ctx, snap, err)
}

func (h *Handler) deleteSession(ctx *fasthttp.RequestCtx, id string) {
	if err := h.engine.Delete(ctx, id); err != nil {
		h.fail(ctx, err)
		return
	}
	ctx.SetStatusCode(fasthttp.StatusNoContent)
}

func (h *Handler) editField(ctx *fasthttp.RequestCtx, id, key string) {
	var req struct {
		Value any `json:"value"`
	}
	if err := json.Unmarshal(ctx.PostBody(), &req); err != nil {
		writeError(ctx, fasthttp.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	snap, err := h.engine.Edit(ctx, id, key, req.Value)
	h.respond(ctx, snap, err)
}

var actions = map[string]bool{"advance": true, "back": true, "submit": true, "select": true}

func (h *Handler) action(ctx *fasthttp.RequestCtx, id, action string) {
	var (
		snap wizard.Snapshot
		err  error
	)
	switch action {
	case "advance":
		snap, err = h.engine.Advance(ctx, id)
	case "back":
		snap, err = h.engine.Back(ctx, id)
	case "submit":
		snap, err = h.engine.Submit(ctx, id)
	case "select":
		var req pairRequest
		if uerr := json.Unmarshal(ctx.PostBody(), &req); uerr != nil {
			writeError(ctx, fasthttp.StatusBadRequest, "Invalid request body: "+uerr.Error())
			return
		}
		country, product, perr := parsePair(req.Country, req.Product)
		if perr != nil {
			h.fail(ctx, perr)
			return
		}
		snap, err = h.engine.Select(ctx, id, product, country)
	default:
		writeError(ctx, fasthttp.StatusNotFound, "Unknown action: "+action)
		return
	}
	h.respond(ctx, snap, err)
}

func (h *Handler) respond(ctx *fasthttp.RequestCtx, snap wizard.Snapshot, err error) {
	if err != nil {
		h.fail(ctx, err)
		return
	}
	writeJSON(ctx, fasthttp.StatusOK, sessionView(snap))
}

// fail maps an error to a status code.
func (h *Handler) fail(ctx *fasthttp.RequestCtx, err error) {
	var ce *model.ConfigurationError
	status := fasthttp.StatusInternalServerError
	switch {
	case errors.As(err, &ce):
		status = fasthttp.StatusBadRequest
	case errors.Is(err, session.ErrNotFound), errors.Is(err, wizard.ErrNoSession):
		status = fasthttp.StatusNotFound
	case errors.Is(err, wizard.ErrUnknownField):
		status = fasthttp.StatusBadRequest
	case errors.Is(err, wizard.ErrSubmissionInFlight),
		errors.Is(err, wizard.ErrSessionAbandoned),
		errors.Is(err, wizard.ErrNotLastStep):
		status = fasthttp.StatusConflict
	}
	if status == fasthttp.StatusInternalServerError {
		h.log.Error("request failed", "path", string(ctx.Path()), "error", err)
		writeError(ctx, status, "Internal error")
		return
	}
	writeError(ctx, status, err.Error())
}

func parsePair(rawCountry, rawProduct string) (model.Country, model.ProductType, error) {
	country, err := model.ParseCountry(rawCountry)
	if err != nil {
		return "", "", err
	}
	product, err := model.ParseProduct(rawProduct)
	if err != nil {
		return "", "", err
	}
	return country, product, nil
}

func splitPath(p string) []string {
	p = strings.Trim(p, "/")
	if p == "" {
		return nil
	}
	return strings.Split(p, "/")
}

func writeJSON(ctx *fasthttp.RequestCtx, status int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		writeError(ctx, fasthttp.StatusInternalServerError, "Could not encode response")
		return
	}
	ctx.SetContentType("application/json")
	ctx.SetStatusCode(status)
	ctx.SetBody(body)
}

func writeError(ctx *fasthttp.RequestCtx, status int, message string) {
	ctx.SetContentType("application/json")
	ctx.SetStatusCode(status)
	body, _ := json.Marshal(model.ErrorResponse{
		Status:  status,
		Message: message,
	})
	ctx.SetBody(body)
}

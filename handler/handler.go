// Package handler exposes the shopping assistant API as one echo router that
// serves both API Gateway proxy events and plain HTTP requests.
package handler

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"shopping-assistant/internal/observability"
	"shopping-assistant/internal/usecase"
)

const CorrelationHeader = "X-Correlation-Id"

// unmatchedRoute labels requests no route accepted.
const unmatchedRoute = "unmatched"

type RequestObserver interface {
	ObserveRequest(route, method string, code int, elapsed time.Duration)
}

type Option func(*Handler)

func WithRequestObserver(o RequestObserver) Option {
	return func(h *Handler) { h.observer = o }
}

type Handler struct {
	echo     *echo.Echo
	routes   []Route
	observer RequestObserver
}

func NewHandler(api API, opts ...Option) (*Handler, error) {
	if api == nil {
		return nil, errors.New("handler: api must not be nil")
	}
	h := &Handler{routes: buildRoutes(api)}
	for _, opt := range opts {
		opt(h)
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = writeHTTPError
	e.Use(requestID, h.accessLog)
	for _, route := range h.routes {
		e.Add(route.Method, route.Path, h.invoke(route))
	}
	h.echo = e
	return h, nil
}

func (h *Handler) Routes() []Route {
	return h.routes
}

// Echo returns the router so the HTTP server can mount extra endpoints.
func (h *Handler) Echo() *echo.Echo {
	return h.echo
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.echo.ServeHTTP(w, r)
}

// Handle serves one API Gateway proxy event through the same router as
// ServeHTTP.
func (h *Handler) Handle(ctx context.Context, event events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	req, err := toHTTPRequest(ctx, event)
	if err != nil {
		id := correlationID(headerOf(event))
		observability.LoggerFromContext(observability.WithRequestID(ctx, id)).Warn("rejected proxy event", "path", event.Path, "err", err)
		body, _ := json.Marshal(errorResponse{Error: string(usecase.ErrorInvalidInput), Reason: "invalid_request"})
		return events.APIGatewayProxyResponse{
			StatusCode: http.StatusBadRequest,
			Headers:    map[string]string{echo.HeaderContentType: echo.MIMEApplicationJSON, CorrelationHeader: id},
			Body:       string(body),
		}, nil
	}

	w := &proxyResponseWriter{header: make(http.Header)}
	h.echo.ServeHTTP(w, req)
	return w.response(), nil
}

func (h *Handler) invoke(route Route) echo.HandlerFunc {
	return func(c echo.Context) error {
		body, err := io.ReadAll(c.Request().Body)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "unreadable body").SetInternal(err)
		}
		params := make(map[string]string, len(c.ParamNames()))
		for i, name := range c.ParamNames() {
			params[name] = c.ParamValues()[i]
		}
		status, payload := h.respond(c.Request().Context(), route, Request{Params: params, Body: body})
		return c.JSONBlob(status, payload)
	}
}

// respond runs route and renders its JSON body. Errors are mapped through
// StatusFor.
func (h *Handler) respond(ctx context.Context, route Route, req Request) (int, []byte) {
	status, payload, err := route.Invoke(ctx, req)
	if err != nil {
		status = StatusFor(usecase.CodeOf(err))
		payload = toErrorResponse(err)
		logError(ctx, route, status, err)
	}
	body, err := json.Marshal(payload)
	if err != nil {
		observability.LoggerFromContext(ctx).Error("failed to encode response", "route", route.Path, "err", err)
		return http.StatusInternalServerError, []byte(`{"error":"INTERNAL_ERROR","reason":"encode_error"}`)
	}
	return status, body
}

func requestID(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		id := correlationID(c.Request().Header)
		c.Response().Header().Set(CorrelationHeader, id)
		c.SetRequest(c.Request().WithContext(observability.WithRequestID(c.Request().Context(), id)))
		return next(c)
	}
}

func (h *Handler) accessLog(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		start := time.Now()
		err := next(c)
		if err != nil {
			c.Error(err)
		}
		route := c.Path()
		if route == "" || errors.Is(err, echo.ErrNotFound) || errors.Is(err, echo.ErrMethodNotAllowed) {
			route = unmatchedRoute
		}
		req := c.Request()
		status := c.Response().Status
		if h.observer != nil {
			h.observer.ObserveRequest(route, req.Method, status, time.Since(start))
		}
		observability.LoggerFromContext(req.Context()).Info("request handled",
			"method", req.Method, "path", req.URL.Path, "route", route, "status", status,
			"duration_ms", time.Since(start).Milliseconds())
		return nil
	}
}

// writeHTTPError renders router and transport errors in the API error shape.
func writeHTTPError(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	status := http.StatusInternalServerError
	resp := errorResponse{Error: string(usecase.ErrorInternal)}
	var he *echo.HTTPError
	if errors.As(err, &he) {
		status = he.Code
		switch {
		case he.Code == http.StatusNotFound:
			resp = errorResponse{Error: string(usecase.ErrorNotFound), Reason: "route_not_found"}
		case he.Code == http.StatusMethodNotAllowed:
			resp = errorResponse{Error: string(usecase.ErrorInvalidInput), Reason: "method_not_allowed"}
		case he.Code < http.StatusInternalServerError:
			resp = errorResponse{Error: string(usecase.ErrorInvalidInput), Reason: "bad_request"}
		}
	}
	if err := c.JSON(status, resp); err != nil {
		observability.LoggerFromContext(c.Request().Context()).Error("failed to write error response", "err", err)
	}
}

// StatusFor maps a usecase error code to its HTTP status.
func StatusFor(code usecase.ErrorCode) int {
	switch code {
	case usecase.ErrorNotFound:
		return http.StatusNotFound
	case usecase.ErrorInvalidInput, usecase.ErrorMissingContext:
		return http.StatusBadRequest
	case usecase.ErrorUnauthorized:
		return http.StatusUnauthorized
	case usecase.ErrorRateLimited:
		return http.StatusTooManyRequests
	case usecase.ErrorSchemaConformance, usecase.ErrorUpstream:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func toErrorResponse(err error) errorResponse {
	var ue *usecase.Error
	if errors.As(err, &ue) {
		return errorResponse{Error: string(ue.Code), Reason: ue.Reason}
	}
	return errorResponse{Error: string(usecase.ErrorInternal)}
}

func logError(ctx context.Context, route Route, status int, err error) {
	log := observability.LoggerFromContext(ctx)
	if status >= http.StatusInternalServerError {
		log.Error("request failed", "route", route.Path, "status", status, "err", err)
		return
	}
	log.Warn("request rejected", "route", route.Path, "status", status, "err", err)
}

func correlationID(h http.Header) string {
	if id := strings.TrimSpace(h.Get(CorrelationHeader)); id != "" {
		return id
	}
	return uuid.NewString()
}

func headerOf(event events.APIGatewayProxyRequest) http.Header {
	header := make(http.Header, len(event.Headers)+len(event.MultiValueHeaders))
	for k, vs := range event.MultiValueHeaders {
		for _, v := range vs {
			header.Add(k, v)
		}
	}
	for k, v := range event.Headers {
		header.Set(k, v)
	}
	return header
}

// toHTTPRequest keeps event.Path verbatim so the router sees exactly what
// the HTTP server would.
func toHTTPRequest(ctx context.Context, event events.APIGatewayProxyRequest) (*http.Request, error) {
	body := []byte(event.Body)
	if event.IsBase64Encoded {
		decoded, err := base64.StdEncoding.DecodeString(event.Body)
		if err != nil {
			return nil, err
		}
		body = decoded
	}
	req, err := http.NewRequestWithContext(ctx, event.HTTPMethod, "/", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	query := url.Values{}
	for k, vs := range event.MultiValueQueryStringParameters {
		query[k] = append([]string(nil), vs...)
	}
	for k, v := range event.QueryStringParameters {
		if _, ok := query[k]; !ok {
			query.Set(k, v)
		}
	}
	req.URL = &url.URL{Path: event.Path, RawQuery: query.Encode()}
	req.RequestURI = req.URL.RequestURI()
	req.Header = headerOf(event)
	return req, nil
}

// proxyResponseWriter collects what the router writes into a proxy response.
type proxyResponseWriter struct {
	header http.Header
	status int
	body   bytes.Buffer
}

func (w *proxyResponseWriter) Header() http.Header {
	return w.header
}

func (w *proxyResponseWriter) WriteHeader(status int) {
	if w.status == 0 {
		w.status = status
	}
}

func (w *proxyResponseWriter) Write(b []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	return w.body.Write(b)
}

func (w *proxyResponseWriter) response() events.APIGatewayProxyResponse {
	status := w.status
	if status == 0 {
		status = http.StatusOK
	}
	headers := make(map[string]string, len(w.header))
	for k := range w.header {
		headers[k] = w.header.Get(k)
	}
	return events.APIGatewayProxyResponse{
		StatusCode:        status,
		Headers:           headers,
		MultiValueHeaders: map[string][]string(w.header),
		Body:              w.body.String(),
	}
}

package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// ErrBodyTooLarge is returned when a response exceeds the client's body cap.
var ErrBodyTooLarge = errors.New("response body too large")

// Request builds and sends one exchange.
type Request interface {
	Get(ctx context.Context, path string) (*Response, error)
	Post(ctx context.Context, path string) (*Response, error)

	// SetBody sends raw bytes, strings and readers as is and anything
	// else as JSON.
	SetBody(body any) Request
	SetHeader(key, value string) Request
	// SetQueryParams adds query values, escaped and sorted on send.
	SetQueryParams(params map[string]string) Request
	// SetResult decodes a JSON body into result.
	SetResult(result any) Request
}

// Response is a fully read upstream answer.
type Response struct {
	*http.Response
	body    []byte
	decoded any
}

// Body returns the raw response body.
func (r *Response) Body() []byte { return r.body }

// IsError reports a 4xx or 5xx status.
func (r *Response) IsError() bool { return r.StatusCode >= http.StatusBadRequest }

// Result returns the decoded body, or nil when decoding was not asked
// for or failed.
func (r *Response) Result() any { return r.decoded }

type request struct {
	client  *InstrumentedClient
	cfg     requestConfig
	headers map[string]string
	query   url.Values
	body    any
	result  any
}

func (r *request) Get(ctx context.Context, path string) (*Response, error) {
	return r.send(ctx, http.MethodGet, path)
}

func (r *request) Post(ctx context.Context, path string) (*Response, error) {
	return r.send(ctx, http.MethodPost, path)
}

func (r *request) SetBody(body any) Request {
	r.body = body
	return r
}

func (r *request) SetHeader(key, value string) Request {
	r.headers[key] = value
	return r
}

func (r *request) SetQueryParams(params map[string]string) Request {
	if r.query == nil {
		r.query = make(url.Values, len(params))
	}
	for k, v := range params {
		r.query.Set(k, v)
	}
	return r
}

func (r *request) SetResult(result any) Request {
	r.result = result
	return r
}

func (r *request) send(ctx context.Context, method, path string) (*Response, error) {
	started := time.Now()
	ctx, span := r.client.span(ctx, method, path)
	defer span.End()

	fail := func(err error, msg string) (*Response, error) {
		span.RecordError(err)
		span.SetStatus(codes.Error, msg)
		r.client.record(ctx, started, false, r.cfg.labels)
		return nil, err
	}

	body, err := r.encodeBody(span)
	if err != nil {
		return fail(err, "encode body")
	}
	req, err := http.NewRequestWithContext(ctx, method, r.url(path), body)
	if err != nil {
		return fail(fmt.Errorf("build request: %w", err), "build request")
	}
	for k, v := range r.headers {
		req.Header.Set(k, v)
	}
	if r.cfg.logHeaders {
		r.traceHeaders(span, req.Header)
	}

	httpResp, err := r.client.http.Do(req)
	if err != nil {
		var netErr net.Error
		span.SetAttributes(
			attribute.Bool("context.cancelled", errors.Is(err, context.Canceled)),
			attribute.Bool("request.timeout", errors.As(err, &netErr) && netErr.Timeout()),
		)
		return fail(err, err.Error())
	}
	limit := r.client.cfg.maxBody
	raw, err := io.ReadAll(io.LimitReader(httpResp.Body, limit+1))
	_ = httpResp.Body.Close()
	if err != nil {
		return fail(fmt.Errorf("read response body: %w", err), "read body")
	}
	if int64(len(raw)) > limit {
		return fail(fmt.Errorf("%w: over %d bytes", ErrBodyTooLarge, limit), "body too large")
	}

	span.SetAttributes(attribute.Int("http.status_code", httpResp.StatusCode))
	if r.client.cfg.traced&TraceResponse != 0 {
		span.AddEvent("response.body", trace.WithAttributes(attribute.String("http.response_body", string(raw))))
	}

	resp := &Response{Response: httpResp, body: raw}
	if r.result != nil && len(raw) > 0 {
		if err := json.Unmarshal(raw, r.result); err != nil {
			span.RecordError(err)
		} else {
			resp.decoded = r.result
		}
	}

	if h := r.cfg.onResponse; h != nil {
		if err := h(httpResp.StatusCode, raw); err != nil {
			span.SetStatus(codes.Error, err.Error())
			r.client.record(ctx, started, false, r.cfg.labels)
			return resp, err
		}
	}
	r.client.record(ctx, started, !resp.IsError(), r.cfg.labels)
	return resp, nil
}

func (r *request) url(path string) string {
	u := path
	if base := r.client.cfg.baseURL; base != "" && !strings.HasPrefix(path, "http") {
		u = base + "/" + strings.TrimPrefix(path, "/")
	}
	if len(r.query) == 0 {
		return u
	}
	sep := "?"
	if strings.Contains(u, "?") {
		sep = "&"
	}
	return u + sep + r.query.Encode()
}

func (r *request) encodeBody(span trace.Span) (io.Reader, error) {
	var raw []byte
	switch b := r.body.(type) {
	case nil:
		return nil, nil
	case io.Reader:
		return b, nil
	case []byte:
		raw = b
	case string:
		raw = []byte(b)
	default:
		enc, err := json.Marshal(b)
		if err != nil {
			return nil, fmt.Errorf("marshal body: %w", err)
		}
		raw = enc
		if _, ok := r.headers["Content-Type"]; !ok {
			r.headers["Content-Type"] = "application/json"
		}
	}
	if r.client.cfg.traced&TraceRequest != 0 {
		span.AddEvent("request.body", trace.WithAttributes(attribute.String("http.request_body", string(raw))))
	}
	return bytes.NewReader(raw), nil
}

func (r *request) traceHeaders(span trace.Span, h http.Header) {
	attrs := make([]attribute.KeyValue, 0, len(h))
	for k := range h {
		name := strings.ToLower(k)
		val := h.Get(k)
		if _, ok := r.cfg.redacted[name]; ok {
			val = "*****"
		}
		attrs = append(attrs, attribute.String("http.request.header."+name, val))
	}
	if len(attrs) > 0 {
		span.AddEvent("request.headers", trace.WithAttributes(attrs...))
	}
}

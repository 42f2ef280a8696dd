package httpclient

import (
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// TraceOption selects which bodies are attached to the request span.
type TraceOption uint8

const (
	TraceRequest TraceOption = 1 << iota
	TraceResponse
)

type clientConfig struct {
	provider string
	baseURL  string
	timeout  time.Duration
	maxBody  int64
	headers  map[string]string
	tracer   trace.Tracer
	traced   TraceOption
}

// ClientOption configures an InstrumentedClient.
type ClientOption func(*clientConfig)

// WithProviderName tags spans and counters with the upstream name.
func WithProviderName(name string) ClientOption {
	return func(c *clientConfig) { c.provider = name }
}

// WithBaseURL prefixes relative request paths.
func WithBaseURL(u string) ClientOption {
	return func(c *clientConfig) { c.baseURL = strings.TrimSuffix(u, "/") }
}

// WithRequestTimeout bounds a whole exchange, body included.
func WithRequestTimeout(d time.Duration) ClientOption {
	return func(c *clientConfig) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithMaxBodyBytes caps how much of a response body is read. Larger
// answers fail the request.
func WithMaxBodyBytes(n int64) ClientOption {
	return func(c *clientConfig) {
		if n > 0 {
			c.maxBody = n
		}
	}
}

// WithHeaders sets headers sent on every request.
func WithHeaders(h map[string]string) ClientOption {
	return func(c *clientConfig) {
		if c.headers == nil {
			c.headers = make(map[string]string, len(h))
		}
		for k, v := range h {
			c.headers[k] = v
		}
	}
}

// WithTraceOptions sets the tracer and which bodies it records.
func WithTraceOptions(tracer trace.Tracer, opts ...TraceOption) ClientOption {
	return func(c *clientConfig) {
		c.tracer = tracer
		for _, o := range opts {
			c.traced |= o
		}
	}
}

// ResponseErrorHandler inspects a completed exchange. A non-nil error
// fails the request while the response is still returned.
type ResponseErrorHandler func(statusCode int, body []byte) error

type requestConfig struct {
	onResponse ResponseErrorHandler
	labels     []attribute.KeyValue
	logHeaders bool
	redacted   map[string]struct{}
}

// RequestOption configures a single request.
type RequestOption func(*requestConfig)

// WithResponseErrorHandler maps upstream answers to errors.
func WithResponseErrorHandler(h ResponseErrorHandler) RequestOption {
	return func(c *requestConfig) { c.onResponse = h }
}

// Label is a counter dimension for one request.
func Label(key, value string) attribute.KeyValue {
	return attribute.String(key, value)
}

// WithLabels adds counter dimensions.
func WithLabels(labels ...attribute.KeyValue) RequestOption {
	return func(c *requestConfig) { c.labels = append(c.labels, labels...) }
}

// WithRedactedHeaders records request headers on the span, masking the
// named ones.
func WithRedactedHeaders(names ...string) RequestOption {
	return func(c *requestConfig) {
		c.logHeaders = true
		if c.redacted == nil {
			c.redacted = make(map[string]struct{}, len(names))
		}
		for _, n := range names {
			c.redacted[strings.ToLower(n)] = struct{}{}
		}
	}
}

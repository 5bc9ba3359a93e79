package gatekeeper

import (
	"context"
	"net/http"
	"strings"
	"sync"
)

// RequestContext is the immutable view of an inbound request handlers
// receive once the admission pipeline has admitted it.
type RequestContext struct {
	// Raw is the underlying HTTP request, made available for anything the
	// declared inputs don't cover (headers, remote address, …).
	Raw *http.Request

	// APIKey is the value of the X-API-Key header.
	APIKey string
	// RequestID correlates this request across logs and metrics; it is the
	// caller-supplied X-Request-Id header, or a generated UUID when absent.
	RequestID string

	// AccessLevel is the level computed by the [Evaluator]; only populated
	// once the pipeline reaches the authorization gate.
	AccessLevel AccessLevel
	// QueryParameters holds the processed (name -> typed value) map built
	// by the Input Validator.
	QueryParameters map[string]any
	// JSONBody holds the parsed request body, or nil when absent/empty.
	JSONBody map[string]any

	endpoint *Endpoint

	ownerOnce   sync.Once
	ownerResult bool
}

func requestContextFromRequest(r *http.Request, requestID string, endpoint *Endpoint) *RequestContext {
	return &RequestContext{
		Raw:             r,
		APIKey:          strings.TrimSpace(r.Header.Get("X-API-Key")),
		RequestID:       requestID,
		QueryParameters: make(map[string]any),
		endpoint:        endpoint,
	}
}

// ownsResource memoizes the endpoint's ownership predicate for the lifetime
// of this request context: it is invoked at most once per evaluation, since
// the predicate may itself issue a lookup against the resource store.
func (r *RequestContext) ownsResource(ctx context.Context, e *Endpoint) bool {
	if e.ownsResource == nil {
		return false
	}
	r.ownerOnce.Do(func() {
		r.ownerResult = e.ownsResource(ctx, r)
	})
	return r.ownerResult
}

type requestContextKey struct{}

func contextWithRequestContext(ctx context.Context, req *RequestContext) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	if req == nil {
		return ctx
	}
	return context.WithValue(ctx, requestContextKey{}, req)
}

// RequestContextFromContext extracts the [RequestContext] a handler was
// invoked with, for code that only has access to a context.Context.
func RequestContextFromContext(ctx context.Context) *RequestContext {
	if ctx == nil {
		return nil
	}
	req, _ := ctx.Value(requestContextKey{}).(*RequestContext)
	return req
}

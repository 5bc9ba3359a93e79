package gatekeeper

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/northbeam/gatekeeper/signature"
)

// Environment gates whether developer mode is permitted to start.
type Environment string

const (
	Production  Environment = "production"
	Development Environment = "development"
)

// Pipeline orchestrates the fail-fast request admission sequence over a
// frozen [Registry]: transport, headers, authentication, freshness and
// signature, parameters, body, access level, and authorization, in that
// order, before a matched endpoint's handler ever runs. Build one with
// [New], register endpoints on the Registry beforehand, then call
// [Pipeline.Start] or use the Pipeline directly as an [http.Handler].
type Pipeline struct {
	registry *Registry
	cfg      pipelineConfig
	replay   *replayCache
	verifier signature.Verifier
}

// New builds a Pipeline bound to registry. Unset options fall back to
// sensible defaults: an [InMemoryCache], a zero-value [EvaluatorFuncs] (no
// caller is ever classified as privileged), [NoopMetrics], a zerolog
// logger writing to stderr, and the real wall clock.
func New(registry *Registry, opts ...Option) *Pipeline {
	if registry == nil {
		panic("gatekeeper: registry is required")
	}
	pc := pipelineConfig{
		evaluator: EvaluatorFuncs{},
		metrics:   NoopMetrics{},
		logger:    zerolog.New(os.Stderr).With().Timestamp().Str("component", "gatekeeper").Logger(),
		clock:     time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&pc)
		}
	}
	if pc.cache == nil {
		pc.cache = NewInMemoryCache(0)
	}
	if !pc.cfg.DeveloperModeEnabled && pc.dataManager == nil {
		panic("gatekeeper: WithDataManager is required outside developer mode")
	}
	return &Pipeline{
		registry: registry,
		cfg:      pc,
		replay:   newReplayCache(pc.cache, pc.cfg.maxRequestAge()),
		verifier: signature.HMACVerifier{},
	}
}

// Start freezes the registry and begins serving HTTP on Config.Host:Port.
// It fails if no endpoints are registered, the port is unset, or developer
// mode is enabled outside [Development].
func (p *Pipeline) Start() error {
	if p.cfg.cfg.DeveloperModeEnabled {
		if p.cfg.cfg.environment() != Development {
			return fmt.Errorf("gatekeeper: developer mode requires Config.Environment = gatekeeper.Development")
		}
		p.cfg.logger.Warn().Msg("DEVELOPER MODE ENABLED: transport guard, application authentication, and signature verification are disabled")
	}
	if p.cfg.cfg.Port == 0 {
		return fmt.Errorf("gatekeeper: Config.Port is required")
	}
	if err := p.registry.freeze(); err != nil {
		return err
	}
	addr := fmt.Sprintf("%s:%d", p.cfg.cfg.host(), p.cfg.cfg.Port)
	p.cfg.logger.Info().Str("addr", addr).Int("endpoints", len(p.registry.Endpoints())).Msg("gatekeeper listening")
	return http.ListenAndServe(addr, p)
}

// ServeHTTP implements http.Handler by running the admission pipeline for
// the endpoint bound to the request's (path, method), then invoking its
// handler on success.
func (p *Pipeline) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := CanonicalPath("", r.URL.Path)
	endpoint, ok := p.registry.lookup(path, Verb(strings.ToUpper(r.Method)))
	if !ok {
		http.NotFound(w, r)
		return
	}

	requestID := strings.TrimSpace(r.Header.Get("X-Request-Id"))
	if requestID == "" {
		requestID = uuid.NewString()
	}
	reqCtx := requestContextFromRequest(r, requestID, endpoint)
	ctx := contextWithRequestContext(r.Context(), reqCtx)

	log := p.cfg.logger.With().Str("endpoint", endpoint.Name()).Str("request_id", requestID).Logger()

	if err := p.admit(ctx, r, endpoint, reqCtx); err != nil {
		log.Warn().Str("outcome", string(err.ID)).Msg("request rejected")
		p.cfg.metrics.ObserveAdmission(endpoint.Name(), string(err.ID))
		writeJSONError(w, err)
		return
	}

	start := p.cfg.clock()
	resp, herr := p.invokeHandler(ctx, endpoint, reqCtx)
	p.cfg.metrics.ObserveHandlerLatency(endpoint.Name(), p.cfg.clock().Sub(start))
	if herr != nil {
		log.Warn().Str("outcome", string(herr.ID)).Msg("handler failed")
		p.cfg.metrics.ObserveAdmission(endpoint.Name(), string(herr.ID))
		writeJSONError(w, herr)
		return
	}
	log.Info().Str("outcome", "handled").Msg("request handled")
	p.cfg.metrics.ObserveAdmission(endpoint.Name(), "handled")
	writeJSONResponse(w, resp)
}

// admit runs the eight admission steps in strict sequential order, stopping
// at the first failure so a request never reaches a handler partially
// validated.
func (p *Pipeline) admit(ctx context.Context, r *http.Request, e *Endpoint, reqCtx *RequestContext) *Error {
	developerMode := p.cfg.cfg.DeveloperModeEnabled

	// Step 1: transport guard.
	if !developerMode {
		if err := p.checkTransport(r); err != nil {
			return err
		}
	}

	// Step 2: required headers.
	if err := checkRequiredHeaders(r.Header); err != nil {
		return asGKError(err)
	}

	body, err := signature.ReadAndBufferBody(r)
	if err != nil {
		return NewUnknownError(err.Error(), developerMode)
	}

	var signingKey string
	// Step 3: application authentication.
	if !developerMode {
		signingKey, err = p.authenticateApp(ctx, reqCtx.APIKey)
		if err != nil {
			return NewUnauthorizedAppError(err.Error())
		}
	}

	// Step 4: freshness + replay + signature.
	if !developerMode {
		if ferr := p.verifyRequest(ctx, r, reqCtx.APIKey, signingKey, body); ferr != nil {
			return ferr
		}
	}

	// Step 5: query parameters.
	if err := processQueryParameters(e, r.URL.Query().Get, reqCtx); err != nil {
		return asGKError(err)
	}

	// Step 6: JSON body.
	jsonBody, jsonErr := parseJSONObject(body)
	if jsonErr != nil {
		return NewInvalidJSONBodyError("request body is not a JSON object")
	}
	reqCtx.JSONBody = jsonBody
	if err := checkJSONBody(e, jsonBody); err != nil {
		return asGKError(err)
	}

	// Step 7: access level evaluation (no failure path).
	reqCtx.AccessLevel = p.cfg.evaluator.Evaluate(ctx, e, reqCtx)

	// Step 8: authorization gate.
	if err := authorize(e, reqCtx.AccessLevel); err != nil {
		return asGKError(err)
	}

	return nil
}

func (p *Pipeline) checkTransport(r *http.Request) *Error {
	if r.TLS != nil {
		return nil
	}
	if p.cfg.cfg.TrustForwardedProto && strings.EqualFold(r.Header.Get("X-Forwarded-Proto"), "https") {
		return nil
	}
	return NewInsecureProtocolError("request must be served over HTTPS")
}

func (p *Pipeline) authenticateApp(ctx context.Context, apiKey string) (string, error) {
	signingKey, err := p.cfg.dataManager.SigningKeyForAPIKey(ctx, apiKey)
	if err != nil {
		return "", fmt.Errorf("unknown application")
	}
	if signingKey == "" {
		return "", fmt.Errorf("unknown application")
	}
	return signingKey, nil
}

func (p *Pipeline) verifyRequest(ctx context.Context, r *http.Request, apiKey, signingKey string, body []byte) *Error {
	dateHeader := r.Header.Get("Date")
	if err := checkFreshness(dateHeader, p.cfg.clock(), p.cfg.cfg.maxRequestAge()); err != nil {
		return NewInvalidRequestError(err.Error())
	}

	signatureHeader := r.Header.Get("X-Signature")
	if p.replay.seen(ctx, apiKey, signatureHeader) {
		return NewInvalidRequestError("request has already been processed")
	}

	material := signature.Material{
		Signature:    signatureHeader,
		Nonce:        r.Header.Get("X-Signature-Nonce"),
		Date:         dateHeader,
		PathAndQuery: pathWithRawQuery(r),
		Verb:         r.Method,
		Body:         body,
	}
	if err := p.verifier.Verify(ctx, material, signingKey); err != nil {
		return NewInvalidRequestError("signature verification failed")
	}

	p.replay.record(ctx, apiKey, signatureHeader)
	return nil
}

func (p *Pipeline) invokeHandler(ctx context.Context, e *Endpoint, reqCtx *RequestContext) (resp Response, herr *Error) {
	defer func() {
		if r := recover(); r != nil {
			herr = NewUnknownError(fmt.Sprintf("handler panic: %v", r), p.cfg.cfg.DeveloperModeEnabled)
		}
	}()
	resp, err := e.handler(ctx, reqCtx)
	if err != nil {
		if gkErr, ok := err.(*Error); ok {
			return Response{}, gkErr
		}
		return Response{}, NewUnknownError(err.Error(), p.cfg.cfg.DeveloperModeEnabled)
	}
	return resp, nil
}

// pathWithRawQuery rebuilds the signed path-and-query form used by the
// signing string: the original escaped path plus the client's raw query
// string, fragment excluded.
func pathWithRawQuery(r *http.Request) string {
	path := r.URL.EscapedPath()
	if r.URL.RawQuery == "" {
		return path
	}
	return path + "?" + r.URL.RawQuery
}

func parseJSONObject(body []byte) (map[string]any, error) {
	trimmed := []byte(strings.TrimSpace(string(body)))
	if len(trimmed) == 0 {
		return nil, nil
	}
	var obj map[string]any
	if err := json.Unmarshal(trimmed, &obj); err != nil {
		return nil, err
	}
	return obj, nil
}

// asGKError adapts the plain `error` returns of the validate/authorization
// helpers (shared with code that has no reason to know about *Error) into
// the *Error the pipeline always serializes.
func asGKError(err error) *Error {
	if err == nil {
		return nil
	}
	if gkErr, ok := err.(*Error); ok {
		return gkErr
	}
	return NewUnknownError(err.Error(), false)
}

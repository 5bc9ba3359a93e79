package gatekeeper

import (
	"context"
	"fmt"
	"strings"
)

// Verb is an HTTP method an endpoint can be declared against.
type Verb string

const (
	GET    Verb = "GET"
	POST   Verb = "POST"
	PUT    Verb = "PUT"
	DELETE Verb = "DELETE"
	PATCH  Verb = "PATCH"
	ALL    Verb = "ALL"
)

// Characteristic labels the sensitivity class of the data or operation an
// endpoint exposes. Characteristics are combined with caller classification
// by the [Evaluator] to produce an effective [AccessLevel].
type Characteristic string

const (
	Internal          Characteristic = "internal"
	Moderative        Characteristic = "moderative"
	Institutional     Characteristic = "institutional"
	Special           Characteristic = "special"
	PrivateOwnedData  Characteristic = "private_owned_data"
	PublicOwnedData   Characteristic = "public_owned_data"
	PublicUnownedData Characteristic = "public_unowned_data"
)

// ParamValidator decides whether a raw query-parameter value is acceptable.
type ParamValidator interface {
	IsValid(name, rawValue string) bool
}

// ParamValidatorFunc lifts a bare function into a [ParamValidator].
type ParamValidatorFunc func(name, rawValue string) bool

// IsValid delegates to the wrapped function.
func (f ParamValidatorFunc) IsValid(name, rawValue string) bool { return f(name, rawValue) }

// ParamProcessor converts a validated raw query-parameter value into the
// typed value handlers see on [RequestContext.QueryParameters]. It may
// rename the parameter for the output map by returning a different name.
type ParamProcessor interface {
	Process(name, rawValue string) (outputName string, value any)
}

// ParamProcessorFunc lifts a bare function into a [ParamProcessor].
type ParamProcessorFunc func(name, rawValue string) (string, any)

// Process delegates to the wrapped function.
func (f ParamProcessorFunc) Process(name, rawValue string) (string, any) { return f(name, rawValue) }

// identityProcessor is used when an endpoint declares a parameter without a
// processor: the raw string is passed through unchanged.
type identityProcessor struct{}

func (identityProcessor) Process(name, rawValue string) (string, any) { return name, rawValue }

// QueryParam declares one query-string parameter an endpoint accepts.
type QueryParam struct {
	Name      string
	Required  bool
	Validator ParamValidator
	Processor ParamProcessor
}

// BodyValidator decides whether a parsed JSON body is acceptable.
type BodyValidator interface {
	IsValid(body map[string]any) bool
}

// BodyValidatorFunc lifts a bare function into a [BodyValidator].
type BodyValidatorFunc func(body map[string]any) bool

// IsValid delegates to the wrapped function.
func (f BodyValidatorFunc) IsValid(body map[string]any) bool { return f(body) }

// OwnershipPredicate decides whether the caller owns the specific resource
// a request addresses. It is invoked at most once per request and memoized
// by the [Evaluator].
type OwnershipPredicate func(ctx context.Context, req *RequestContext) bool

// Response is what a [Handler] returns on success. Status defaults to 200
// when zero.
type Response struct {
	Status int
	Data   any
}

// Handler implements an endpoint's business logic. It runs only after the
// admission pipeline has authenticated, verified, validated, and
// authorized the request.
type Handler func(ctx context.Context, req *RequestContext) (Response, error)

// Endpoint is an immutable declaration of one (path, verb) pair: its
// sensitivity characteristics, the inputs it accepts, and the handler that
// serves it. Construct with [NewEndpoint].
type Endpoint struct {
	name            string
	entity          string
	method          string
	verb            Verb
	characteristics map[Characteristic]bool
	queryParams     []QueryParam
	bodyValidator   BodyValidator
	jsonBodyRequired bool
	ownsResource    OwnershipPredicate
	handler         Handler

	path string // computed canonical path, set by NewEndpoint
}

// EndpointOption customizes an [Endpoint] at construction time.
type EndpointOption func(*Endpoint)

// WithQueryParam declares one query parameter, in the order it should be
// validated.
func WithQueryParam(p QueryParam) EndpointOption {
	return func(e *Endpoint) {
		if p.Validator == nil {
			p.Validator = ParamValidatorFunc(func(string, string) bool { return true })
		}
		if p.Processor == nil {
			p.Processor = identityProcessor{}
		}
		e.queryParams = append(e.queryParams, p)
	}
}

// WithBodyValidator configures a validator invoked against a non-empty JSON
// body.
func WithBodyValidator(v BodyValidator) EndpointOption {
	return func(e *Endpoint) { e.bodyValidator = v }
}

// WithJSONBodyRequired rejects requests with an absent or empty JSON body.
func WithJSONBodyRequired() EndpointOption {
	return func(e *Endpoint) { e.jsonBodyRequired = true }
}

// WithOwnershipPredicate supplies the resource-ownership check required by
// the PrivateOwnedData and PublicOwnedData characteristics.
func WithOwnershipPredicate(p OwnershipPredicate) EndpointOption {
	return func(e *Endpoint) { e.ownsResource = p }
}

// WithEndpointName overrides the endpoint's label in logs and metrics; it
// defaults to "VERB canonical_path".
func WithEndpointName(name string) EndpointOption {
	return func(e *Endpoint) { e.name = name }
}

// NewEndpoint declares an endpoint. entity may be empty; method may itself
// contain several path segments and is joined with entity to build the
// canonical path. A ":name" segment is kept literally: requests are matched
// against the canonical path exactly, and no path templating is performed.
// Registration (via
// [Registry.Register]) enforces uniqueness of (canonical path, verb) and
// that owned-data characteristics carry an ownership predicate; this
// constructor only validates shape that can be checked in isolation.
func NewEndpoint(entity, method string, verb Verb, handler Handler, characteristics []Characteristic, opts ...EndpointOption) *Endpoint {
	if handler == nil {
		panic("gatekeeper: endpoint handler is required")
	}
	if len(characteristics) == 0 {
		panic("gatekeeper: endpoint must declare at least one characteristic")
	}
	e := &Endpoint{
		entity:          entity,
		method:          method,
		verb:            verb,
		handler:         handler,
		characteristics: make(map[Characteristic]bool, len(characteristics)),
	}
	for _, c := range characteristics {
		e.characteristics[c] = true
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(e)
	}
	e.path = CanonicalPath(entity, method)
	if e.name == "" {
		e.name = fmt.Sprintf("%s %s", verb, e.path)
	}
	return e
}

// Path returns the endpoint's canonical path.
func (e *Endpoint) Path() string { return e.path }

// Verb returns the endpoint's HTTP verb.
func (e *Endpoint) Verb() Verb { return e.verb }

// Name returns the endpoint's log/metric label.
func (e *Endpoint) Name() string { return e.name }

// Has reports whether the endpoint declares the given characteristic.
func (e *Endpoint) Has(c Characteristic) bool { return e.characteristics[c] }

// requiresOwnershipPredicate reports whether registration must reject this
// endpoint for lacking an ownership predicate.
func (e *Endpoint) requiresOwnershipPredicate() bool {
	return (e.Has(PrivateOwnedData) || e.Has(PublicOwnedData)) && e.ownsResource == nil
}

// CanonicalPath joins entity and method into a normalized route: collapse
// duplicate slashes, strip the trailing slash, guarantee a leading slash.
// "/" with no entity/method is permitted.
func CanonicalPath(entity, method string) string {
	joined := strings.Join([]string{entity, method}, "/")
	segments := strings.Split(joined, "/")
	kept := segments[:0]
	for _, seg := range segments {
		if seg == "" {
			continue
		}
		kept = append(kept, seg)
	}
	if len(kept) == 0 {
		return "/"
	}
	return "/" + strings.Join(kept, "/")
}

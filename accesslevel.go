package gatekeeper

import "context"

// AccessLevel is a position in the privilege lattice assigned to a caller
// by the [Evaluator]. Levels are ordered from most to least privileged;
// lower numeric values mean higher privilege. "current <= required" means
// "at least as privileged as required".
type AccessLevel int

const (
	Admin AccessLevel = iota
	Moderator
	Manager
	PrivilegedRequestor
	ResourceOwner
	AuthenticatedRequestor
	PublicRequestor
	NoAccess
)

// String renders the access level for logs and metrics labels.
func (a AccessLevel) String() string {
	switch a {
	case Admin:
		return "admin"
	case Moderator:
		return "moderator"
	case Manager:
		return "manager"
	case PrivilegedRequestor:
		return "privileged_requestor"
	case ResourceOwner:
		return "resource_owner"
	case AuthenticatedRequestor:
		return "authenticated_requestor"
	case PublicRequestor:
		return "public_requestor"
	default:
		return "no_access"
	}
}

// Evaluator computes the caller's effective access level for a request
// against an endpoint's declared characteristics. Applications customize
// admission by overriding the six predicates via [EvaluatorFuncs]; every
// predicate defaults to false.
type Evaluator interface {
	Evaluate(ctx context.Context, e *Endpoint, req *RequestContext) AccessLevel
}

// EvaluatorFuncs implements [Evaluator] by composing six independently
// overridable predicates, the same single-method-interface-as-func idiom
// this library uses for [DataManagerFunc] and [signature.Verifier], extended
// to a struct since six independent predicates do not fit one function
// value. A nil field behaves as "always false".
type EvaluatorFuncs struct {
	IsDenied        func(ctx context.Context, req *RequestContext) bool
	IsInternal      func(ctx context.Context, req *RequestContext) bool
	IsModerative    func(ctx context.Context, req *RequestContext) bool
	IsInstitutional func(ctx context.Context, req *RequestContext) bool
	IsPrivileged    func(ctx context.Context, req *RequestContext) bool
	IsAuthenticated func(ctx context.Context, req *RequestContext) bool
}

func (f EvaluatorFuncs) call(pred func(context.Context, *RequestContext) bool, ctx context.Context, req *RequestContext) bool {
	if pred == nil {
		return false
	}
	return pred(ctx, req)
}

// Evaluate implements [Evaluator], checking characteristics from most to
// least privileged and returning on the first match. The ownership
// predicate, when present, is invoked at most once and memoized onto req.
func (f EvaluatorFuncs) Evaluate(ctx context.Context, e *Endpoint, req *RequestContext) AccessLevel {
	if f.call(f.IsDenied, ctx, req) {
		return NoAccess
	}
	if e.Has(Internal) && f.call(f.IsInternal, ctx, req) {
		return Admin
	}
	if e.Has(Moderative) && f.call(f.IsModerative, ctx, req) {
		return Moderator
	}
	if e.Has(Institutional) && f.call(f.IsInstitutional, ctx, req) {
		return Manager
	}
	if e.Has(Special) && f.call(f.IsPrivileged, ctx, req) {
		return PrivilegedRequestor
	}

	owns := func() bool { return req.ownsResource(ctx, e) }

	if e.Has(PrivateOwnedData) && owns() {
		return ResourceOwner
	}

	switch {
	case e.Has(PublicOwnedData):
		if owns() {
			return ResourceOwner
		}
		if f.call(f.IsAuthenticated, ctx, req) {
			return AuthenticatedRequestor
		}
		return PublicRequestor
	case e.Has(PublicUnownedData):
		if f.call(f.IsAuthenticated, ctx, req) {
			return AuthenticatedRequestor
		}
		return PublicRequestor
	}

	return NoAccess
}

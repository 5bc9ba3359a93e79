// Package gatekeeper implements a request admission pipeline for JSON REST
// APIs: transport enforcement, application authentication, HMAC request
// signing with replay protection, input validation, and access-level
// authorization, all ahead of business logic.
//
// # Declaring endpoints
//
// Build a [Registry], declare endpoints against it with [NewEndpoint] and
// register them with [Registry.Register], then hand the registry to [New]
// along with a [DataManager] and whatever [Option]s the deployment needs.
// [Pipeline.Start] freezes the registry and serves HTTP.
//
//	reg := gatekeeper.NewRegistry()
//	reg.Register(gatekeeper.NewEndpoint("widgets", "", gatekeeper.GET,
//		handler, []gatekeeper.Characteristic{gatekeeper.PublicUnownedData}))
//	p := gatekeeper.New(reg, gatekeeper.WithDataManager(dm))
//	p.Start()
//
// # Access control
//
// Each [Endpoint] declares one or more [Characteristic]s describing the
// sensitivity of the data or operation it exposes. An [Evaluator] — usually
// an [EvaluatorFuncs] composing application-supplied predicates — turns a
// request and its endpoint's characteristics into an effective [AccessLevel],
// which the pipeline checks before invoking the handler.
//
// # Request signing
//
// See the signature subpackage for the canonicalization and HMAC
// verification applied to every request outside of developer mode.
//
// # Examples
//
// The examples/checkout and examples/delegatedpayment packages, wired
// together in cmd/checkoutgateway, show a complete deployment: an in-memory
// checkout session store and a delegated payment tokenization endpoint.
package gatekeeper

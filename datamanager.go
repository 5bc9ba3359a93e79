package gatekeeper

import "context"

// DataManager resolves an API key to the signing key bound to it.
// Implementations own the concrete storage of application keys; the
// pipeline only ever reads through this interface and never logs or
// returns the signing key it gets back.
type DataManager interface {
	SigningKeyForAPIKey(ctx context.Context, apiKey string) (string, error)
}

// DataManagerFunc lifts a bare function into a [DataManager], the same
// single-method-interface-as-func idiom used throughout this package for
// [ParamValidatorFunc] and [signature.VerifierFunc].
type DataManagerFunc func(ctx context.Context, apiKey string) (string, error)

// SigningKeyForAPIKey delegates to the wrapped function.
func (f DataManagerFunc) SigningKeyForAPIKey(ctx context.Context, apiKey string) (string, error) {
	return f(ctx, apiKey)
}

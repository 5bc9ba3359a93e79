package gatekeeper

import (
	"fmt"
	"net/http"
	"strings"
)

// requiredHeaders are checked on every admitted request. An empty value
// counts as missing.
var requiredHeaders = []string{"X-API-Key", "Date", "X-Signature", "X-Signature-Nonce"}

func checkRequiredHeaders(h http.Header) error {
	var missing []string
	for _, name := range requiredHeaders {
		if strings.TrimSpace(h.Get(name)) == "" {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return NewMissingRequiredHeadersError(fmt.Sprintf("missing required header(s): %s", strings.Join(missing, ", ")))
	}
	return nil
}

// processQueryParameters validates and processes an endpoint's declared
// query parameters in order, writing typed values into req.QueryParameters.
func processQueryParameters(e *Endpoint, raw func(name string) string, req *RequestContext) error {
	for _, p := range e.queryParams {
		value := raw(p.Name)
		if value == "" {
			if p.Required {
				return NewInvalidRequestParametersError(fmt.Sprintf("Missing required parameter %s", p.Name))
			}
			continue
		}
		if !p.Validator.IsValid(p.Name, value) {
			return NewInvalidRequestParametersError(fmt.Sprintf("Parameter %s has an invalid value: %s", p.Name, value))
		}
		outputName, typedValue := p.Processor.Process(p.Name, value)
		req.QueryParameters[outputName] = typedValue
	}
	return nil
}

// isEmptyJSONBody reports whether body is nil or an empty object, the
// condition an endpoint's jsonBodyRequired flag treats as "no body".
func isEmptyJSONBody(body map[string]any) bool {
	return len(body) == 0
}

// checkJSONBody enforces jsonBodyRequired and runs the configured body
// validator against a non-empty body.
func checkJSONBody(e *Endpoint, body map[string]any) error {
	empty := isEmptyJSONBody(body)
	if e.jsonBodyRequired && empty {
		return NewMissingJSONBodyError("a non-empty JSON body is required")
	}
	if e.bodyValidator != nil && !empty {
		if !e.bodyValidator.IsValid(body) {
			return NewInvalidJSONBodyError("request body failed validation")
		}
	}
	return nil
}

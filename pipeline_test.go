package gatekeeper

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/tls"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/northbeam/gatekeeper/signature"
)

const testSigningKey = "test-signing-key"

func signedRequest(t *testing.T, method, target, body, apiKey, nonce, date string) *http.Request {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.TLS = &tls.ConnectionState{}
	canonicalBody, err := signature.CanonicalizeJSONBody([]byte(body))
	if err != nil {
		t.Fatalf("canonicalize body: %v", err)
	}
	pathAndQuery := req.URL.EscapedPath()
	if req.URL.RawQuery != "" {
		pathAndQuery += "?" + req.URL.RawQuery
	}
	signingInput := signature.BuildSigningString(pathAndQuery, method, nonce, date, canonicalBody)
	mac := hmac.New(sha256.New, []byte(testSigningKey))
	_, _ = mac.Write(signingInput)
	req.Header.Set("X-API-Key", apiKey)
	req.Header.Set("Date", date)
	req.Header.Set("X-Signature-Nonce", nonce)
	req.Header.Set("X-Signature", hex.EncodeToString(mac.Sum(nil)))
	return req
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func testDataManager() DataManager {
	return DataManagerFunc(func(_ context.Context, apiKey string) (string, error) {
		if apiKey != "test-app" {
			return "", context.DeadlineExceeded
		}
		return testSigningKey, nil
	})
}

func echoEndpoint(t *testing.T, characteristics []Characteristic, opts ...EndpointOption) *Endpoint {
	t.Helper()
	handler := func(_ context.Context, req *RequestContext) (Response, error) {
		return Response{Status: http.StatusOK, Data: map[string]any{"ok": true}}, nil
	}
	return NewEndpoint("widgets", "", GET, handler, characteristics, opts...)
}

func newTestPipeline(t *testing.T, registerFn func(*Registry), now time.Time) *Pipeline {
	t.Helper()
	reg := NewRegistry()
	registerFn(reg)
	return New(reg,
		WithDataManager(testDataManager()),
		withClock(fixedClock(now)),
	)
}

func TestPipelineAcceptsValidSignedRequest(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	pipeline := newTestPipeline(t, func(reg *Registry) {
		e := NewEndpoint("widgets", "", GET,
			func(_ context.Context, req *RequestContext) (Response, error) {
				return Response{Data: map[string]any{"ok": true}}, nil
			},
			[]Characteristic{PublicUnownedData})
		if err := reg.Register(e); err != nil {
			t.Fatalf("register: %v", err)
		}
	}, now)

	req := signedRequest(t, http.MethodGet, "https://api.example.com/widgets", "", "test-app", "nonce-1", now.Format(http.TimeFormat))
	rec := httptest.NewRecorder()
	pipeline.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestPipelineBodyKeyOrderInvariant(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	// Every case is presented with the signature computed for the first
	// body, so a reordered body is admitted only if it canonicalizes
	// identically.
	var firstSignature string
	for i, body := range []string{
		`{"alpha":"1","beta":{"x":"2","y":"3"}}`,
		`{"beta":{"y":"3","x":"2"},"alpha":"1"}`,
	} {
		pipeline := newTestPipeline(t, func(reg *Registry) {
			e := NewEndpoint("orders", "", POST,
				func(_ context.Context, req *RequestContext) (Response, error) {
					return Response{Status: http.StatusCreated}, nil
				},
				[]Characteristic{PublicUnownedData}, WithJSONBodyRequired())
			if err := reg.Register(e); err != nil {
				t.Fatalf("register: %v", err)
			}
		}, now)

		nonce := "nonce-order"
		req := signedRequest(t, http.MethodPost, "https://api.example.com/orders", body, "test-app", nonce, now.Format(http.TimeFormat))
		if i == 0 {
			firstSignature = req.Header.Get("X-Signature")
		} else {
			req.Header.Set("X-Signature", firstSignature)
		}
		rec := httptest.NewRecorder()
		pipeline.ServeHTTP(rec, req)

		if rec.Code != http.StatusCreated {
			t.Fatalf("case %d: expected 201, got %d: %s", i, rec.Code, rec.Body.String())
		}
	}
}

func TestPipelineRejectsRecasedQueryValue(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	pipeline := newTestPipeline(t, func(reg *Registry) {
		e := NewEndpoint("search", "", GET,
			func(_ context.Context, req *RequestContext) (Response, error) {
				return Response{}, nil
			},
			[]Characteristic{PublicUnownedData},
			WithQueryParam(QueryParam{Name: "q"}))
		if err := reg.Register(e); err != nil {
			t.Fatalf("register: %v", err)
		}
	}, now)

	date := now.Format(http.TimeFormat)
	req := signedRequest(t, http.MethodGet, "https://api.example.com/search?q=Hello", "", "test-app", "nonce-2", date)
	req.URL.RawQuery = "q=hello"

	rec := httptest.NewRecorder()
	pipeline.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for signature mismatch on re-cased query, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestPipelineRejectsReplayedRequest(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	pipeline := newTestPipeline(t, func(reg *Registry) {
		e := echoEndpoint(t, []Characteristic{PublicUnownedData})
		if err := reg.Register(e); err != nil {
			t.Fatalf("register: %v", err)
		}
	}, now)

	date := now.Format(http.TimeFormat)
	build := func() *http.Request {
		return signedRequest(t, http.MethodGet, "https://api.example.com/widgets", "", "test-app", "nonce-replay", date)
	}

	first := httptest.NewRecorder()
	pipeline.ServeHTTP(first, build())
	if first.Code != http.StatusOK {
		t.Fatalf("expected first request to succeed, got %d: %s", first.Code, first.Body.String())
	}

	second := httptest.NewRecorder()
	pipeline.ServeHTTP(second, build())
	if second.Code != http.StatusUnauthorized {
		t.Fatalf("expected replayed request to be rejected, got %d: %s", second.Code, second.Body.String())
	}
}

func TestPipelineRejectsStaleRequest(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	pipeline := newTestPipeline(t, func(reg *Registry) {
		e := echoEndpoint(t, []Characteristic{PublicUnownedData})
		if err := reg.Register(e); err != nil {
			t.Fatalf("register: %v", err)
		}
	}, now)

	staleDate := now.Add(-5 * time.Minute).Format(http.TimeFormat)
	req := signedRequest(t, http.MethodGet, "https://api.example.com/widgets", "", "test-app", "nonce-stale", staleDate)

	rec := httptest.NewRecorder()
	pipeline.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected stale request to be rejected, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestPipelineDeniesUnownedPrivateData(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	pipeline := newTestPipeline(t, func(reg *Registry) {
		e := NewEndpoint("accounts", "", GET,
			func(_ context.Context, req *RequestContext) (Response, error) {
				return Response{}, nil
			},
			[]Characteristic{PrivateOwnedData},
			WithQueryParam(QueryParam{Name: "id", Required: true}),
			WithOwnershipPredicate(func(_ context.Context, _ *RequestContext) bool { return false }))
		if err := reg.Register(e); err != nil {
			t.Fatalf("register: %v", err)
		}
	}, now)

	date := now.Format(http.TimeFormat)
	req := signedRequest(t, http.MethodGet, "https://api.example.com/accounts?id=acct_1", "", "test-app", "nonce-own", date)

	rec := httptest.NewRecorder()
	pipeline.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected non-owner to be denied, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestPipelineRejectsMissingRequiredQueryParameter(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	pipeline := newTestPipeline(t, func(reg *Registry) {
		e := NewEndpoint("accounts", "", GET,
			func(_ context.Context, req *RequestContext) (Response, error) {
				return Response{}, nil
			},
			[]Characteristic{PrivateOwnedData},
			WithQueryParam(QueryParam{Name: "id", Required: true}),
			WithOwnershipPredicate(func(_ context.Context, _ *RequestContext) bool { return true }))
		if err := reg.Register(e); err != nil {
			t.Fatalf("register: %v", err)
		}
	}, now)

	date := now.Format(http.TimeFormat)
	req := signedRequest(t, http.MethodGet, "https://api.example.com/accounts", "", "test-app", "nonce-missing", date)

	rec := httptest.NewRecorder()
	pipeline.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected missing query parameter to be rejected with 400, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestPipelineDeveloperModeRequiresDevelopmentEnvironment(t *testing.T) {
	t.Parallel()

	reg := NewRegistry()
	e := echoEndpoint(t, []Characteristic{PublicUnownedData})
	if err := reg.Register(e); err != nil {
		t.Fatalf("register: %v", err)
	}

	pipeline := New(reg,
		WithConfig(Config{
			Port:                 8080,
			DeveloperModeEnabled: true,
			Environment:          Production,
		}),
	)

	if err := pipeline.Start(); err == nil {
		t.Fatalf("expected Start to refuse developer mode outside Development")
	}
}

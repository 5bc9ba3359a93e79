// Command checkoutgateway runs the checkout and delegated payment examples
// behind a gatekeeper pipeline, configured entirely from the environment.
package main

import (
	"context"
	"os"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/northbeam/gatekeeper"
	"github.com/northbeam/gatekeeper/examples/checkout"
	"github.com/northbeam/gatekeeper/examples/delegatedpayment"
)

// envSpec is populated by envconfig from GATEKEEPER_* environment variables.
type envSpec struct {
	Port                 int           `envconfig:"PORT" default:"8080"`
	Host                 string        `envconfig:"HOST" default:"0.0.0.0"`
	MaxRequestAge        time.Duration `envconfig:"MAX_REQUEST_AGE" default:"60s"`
	DeveloperModeEnabled bool          `envconfig:"DEVELOPER_MODE" default:"false"`
	Environment          string        `envconfig:"ENVIRONMENT" default:"production"`
	TrustForwardedProto  bool          `envconfig:"TRUST_FORWARDED_PROTO" default:"true"`

	// APIKeys maps apiKey=signingKey pairs separated by commas, e.g.
	// "demo-key=demo-secret,other-key=other-secret". A DataManager backed by
	// an actual application store replaces this in production.
	APIKeys string `envconfig:"API_KEYS" default:"demo-key=demo-secret"`

	// AdminAPIKeys and PrivilegedAPIKeys grant the Admin and PrivilegedRequestor
	// access levels to the listed API keys (comma-separated).
	AdminAPIKeys      string `envconfig:"ADMIN_API_KEYS"`
	PrivilegedAPIKeys string `envconfig:"PRIVILEGED_API_KEYS"`

	WebhookEndpoint string `envconfig:"WEBHOOK_ENDPOINT"`
	WebhookHeader   string `envconfig:"WEBHOOK_HEADER"`
	WebhookSecret   string `envconfig:"WEBHOOK_SECRET"`
}

func main() {
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		With().Timestamp().Str("component", "checkoutgateway").Logger()

	var spec envSpec
	if err := envconfig.Process("gatekeeper", &spec); err != nil {
		logger.Fatal().Err(err).Msg("failed to load configuration")
	}

	apiKeys := parsePairs(spec.APIKeys)
	admins := parseSet(spec.AdminAPIKeys)
	privileged := parseSet(spec.PrivilegedAPIKeys)

	dataManager := gatekeeper.DataManagerFunc(func(_ context.Context, apiKey string) (string, error) {
		key, ok := apiKeys[apiKey]
		if !ok {
			return "", gatekeeper.NewUnauthorizedAppError("unknown API key")
		}
		return key, nil
	})

	evaluator := gatekeeper.EvaluatorFuncs{
		IsInternal: func(_ context.Context, req *gatekeeper.RequestContext) bool {
			return admins[req.APIKey]
		},
		IsPrivileged: func(_ context.Context, req *gatekeeper.RequestContext) bool {
			return admins[req.APIKey] || privileged[req.APIKey]
		},
		IsAuthenticated: func(_ context.Context, req *gatekeeper.RequestContext) bool {
			return req.APIKey != ""
		},
	}

	registry := gatekeeper.NewRegistry()

	checkoutProvider := checkout.NewMemoryProvider("USD", checkout.DefaultCatalog())
	if spec.WebhookEndpoint != "" {
		checkoutProvider.EnableWebhooks(checkout.NewWebhookSender(checkout.WebhookConfig{
			Endpoint: spec.WebhookEndpoint,
			Header:   spec.WebhookHeader,
			Secret:   []byte(spec.WebhookSecret),
		}))
		logger.Info().Str("endpoint", spec.WebhookEndpoint).Msg("webhook delivery enabled")
	}
	if err := checkout.RegisterEndpoints(registry, checkoutProvider); err != nil {
		logger.Fatal().Err(err).Msg("failed to register checkout endpoints")
	}

	paymentProvider := delegatedpayment.NewMemoryProvider()
	if err := delegatedpayment.RegisterEndpoint(registry, paymentProvider); err != nil {
		logger.Fatal().Err(err).Msg("failed to register delegated payment endpoint")
	}

	metrics := gatekeeper.NewPrometheusMetrics(prometheus.DefaultRegisterer)

	pipeline := gatekeeper.New(registry,
		gatekeeper.WithConfig(gatekeeper.Config{
			Port:                 spec.Port,
			Host:                 spec.Host,
			MaxRequestAge:        spec.MaxRequestAge,
			DeveloperModeEnabled: spec.DeveloperModeEnabled,
			TrustForwardedProto:  spec.TrustForwardedProto,
			Environment:          gatekeeper.Environment(spec.Environment),
		}),
		gatekeeper.WithDataManager(dataManager),
		gatekeeper.WithEvaluator(evaluator),
		gatekeeper.WithMetrics(metrics),
		gatekeeper.WithLogger(logger),
	)

	if err := pipeline.Start(); err != nil {
		logger.Fatal().Err(err).Msg("gatekeeper pipeline exited")
	}
}

func parsePairs(s string) map[string]string {
	out := make(map[string]string)
	for _, pair := range strings.Split(s, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		key, value, ok := strings.Cut(pair, "=")
		if !ok {
			continue
		}
		out[key] = value
	}
	return out
}

func parseSet(s string) map[string]bool {
	out := make(map[string]bool)
	for _, key := range strings.Split(s, ",") {
		key = strings.TrimSpace(key)
		if key == "" {
			continue
		}
		out[key] = true
	}
	return out
}

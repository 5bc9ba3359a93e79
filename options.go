package gatekeeper

import (
	"time"

	"github.com/rs/zerolog"
)

// defaultMaxRequestAge is the freshness window and replay-cache TTL used
// when Config.MaxRequestAge is zero.
const defaultMaxRequestAge = 60 * time.Second

// Config holds the process-wide options recognized by the pipeline. Process
// startup, CLI parsing, and config-file loading are left to the embedding
// application — Config is populated by hand or via a loader such as the
// envconfig one the example binaries use.
type Config struct {
	// MaxRequestAge is the freshness window and replay-cache TTL.
	// Defaults to 60 seconds.
	MaxRequestAge time.Duration
	// Port the server listens on. Required by Start.
	Port int
	// Host the server binds to. Defaults to 127.0.0.1.
	Host string
	// DeveloperModeEnabled disables the transport guard, application
	// authentication, and freshness/replay/signature verification steps.
	// MUST be refused in production configuration — see [Pipeline.Start].
	DeveloperModeEnabled bool
	// TrustForwardedProto controls whether X-Forwarded-Proto: https
	// satisfies the transport guard unconditionally. The zero value is
	// false: the header is ignored and only a TLS connection passes the
	// guard unless this is set to true explicitly.
	TrustForwardedProto bool
	// Environment gates DeveloperModeEnabled. Start refuses to run with
	// developer mode on unless this is explicitly Development. Defaults to
	// Production.
	Environment Environment
}

func (c Config) environment() Environment {
	if c.Environment == "" {
		return Production
	}
	return c.Environment
}

func (c Config) maxRequestAge() time.Duration {
	if c.MaxRequestAge <= 0 {
		return defaultMaxRequestAge
	}
	return c.MaxRequestAge
}

func (c Config) host() string {
	if c.Host == "" {
		return "127.0.0.1"
	}
	return c.Host
}

type pipelineConfig struct {
	cfg         Config
	dataManager DataManager
	cache       Cache
	evaluator   Evaluator
	metrics     Metrics
	logger      zerolog.Logger
	clock       func() time.Time
}

// Option customizes a [Pipeline] at construction time.
type Option func(*pipelineConfig)

// WithConfig supplies the process-wide [Config].
func WithConfig(cfg Config) Option {
	return func(pc *pipelineConfig) { pc.cfg = cfg }
}

// WithDataManager supplies the application authenticator's signing-key
// resolver. Required unless developer mode is enabled.
func WithDataManager(dm DataManager) Option {
	return func(pc *pipelineConfig) { pc.dataManager = dm }
}

// WithCache supplies the backing store for the replay cache. Defaults to an
// [InMemoryCache] when omitted.
func WithCache(c Cache) Option {
	return func(pc *pipelineConfig) { pc.cache = c }
}

// WithEvaluator supplies the access level evaluator. Defaults to a
// zero-value [EvaluatorFuncs], under which every caller classification
// predicate is false.
func WithEvaluator(e Evaluator) Option {
	return func(pc *pipelineConfig) { pc.evaluator = e }
}

// WithMetrics supplies the metrics sink. Defaults to a no-op
// implementation.
func WithMetrics(m Metrics) Option {
	return func(pc *pipelineConfig) { pc.metrics = m }
}

// WithLogger overrides the structured logger used for rejection and
// developer-mode warnings. Defaults to a zerolog logger writing to stderr.
func WithLogger(logger zerolog.Logger) Option {
	return func(pc *pipelineConfig) { pc.logger = logger }
}

// withClock provides deterministic time in tests.
func withClock(fn func() time.Time) Option {
	return func(pc *pipelineConfig) { pc.clock = fn }
}

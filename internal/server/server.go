package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/RyanBlaney/sonido-sonar/logging"

	"github.com/RyanBlaney/activity-spectra/pkg/common"
	"github.com/RyanBlaney/activity-spectra/pkg/model"
	"github.com/RyanBlaney/activity-spectra/pkg/pipeline"
)

// InputMode selects what /predict expects in its data array
type InputMode string

const (
	// InputRaw expects one raw window and runs the single-window pipeline
	InputRaw InputMode = "raw"
	// InputFeatures expects an already computed feature vector
	InputFeatures InputMode = "features"
)

const (
	defaultMaxBodyBytes   = 1 << 20
	defaultRequestTimeout = 5 * time.Second
)

// Config holds the HTTP server settings
type Config struct {
	Addr            string        `mapstructure:"addr"`
	InputMode       InputMode     `mapstructure:"input_mode"`
	RequestTimeout  time.Duration `mapstructure:"request_timeout"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	MaxBodyBytes    int64         `mapstructure:"max_body_bytes"`
}

// Server is the inference HTTP service. The pipeline and predictor are
// injected at construction and shared by all requests.
type Server struct {
	config     Config
	pipeline   *pipeline.Pipeline
	predictor  *model.Predictor
	metrics    Metrics
	prometheus *PrometheusMetrics
	logger     logging.Logger
	handler    http.Handler
	httpServer *http.Server
}

// Option configures optional server collaborators
type Option func(*Server)

// WithMetrics replaces the default Prometheus metrics. A *PrometheusMetrics,
// alone or inside MultiMetrics, is also exposed on /metrics.
func WithMetrics(m Metrics) Option {
	return func(s *Server) {
		s.metrics = m
		s.prometheus = nil
		switch v := m.(type) {
		case *PrometheusMetrics:
			s.prometheus = v
		case MultiMetrics:
			for _, inner := range v {
				if pm, ok := inner.(*PrometheusMetrics); ok {
					s.prometheus = pm
				}
			}
		}
	}
}

// New creates a new inference server
func New(cfg Config, p *pipeline.Pipeline, predictor *model.Predictor, logger logging.Logger, opts ...Option) (*Server, error) {
	if p == nil || predictor == nil {
		return nil, errors.New("pipeline and predictor are required")
	}
	if logger == nil {
		logger = &logging.NoOpLogger{}
	}

	if cfg.InputMode == "" {
		cfg.InputMode = InputRaw
	}
	if cfg.InputMode != InputRaw && cfg.InputMode != InputFeatures {
		return nil, common.InvalidConfiguration("unknown input mode %q (valid: %s, %s)", cfg.InputMode, InputRaw, InputFeatures)
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = defaultMaxBodyBytes
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = defaultRequestTimeout
	}

	// the classifier must consume exactly what the pipeline produces
	if want := predictor.InputLength(); want > 0 && want != p.Config().FeatureLength() {
		return nil, common.InvalidConfiguration(
			"model expects %d features but the pipeline produces %d", want, p.Config().FeatureLength())
	}

	prom := NewPrometheusMetrics()
	s := &Server{
		config:     cfg,
		pipeline:   p,
		predictor:  predictor,
		metrics:    prom,
		prometheus: prom,
		logger:     logger.WithFields(logging.Fields{"component": "inference_server"}),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.metrics == nil {
		s.metrics = noopMetrics{}
	}

	s.handler = s.routes()
	return s, nil
}

// Handler returns the root HTTP handler
func (s *Server) Handler() http.Handler {
	return s.handler
}

// ExpectedLength returns the data length /predict accepts
func (s *Server) ExpectedLength() int {
	if s.config.InputMode == InputFeatures {
		return s.pipeline.Config().FeatureLength()
	}
	return s.pipeline.Config().InputLength()
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()

	predict := http.TimeoutHandler(
		http.HandlerFunc(s.handlePredict),
		s.config.RequestTimeout,
		`{"error":{"kind":"Timeout","message":"request timed out"}}`,
	)

	mux.Handle("POST /predict", s.instrument("predict", predict))
	mux.Handle("GET /healthz", s.instrument("healthz", http.HandlerFunc(s.handleHealth)))
	mux.Handle("GET /{$}", s.instrument("root", http.HandlerFunc(s.handleRoot)))
	if s.prometheus != nil {
		mux.Handle("GET /metrics", s.prometheus.Handler())
	}
	return mux
}

// Start listens on the configured address and serves until ctx is cancelled,
// then drains in-flight requests
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.config.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.config.Addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is cancelled
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.httpServer = &http.Server{
		Handler:      s.handler,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}

	s.logger.Info("Inference server listening", logging.Fields{
		"addr":           ln.Addr().String(),
		"input_mode":     s.config.InputMode,
		"expected_len":   s.ExpectedLength(),
		"feature_length": s.pipeline.Config().FeatureLength(),
	})

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.httpServer.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	timeout := s.config.ShutdownTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	s.logger.Info("Shutting down inference server", logging.Fields{"timeout_seconds": timeout.Seconds()})
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down server: %w", err)
	}
	return nil
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) instrument(endpoint string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		started := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.metrics.ObserveRequest(endpoint, rec.status, time.Since(started))
	})
}

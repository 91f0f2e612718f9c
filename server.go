package prefixcode

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"
)

// Server bundles the model store, codec cache, streaming hub and HTTP API
// into one service. Codecs are built on first use per model and dropped
// when the model changes.
type Server struct {
	config    Config
	store     ModelStore
	hub       *StreamHub
	metrics   *MetricsCollector
	health    *HealthChecker
	advisor   *CompressionAdvisor
	encryptor *Encryptor

	mu     sync.RWMutex
	codecs map[string]*Codec

	handler http.Handler
	rl      *rateLimiter

	srv      *http.Server
	listener net.Listener
}

// NewServer wires a server from the configuration. The configured default
// model is seeded from the built-in English letter table when the store
// does not hold it yet.
func NewServer(cfg Config) (*Server, error) {
	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	store, err := OpenModelStore(cfg.Store)
	if err != nil {
		return nil, err
	}

	s := &Server{
		config:  cfg,
		store:   store,
		metrics: NewMetricsCollector(),
		advisor: NewCompressionAdvisor(cfg.Advisor),
		codecs:  make(map[string]*Codec),
	}

	if cfg.Encryption != nil && cfg.Encryption.Enabled {
		enc, err := NewEncryptor(*cfg.Encryption)
		if err != nil {
			_ = store.Close()
			return nil, err
		}
		s.encryptor = enc
	}

	if cfg.DefaultModel == EnglishModelName {
		if err := s.seedDefaultModel(context.Background()); err != nil {
			_ = store.Close()
			return nil, err
		}
	}

	s.hub = NewStreamHub(store, cfg.DefaultModel, cfg.Stream)
	s.hub.metrics = s.metrics

	s.health = NewHealthChecker(DefaultHealthCheckerConfig())
	s.health.RegisterCheck("store", StoreHealthCheck(store))
	s.health.RegisterCheck("default_model", ModelHealthCheck(store, cfg.DefaultModel))
	s.health.RegisterCheck("memory", MemoryHealthCheck(0.9))

	s.handler = s.routes()
	return s, nil
}

func (s *Server) seedDefaultModel(ctx context.Context) error {
	exists, err := s.store.Exists(ctx, EnglishModelName)
	if err != nil {
		return fmt.Errorf("failed to check default model: %w", err)
	}
	if exists {
		return nil
	}
	if err := s.store.Put(ctx, EnglishLetterModel()); err != nil {
		return fmt.Errorf("failed to seed default model: %w", err)
	}
	return nil
}

// routes builds the HTTP handler with all endpoints mounted.
func (s *Server) routes() http.Handler {
	if s.config.HTTP.RateLimitPerSecond > 0 {
		s.rl = newRateLimiter(s.config.HTTP.RateLimitPerSecond, time.Second)
	}
	auth := newAuthenticator(s.config.HTTP.Auth)

	wrap := func(h http.HandlerFunc) http.HandlerFunc {
		h = authMiddleware(auth, h)
		if s.rl != nil {
			h = rateLimitMiddleware(s.rl, h)
		}
		return h
	}

	mux := http.NewServeMux()
	setupCodingRoutes(mux, s, wrap)
	setupModelRoutes(mux, s, wrap)
	setupAdvisorRoutes(mux, s, wrap)
	setupAdminRoutes(mux, s)
	if s.config.Stream.Enabled {
		mux.HandleFunc("/stream", wrap(s.hub.WebSocketHandler()))
	}
	return mux
}

// Handler returns the HTTP handler so callers can mount or test the API
// without opening a listener.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Store returns the server's model store.
func (s *Server) Store() ModelStore {
	return s.store
}

// Hub returns the streaming hub.
func (s *Server) Hub() *StreamHub {
	return s.hub
}

// Metrics returns the server's metrics collector.
func (s *Server) Metrics() *MetricsCollector {
	return s.metrics
}

// codecFor resolves a model name (empty means the configured default) to
// a cached codec, building and caching it on first use.
func (s *Server) codecFor(ctx context.Context, name string) (string, *Codec, error) {
	if name == "" {
		name = s.config.DefaultModel
	}
	s.mu.RLock()
	codec, ok := s.codecs[name]
	s.mu.RUnlock()
	if ok {
		return name, codec, nil
	}

	model, err := s.store.Get(ctx, name)
	if err != nil {
		return name, nil, err
	}
	codec, err = model.Codec()
	if err != nil {
		return name, nil, err
	}

	s.mu.Lock()
	s.codecs[name] = codec
	s.mu.Unlock()
	return name, codec, nil
}

// invalidateCodec drops the cached codec for a model after it changes.
func (s *Server) invalidateCodec(name string) {
	s.mu.Lock()
	delete(s.codecs, name)
	s.mu.Unlock()
}

// Start opens the listener and serves the API in the background.
func (s *Server) Start() error {
	addr := net.JoinHostPort(s.config.HTTP.Host, strconv.Itoa(s.config.HTTP.Port))
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	s.listener = listener
	s.srv = &http.Server{
		Handler:      s.handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}
	go func() {
		_ = s.srv.Serve(listener)
	}()
	return nil
}

// Addr returns the bound listen address, or "" before Start.
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Close shuts the server down: streaming sessions first, then the HTTP
// listener, then the store.
func (s *Server) Close() error {
	s.hub.CloseAll()
	if s.rl != nil {
		s.rl.stop()
	}

	var firstErr error
	if s.srv != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.srv.Shutdown(ctx); err != nil {
			firstErr = err
		}
	}
	if err := s.store.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

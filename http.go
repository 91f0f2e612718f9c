package prefixcode

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/golang/snappy"
)

type encodeRequest struct {
	Model   string `json:"model,omitempty"`
	Data    string `json:"data"`
	Encrypt bool   `json:"encrypt,omitempty"`
}

type encodeResponse struct {
	Model    string  `json:"model"`
	Packed   string  `json:"packed"`
	BitLen   int     `json:"bit_len"`
	Padding  int     `json:"padding"`
	BytesIn  int     `json:"bytes_in"`
	BytesOut int     `json:"bytes_out"`
	Ratio    float64 `json:"ratio"`
}

type decodeRequest struct {
	Model  string `json:"model,omitempty"`
	Packed string `json:"packed"`
	// BitLen is the count of meaningful bits. When omitted the whole
	// packed buffer, padding included, is decoded.
	BitLen  *int   `json:"bit_len,omitempty"`
	Mode    string `json:"mode,omitempty"`
	Decrypt bool   `json:"decrypt,omitempty"`
}

type decodeResponse struct {
	Model string `json:"model"`
	Data  string `json:"data"`
	Bytes int    `json:"bytes"`
}

type adviseRequest struct {
	Data string `json:"data"`
}

type modelListResponse struct {
	Models []string `json:"models"`
}

const (
	// maxBodySize is the fallback request body limit (10MB)
	maxBodySize = 10 * 1024 * 1024
)

// rateLimiter implements a simple token bucket rate limiter per IP
type rateLimiter struct {
	mu       sync.Mutex
	visitors map[string]*visitor
	rate     int           // requests per window
	window   time.Duration // time window
	cleanup  time.Duration // cleanup interval
	done     chan struct{}
}

type visitor struct {
	tokens    int
	lastReset time.Time
}

// newRateLimiter creates a rate limiter with the given rate per window.
func newRateLimiter(rate int, window time.Duration) *rateLimiter {
	rl := &rateLimiter{
		visitors: make(map[string]*visitor),
		rate:     rate,
		window:   window,
		cleanup:  window * 2,
		done:     make(chan struct{}),
	}
	go rl.cleanupLoop()
	return rl
}

func (rl *rateLimiter) cleanupLoop() {
	ticker := time.NewTicker(rl.cleanup)
	defer ticker.Stop()
	for {
		select {
		case <-rl.done:
			return
		case <-ticker.C:
			rl.mu.Lock()
			now := time.Now()
			for ip, v := range rl.visitors {
				if now.Sub(v.lastReset) > rl.cleanup {
					delete(rl.visitors, ip)
				}
			}
			rl.mu.Unlock()
		}
	}
}

func (rl *rateLimiter) stop() {
	close(rl.done)
}

func (rl *rateLimiter) allow(ip string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	v, exists := rl.visitors[ip]
	if !exists {
		rl.visitors[ip] = &visitor{tokens: rl.rate - 1, lastReset: now}
		return true
	}

	if now.Sub(v.lastReset) >= rl.window {
		v.tokens = rl.rate - 1
		v.lastReset = now
		return true
	}

	if v.tokens > 0 {
		v.tokens--
		return true
	}

	return false
}

// getClientIP extracts the client IP from the request
func getClientIP(r *http.Request) string {
	// Check X-Forwarded-For header
	xff := r.Header.Get("X-Forwarded-For")
	if xff != "" {
		ips := strings.Split(xff, ",")
		if len(ips) > 0 {
			return strings.TrimSpace(ips[0])
		}
	}

	// Check X-Real-IP header
	xri := r.Header.Get("X-Real-IP")
	if xri != "" {
		return xri
	}

	// Fall back to RemoteAddr
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}

// rateLimitMiddleware wraps a handler with rate limiting
func rateLimitMiddleware(rl *rateLimiter, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ip := getClientIP(r)
		if !rl.allow(ip) {
			w.Header().Set("Retry-After", "1")
			writeError(w, "rate limit exceeded", http.StatusTooManyRequests)
			return
		}
		next(w, r)
	}
}

// authenticator handles API key authentication
type authenticator struct {
	enabled      bool
	apiKeys      map[string]bool
	readOnlyKeys map[string]bool
	excludePaths map[string]bool
}

func newAuthenticator(cfg *AuthConfig) *authenticator {
	a := &authenticator{
		apiKeys:      make(map[string]bool),
		readOnlyKeys: make(map[string]bool),
		excludePaths: make(map[string]bool),
	}

	if cfg == nil || !cfg.Enabled {
		a.enabled = false
		return a
	}

	a.enabled = true
	for _, key := range cfg.APIKeys {
		a.apiKeys[key] = true
	}
	for _, key := range cfg.ReadOnlyKeys {
		a.readOnlyKeys[key] = true
	}
	for _, path := range cfg.ExcludePaths {
		a.excludePaths[path] = true
	}
	// Always allow health endpoint without auth
	a.excludePaths["/health"] = true

	return a
}

// extractAPIKey extracts the API key from the request
func extractAPIKey(r *http.Request) string {
	// Check Authorization header (Bearer token)
	auth := r.Header.Get("Authorization")
	if strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimPrefix(auth, "Bearer ")
	}

	// Check X-API-Key header
	if key := r.Header.Get("X-API-Key"); key != "" {
		return key
	}

	// Check query parameter
	return r.URL.Query().Get("api_key")
}

// isModelMutation returns true if the request modifies stored models
func isModelMutation(r *http.Request) bool {
	if r.Method == http.MethodPost || r.Method == http.MethodPut || r.Method == http.MethodDelete {
		return strings.HasPrefix(r.URL.Path, "/models")
	}
	return false
}

// authMiddleware wraps a handler with authentication
func authMiddleware(auth *authenticator, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !auth.enabled {
			next(w, r)
			return
		}

		// Check if path is excluded from auth
		if auth.excludePaths[r.URL.Path] {
			next(w, r)
			return
		}

		apiKey := extractAPIKey(r)
		if apiKey == "" {
			w.Header().Set("WWW-Authenticate", "Bearer")
			writeError(w, "authentication required", http.StatusUnauthorized)
			return
		}

		// Check if it's a full-access key
		if auth.apiKeys[apiKey] {
			next(w, r)
			return
		}

		// Check if it's a read-only key
		if auth.readOnlyKeys[apiKey] {
			if isModelMutation(r) {
				writeError(w, "read-only API key cannot modify models", http.StatusForbidden)
				return
			}
			next(w, r)
			return
		}

		writeError(w, "invalid API key", http.StatusUnauthorized)
	}
}

// middlewareWrapper wraps handlers with authentication and rate limiting
type middlewareWrapper func(h http.HandlerFunc) http.HandlerFunc

// readRequestBody reads a request body honoring the size limit. Bodies
// sent with Content-Encoding: snappy are expanded after reading.
func readRequestBody(w http.ResponseWriter, r *http.Request, limit int64) ([]byte, error) {
	if limit <= 0 {
		limit = maxBodySize
	}
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	body, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, err
	}
	if r.Header.Get("Content-Encoding") == "snappy" {
		decoded, err := snappy.Decode(nil, body)
		if err != nil {
			return nil, err
		}
		return decoded, nil
	}
	return body, nil
}

// errorStatus maps engine and store errors onto HTTP status codes.
func errorStatus(err error) int {
	switch {
	case errors.Is(err, ErrModelNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrModelExists):
		return http.StatusConflict
	case errors.Is(err, ErrInvalidModel),
		errors.Is(err, ErrEmptyFrequencyTable),
		errors.Is(err, ErrUnknownSymbol),
		errors.Is(err, ErrIncompleteCode),
		errors.Is(err, ErrUnalignedBitLength):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func parseDecodeMode(mode string) (DecodeMode, error) {
	switch mode {
	case "", "strict":
		return DecodeStrict, nil
	case "flush":
		return DecodeFlush, nil
	default:
		return DecodeStrict, errors.New("unknown decode mode: " + mode)
	}
}

// setupCodingRoutes configures the encode and decode endpoints
func setupCodingRoutes(mux *http.ServeMux, s *Server, wrap middlewareWrapper) {
	mux.HandleFunc("/encode", wrap(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		body, err := readRequestBody(w, r, s.config.HTTP.MaxBodyBytes)
		if err != nil {
			writeError(w, err.Error(), http.StatusBadRequest)
			return
		}
		var req encodeRequest
		if err := json.Unmarshal(body, &req); err != nil {
			writeError(w, err.Error(), http.StatusBadRequest)
			return
		}
		plaintext, err := base64.StdEncoding.DecodeString(req.Data)
		if err != nil {
			writeError(w, "data is not valid base64: "+err.Error(), http.StatusBadRequest)
			return
		}
		if req.Encrypt {
			if s.encryptor == nil {
				writeError(w, "encryption is not configured", http.StatusBadRequest)
				return
			}
			plaintext, err = s.encryptor.Encrypt(plaintext)
			if err != nil {
				writeError(w, err.Error(), http.StatusInternalServerError)
				return
			}
		}

		name, codec, err := s.codecFor(r.Context(), req.Model)
		if err != nil {
			writeError(w, err.Error(), errorStatus(err))
			return
		}

		start := time.Now()
		packed, bitLen, err := codec.EncodePacked(plaintext)
		s.metrics.RecordEncode(len(plaintext), bitLen, time.Since(start), err)
		if err != nil {
			writeError(w, err.Error(), errorStatus(err))
			return
		}

		ratio := 0.0
		if len(plaintext) > 0 {
			ratio = float64(len(packed)) / float64(len(plaintext))
		}
		writeJSON(w, encodeResponse{
			Model:    name,
			Packed:   base64.StdEncoding.EncodeToString(packed),
			BitLen:   bitLen,
			Padding:  len(packed)*8 - bitLen,
			BytesIn:  len(plaintext),
			BytesOut: len(packed),
			Ratio:    ratio,
		})
	}))

	mux.HandleFunc("/decode", wrap(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		body, err := readRequestBody(w, r, s.config.HTTP.MaxBodyBytes)
		if err != nil {
			writeError(w, err.Error(), http.StatusBadRequest)
			return
		}
		var req decodeRequest
		if err := json.Unmarshal(body, &req); err != nil {
			writeError(w, err.Error(), http.StatusBadRequest)
			return
		}
		packed, err := base64.StdEncoding.DecodeString(req.Packed)
		if err != nil {
			writeError(w, "packed is not valid base64: "+err.Error(), http.StatusBadRequest)
			return
		}
		mode, err := parseDecodeMode(req.Mode)
		if err != nil {
			writeError(w, err.Error(), http.StatusBadRequest)
			return
		}
		bitLen := -1
		if req.BitLen != nil {
			bitLen = *req.BitLen
			if bitLen < 0 || bitLen > len(packed)*8 {
				writeError(w, "bit_len out of range", http.StatusBadRequest)
				return
			}
		}

		name, codec, err := s.codecFor(r.Context(), req.Model)
		if err != nil {
			writeError(w, err.Error(), errorStatus(err))
			return
		}

		start := time.Now()
		data, err := codec.DecodePacked(packed, bitLen, mode)
		s.metrics.RecordDecode(time.Since(start), err)
		if err != nil {
			writeError(w, err.Error(), errorStatus(err))
			return
		}
		if req.Decrypt {
			if s.encryptor == nil {
				writeError(w, "encryption is not configured", http.StatusBadRequest)
				return
			}
			data, err = s.encryptor.Decrypt(data)
			if err != nil {
				writeError(w, "decryption failed: "+err.Error(), http.StatusBadRequest)
				return
			}
		}

		writeJSON(w, decodeResponse{
			Model: name,
			Data:  base64.StdEncoding.EncodeToString(data),
			Bytes: len(data),
		})
	}))
}

// setupModelRoutes configures model CRUD endpoints
func setupModelRoutes(mux *http.ServeMux, s *Server, wrap middlewareWrapper) {
	mux.HandleFunc("/models", wrap(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			names, err := s.store.List(r.Context())
			if err != nil {
				writeError(w, err.Error(), http.StatusInternalServerError)
				return
			}
			writeJSON(w, modelListResponse{Models: names})

		case http.MethodPost:
			body, err := readRequestBody(w, r, s.config.HTTP.MaxBodyBytes)
			if err != nil {
				writeError(w, err.Error(), http.StatusBadRequest)
				return
			}
			var model FrequencyModel
			if err := json.Unmarshal(body, &model); err != nil {
				writeError(w, err.Error(), http.StatusBadRequest)
				return
			}
			if err := model.Validate(); err != nil {
				writeError(w, err.Error(), http.StatusBadRequest)
				return
			}
			if strings.Contains(model.Metadata.Name, "/") {
				writeError(w, "model name cannot contain '/'", http.StatusBadRequest)
				return
			}
			exists, err := s.store.Exists(r.Context(), model.Metadata.Name)
			if err != nil {
				writeError(w, err.Error(), http.StatusInternalServerError)
				return
			}
			if exists {
				writeError(w, ErrModelExists.Error(), http.StatusConflict)
				return
			}
			if err := s.store.Put(r.Context(), model); err != nil {
				writeError(w, err.Error(), errorStatus(err))
				return
			}
			s.invalidateCodec(model.Metadata.Name)
			writeJSONStatus(w, http.StatusCreated, model)

		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	}))

	mux.HandleFunc("/models/", wrap(func(w http.ResponseWriter, r *http.Request) {
		rest := strings.TrimPrefix(r.URL.Path, "/models/")
		name := rest
		wantStats := false
		if strings.HasSuffix(rest, "/stats") {
			name = strings.TrimSuffix(rest, "/stats")
			wantStats = true
		}
		if name == "" || strings.Contains(name, "/") {
			writeError(w, "invalid model name", http.StatusBadRequest)
			return
		}

		switch {
		case wantStats && r.Method == http.MethodGet:
			model, err := s.store.Get(r.Context(), name)
			if err != nil {
				writeError(w, err.Error(), errorStatus(err))
				return
			}
			codec, err := model.Codec()
			if err != nil {
				writeError(w, err.Error(), errorStatus(err))
				return
			}
			writeJSON(w, codec.Stats())

		case !wantStats && r.Method == http.MethodGet:
			model, err := s.store.Get(r.Context(), name)
			if err != nil {
				writeError(w, err.Error(), errorStatus(err))
				return
			}
			writeJSON(w, model)

		case !wantStats && r.Method == http.MethodPut:
			body, err := readRequestBody(w, r, s.config.HTTP.MaxBodyBytes)
			if err != nil {
				writeError(w, err.Error(), http.StatusBadRequest)
				return
			}
			var model FrequencyModel
			if err := json.Unmarshal(body, &model); err != nil {
				writeError(w, err.Error(), http.StatusBadRequest)
				return
			}
			if model.Metadata.Name == "" {
				model.Metadata.Name = name
			}
			if model.Metadata.Name != name {
				writeError(w, "model name does not match URL", http.StatusBadRequest)
				return
			}
			if err := model.Validate(); err != nil {
				writeError(w, err.Error(), http.StatusBadRequest)
				return
			}
			if err := s.store.Put(r.Context(), model); err != nil {
				writeError(w, err.Error(), errorStatus(err))
				return
			}
			s.invalidateCodec(name)
			writeJSON(w, model)

		case !wantStats && r.Method == http.MethodDelete:
			if err := s.store.Delete(r.Context(), name); err != nil {
				writeError(w, err.Error(), errorStatus(err))
				return
			}
			s.invalidateCodec(name)
			w.WriteHeader(http.StatusNoContent)

		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	}))
}

// setupAdvisorRoutes configures the compression advisor endpoint
func setupAdvisorRoutes(mux *http.ServeMux, s *Server, wrap middlewareWrapper) {
	mux.HandleFunc("/advise", wrap(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		body, err := readRequestBody(w, r, s.config.HTTP.MaxBodyBytes)
		if err != nil {
			writeError(w, err.Error(), http.StatusBadRequest)
			return
		}
		var req adviseRequest
		if err := json.Unmarshal(body, &req); err != nil {
			writeError(w, err.Error(), http.StatusBadRequest)
			return
		}
		sample, err := base64.StdEncoding.DecodeString(req.Data)
		if err != nil {
			writeError(w, "data is not valid base64: "+err.Error(), http.StatusBadRequest)
			return
		}
		report, err := s.advisor.Advise(sample)
		if err != nil {
			writeError(w, err.Error(), http.StatusBadRequest)
			return
		}
		writeJSON(w, report)
	}))
}

// setupAdminRoutes configures health and metrics endpoints
func setupAdminRoutes(mux *http.ServeMux, s *Server) {
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		status := s.health.Status(r.Context())
		if status.Overall == HealthUnhealthy {
			writeJSONStatus(w, http.StatusServiceUnavailable, status)
			return
		}
		writeJSON(w, status)
	})

	mux.HandleFunc("/metrics", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		writeJSON(w, s.metrics.Snapshot())
	})
}

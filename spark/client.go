package spark

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"spark-client-lite/internal/config"
	"spark-client-lite/internal/registry"
)

const (
	contentTypeJSON  = "application/json; charset=utf-8"
	trackingIDHeader = "TrackingID"
	trackingIDPrefix = "spark-client_"
)

// ClientConfig holds configuration for creating a Client.
type ClientConfig struct {
	// BaseURL is the versioned API root. Defaults to the public service.
	BaseURL string
	// AccessToken is sent as a bearer token on every request.
	AccessToken string
	// HTTPClient is used for all requests. If nil, http.DefaultClient is used.
	HTTPClient *http.Client
	// Logger is used for structured logging. If nil, logrus.StandardLogger() is used.
	Logger logrus.FieldLogger
	// RequestsPerSecond caps outbound requests. Zero means unlimited.
	RequestsPerSecond float64
	// Registerer receives the client's request metrics. If nil, no metrics
	// are recorded.
	Registerer prometheus.Registerer
	// Constraints replaces the embedded field registry table (YAML).
	Constraints []byte
}

// Client binds an access token, an HTTP transport and one identity cache.
// All entity operations go through a Client; instances obtained from one
// Client must not be passed to another.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	logger     logrus.FieldLogger
	limiter    *rate.Limiter
	metrics    *clientMetrics
	registry   *registry.Registry
	cache      *identityCache
}

func NewClient(cfg ClientConfig) (*Client, error) {
	if strings.TrimSpace(cfg.AccessToken) == "" {
		return nil, fmt.Errorf("spark: AccessToken is required")
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = config.DefaultBaseURL
	}
	parsed, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("spark: invalid BaseURL %q: %w", baseURL, err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, fmt.Errorf("spark: invalid BaseURL %q: scheme must be http or https", baseURL)
	}

	reg, err := loadRegistry(cfg.Constraints)
	if err != nil {
		return nil, err
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	logger := cfg.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	var limiter *rate.Limiter
	if cfg.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
	}

	var metrics *clientMetrics
	if cfg.Registerer != nil {
		metrics, err = newClientMetrics(cfg.Registerer)
		if err != nil {
			return nil, err
		}
	}

	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      cfg.AccessToken,
		httpClient: httpClient,
		logger:     logger,
		limiter:    limiter,
		metrics:    metrics,
		registry:   reg,
		cache:      newIdentityCache(),
	}, nil
}

// NewClientFromEnv builds a client from SPARK_* environment variables and an
// optional .env file.
func NewClientFromEnv() (*Client, error) {
	cfg, err := config.LoadClientConfig()
	if err != nil {
		return nil, fmt.Errorf("spark: %w", err)
	}
	logger := logrus.New()
	logger.SetLevel(cfg.LogLevel)
	return NewClient(ClientConfig{
		BaseURL:           cfg.BaseURL,
		AccessToken:       cfg.AccessToken,
		HTTPClient:        &http.Client{Timeout: cfg.Timeout},
		Logger:            logger,
		RequestsPerSecond: cfg.RequestsPerSecond,
	})
}

func loadRegistry(constraints []byte) (*registry.Registry, error) {
	var (
		reg *registry.Registry
		err error
	)
	if constraints == nil {
		reg, err = registry.Default()
	} else {
		reg, err = registry.Parse(constraints)
	}
	if err != nil {
		return nil, fmt.Errorf("spark: load field registry: %w", err)
	}
	return reg, nil
}

// CloseIdleConnections closes idle connections of the underlying transport.
func (c *Client) CloseIdleConnections() {
	c.httpClient.CloseIdleConnections()
}

// response is a completed 2xx exchange.
type response struct {
	status int
	header http.Header
	length int64
	body   []byte
}

// send performs one HTTP exchange. path is either relative to the base URL
// or an absolute URL (pagination links, file URLs). Non-2xx responses and
// 2xx responses carrying an error body come back as *ServiceError.
func (c *Client) send(ctx context.Context, method, resource, path string, query url.Values, body any) (*response, error) {
	requestURL := path
	if !isAbsoluteURL(path) {
		requestURL = c.baseURL + "/" + strings.TrimLeft(path, "/")
	}
	if len(query) > 0 {
		sep := "?"
		if strings.Contains(requestURL, "?") {
			sep = "&"
		}
		requestURL += sep + query.Encode()
	}

	var bodyReader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("spark: encode request body: %w", err)
		}
		bodyReader = bytes.NewReader(encoded)
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, &TransportError{Method: method, Path: path, Err: err}
		}
	}

	request, err := http.NewRequestWithContext(ctx, method, requestURL, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("spark: create request: %w", err)
	}
	// The token only goes to the service; avatars live on other hosts.
	if strings.HasPrefix(requestURL, c.baseURL+"/") {
		request.Header.Set("Authorization", "Bearer "+c.token)
	}
	request.Header.Set("Accept", "application/json")
	if body != nil {
		request.Header.Set("Content-Type", contentTypeJSON)
	}
	trackingID := trackingIDPrefix + uuid.NewString()
	request.Header.Set(trackingIDHeader, trackingID)

	start := time.Now()
	resp, err := c.httpClient.Do(request)
	if err != nil {
		c.metrics.observe(method, resource, "error", time.Since(start))
		return nil, &TransportError{Method: method, Path: path, Err: err}
	}
	defer resp.Body.Close()

	responseBody, err := io.ReadAll(resp.Body)
	elapsed := time.Since(start)
	if err != nil {
		c.metrics.observe(method, resource, "error", elapsed)
		return nil, &TransportError{Method: method, Path: path, Err: err}
	}
	c.metrics.observe(method, resource, strconv.Itoa(resp.StatusCode), elapsed)

	c.logger.WithFields(logrus.Fields{
		"method":     method,
		"path":       path,
		"status":     resp.StatusCode,
		"trackingId": trackingID,
		"duration":   elapsed,
	}).Debug("spark request")

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, serviceErrorFrom(resp, responseBody)
	}
	if serviceErr := errorBody(responseBody); serviceErr != nil {
		serviceErr.StatusCode = resp.StatusCode
		return nil, serviceErr
	}

	return &response{status: resp.StatusCode, header: resp.Header, length: resp.ContentLength, body: responseBody}, nil
}

func isAbsoluteURL(path string) bool {
	return strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://")
}

// serviceErrorFrom builds the error for a non-2xx response. Bodies that do not
// carry the service's error shape fall back to the status text.
func serviceErrorFrom(resp *http.Response, body []byte) *ServiceError {
	serviceErr := &ServiceError{}
	if err := json.Unmarshal(body, serviceErr); err != nil || serviceErr.Message == "" {
		serviceErr = &ServiceError{Message: http.StatusText(resp.StatusCode)}
		if trimmed := strings.TrimSpace(string(body)); trimmed != "" && len(trimmed) < 512 {
			serviceErr.Errors = []ErrorDetail{{Description: trimmed}}
		}
	}
	serviceErr.StatusCode = resp.StatusCode
	if serviceErr.TrackingID == "" {
		serviceErr.TrackingID = resp.Header.Get(trackingIDHeader)
	}
	if resp.StatusCode == http.StatusTooManyRequests {
		serviceErr.RetryAfter = parseRetryAfter(resp.Header.Get("Retry-After"))
	}
	return serviceErr
}

// errorBody detects the service's error shape inside a 2xx body: a top-level
// "message" string with neither "id" nor "items".
func errorBody(body []byte) *ServiceError {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil
	}
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &doc); err != nil {
		return nil
	}
	raw, ok := doc["message"]
	if !ok {
		return nil
	}
	if _, ok := doc["id"]; ok {
		return nil
	}
	if _, ok := doc["items"]; ok {
		return nil
	}
	var message string
	if err := json.Unmarshal(raw, &message); err != nil {
		return nil
	}
	serviceErr := &ServiceError{}
	if err := json.Unmarshal(trimmed, serviceErr); err != nil {
		serviceErr = &ServiceError{Message: message}
	}
	return serviceErr
}

func parseRetryAfter(value string) time.Duration {
	if value == "" {
		return 0
	}
	if seconds, err := strconv.Atoi(value); err == nil && seconds >= 0 {
		return time.Duration(seconds) * time.Second
	}
	if at, err := http.ParseTime(value); err == nil {
		if d := time.Until(at); d > 0 {
			return d
		}
	}
	return 0
}

// Me returns the person owning the access token. The first call fetches
// people/me; later calls return the same cached instance.
func (c *Client) Me(ctx context.Context) (*Person, error) {
	if me := c.cache.me(); me != nil {
		return me, nil
	}
	key := cacheKey{kind: kindMe}
	err := c.cache.once(ctx, key, func() bool { return c.cache.mePerson != nil }, func(ctx context.Context) error {
		resp, err := c.send(ctx, http.MethodGet, KindPerson.Endpoint(), "people/me", nil, nil)
		if err != nil {
			return err
		}
		d, err := newWireDecoder(KindPerson, resp.body)
		if err != nil {
			return err
		}
		id := d.str("id", true)
		if err := d.err(); err != nil {
			return err
		}
		me := c.Person(id)
		id, created, apply, err := decodeRecord(c, me, resp.body)
		if err != nil {
			return err
		}
		applyRecord(me, id, created, apply)
		c.cache.setMe(me)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return c.cache.me(), nil
}

type clientMetrics struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

func newClientMetrics(reg prometheus.Registerer) (*clientMetrics, error) {
	requests, err := registerCollector(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "spark",
		Subsystem: "client",
		Name:      "requests_total",
		Help:      "Requests issued to the chat service by method, resource and status code.",
	}, []string{"method", "resource", "code"}))
	if err != nil {
		return nil, err
	}
	duration, err := registerCollector(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "spark",
		Subsystem: "client",
		Name:      "request_duration_seconds",
		Help:      "Round-trip time of requests to the chat service.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "resource"}))
	if err != nil {
		return nil, err
	}
	return &clientMetrics{requests: requests, duration: duration}, nil
}

// registerCollector registers c, reusing an identical collector that is
// already registered so several clients can share one registry.
func registerCollector[T prometheus.Collector](reg prometheus.Registerer, c T) (T, error) {
	if err := reg.Register(c); err != nil {
		var already prometheus.AlreadyRegisteredError
		if errors.As(err, &already) {
			if existing, ok := already.ExistingCollector.(T); ok {
				return existing, nil
			}
		}
		var zero T
		return zero, fmt.Errorf("spark: register metrics: %w", err)
	}
	return c, nil
}

func (m *clientMetrics) observe(method, resource, code string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(method, resource, code).Inc()
	m.duration.WithLabelValues(method, resource).Observe(elapsed.Seconds())
}

// Package ords talks to the clinic's ORDS REST backend. Every response is
// normalised once here: keys are lower-cased, list payloads are read from the
// items envelope and success/message envelopes become typed errors.
package ords

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/jwalitptl/odontogram-api/pkg/circuitbreaker"
	apperrors "github.com/jwalitptl/odontogram-api/pkg/errors"
	"github.com/jwalitptl/odontogram-api/pkg/logger"
	"github.com/jwalitptl/odontogram-api/pkg/metrics"
)

type Config struct {
	BaseURL         string
	Timeout         time.Duration
	BearerToken     string
	BreakerFailures int
	BreakerCooldown time.Duration
}

type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	cb         *circuitbreaker.CircuitBreaker
	metrics    *metrics.Metrics
	logger     *logger.Logger
}

func NewClient(cfg Config, m *metrics.Metrics, log *logger.Logger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if cfg.BreakerFailures <= 0 {
		cfg.BreakerFailures = 5
	}
	if cfg.BreakerCooldown <= 0 {
		cfg.BreakerCooldown = 30 * time.Second
	}
	if m == nil {
		m = metrics.NewNop()
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		token:   cfg.BearerToken,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		cb: circuitbreaker.NewCircuitBreaker(circuitbreaker.Settings{
			Name:        "ords",
			MaxFailures: cfg.BreakerFailures,
			Timeout:     cfg.BreakerCooldown,
		}),
		metrics: m,
		logger:  log,
	}
}

// Ping reports the backend unavailable while the breaker is open. It does not
// call the backend, so readiness checks never count towards tripping it.
func (c *Client) Ping(context.Context) error {
	if c.cb.State() == circuitbreaker.StateOpen {
		return fmt.Errorf("ords circuit breaker is open")
	}
	return nil
}

// response is a decoded body with every key lower-cased.
type response map[string]interface{}

// call performs one request. op names the backend operation in errors and metrics.
func (c *Client) call(ctx context.Context, op, method, path string, query url.Values, body interface{}) (response, error) {
	timer := prometheus.NewTimer(c.metrics.RemoteLatency.WithLabelValues(op))
	defer timer.ObserveDuration()

	var (
		status int
		raw    []byte
	)
	err := c.cb.Execute(func() error {
		var err error
		status, raw, err = c.roundTrip(ctx, method, path, query, body)
		if err != nil {
			return err
		}
		if status >= http.StatusInternalServerError {
			return fmt.Errorf("backend answered %d", status)
		}
		return nil
	})
	if err != nil {
		c.metrics.RemoteCalls.WithLabelValues(op, "error").Inc()
		c.logger.Warn("backend call failed", "operation", op, "path", path, "error", err.Error())
		return nil, apperrors.NewRemote(op, err)
	}

	resp, err := decode(raw)
	if err != nil {
		c.metrics.RemoteCalls.WithLabelValues(op, "error").Inc()
		return nil, apperrors.NewRemote(op, err)
	}
	if err := classify(op, status, resp); err != nil {
		c.metrics.RemoteCalls.WithLabelValues(op, "rejected").Inc()
		return nil, err
	}
	c.metrics.RemoteCalls.WithLabelValues(op, "success").Inc()
	return resp, nil
}

func (c *Client) roundTrip(ctx context.Context, method, path string, query url.Values, body interface{}) (int, []byte, error) {
	u := c.baseURL + "/" + strings.TrimLeft(path, "/")
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return 0, nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, err
	}
	return resp.StatusCode, raw, nil
}

// decode parses a body and lower-cases every object key, at any depth.
func decode(raw []byte) (response, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return response{}, nil
	}
	var v interface{}
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, fmt.Errorf("invalid JSON from backend: %w", err)
	}
	switch t := normalizeKeys(v).(type) {
	case map[string]interface{}:
		return response(t), nil
	case []interface{}:
		return response{"items": t}, nil
	default:
		return response{}, nil
	}
}

func normalizeKeys(v interface{}) interface{} {
	switch t := v.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(t))
		for k, val := range t {
			out[strings.ToLower(k)] = normalizeKeys(val)
		}
		return out
	case []interface{}:
		for i := range t {
			t[i] = normalizeKeys(t[i])
		}
		return t
	default:
		return v
	}
}

var notFoundMarkers = []string{"no encontrad", "not found", "no data found", "no existe"}

// classify turns HTTP status and success=false envelopes into typed errors.
func classify(op string, status int, resp response) error {
	message, _ := resp["message"].(string)
	if status == http.StatusNotFound {
		return apperrors.NewNotFound(op, fmt.Errorf("backend: %s", message))
	}
	if status >= http.StatusBadRequest {
		return apperrors.NewRemote(op, fmt.Errorf("backend answered %d: %s", status, message))
	}

	success, present := resp["success"]
	if !present || truthy(success) {
		return nil
	}
	lower := strings.ToLower(message)
	for _, marker := range notFoundMarkers {
		if strings.Contains(lower, marker) {
			return apperrors.NewNotFound(op, fmt.Errorf("backend: %s", message))
		}
	}
	return apperrors.NewRemote(op, fmt.Errorf("backend: %s", message))
}

func truthy(v interface{}) bool {
	switch t := v.(type) {
	case bool:
		return t
	case float64:
		return t != 0
	case string:
		switch strings.ToUpper(strings.TrimSpace(t)) {
		case "TRUE", "S", "Y", "1":
			return true
		}
	}
	return false
}

// items decodes the items envelope into out. A missing envelope is an empty list.
func (r response) items(out interface{}) error {
	list, ok := r["items"]
	if !ok || list == nil {
		list = []interface{}{}
	}
	return remarshal(list, out)
}

func (r response) idField(key string) int64 {
	switch t := r[key].(type) {
	case float64:
		return int64(t)
	case string:
		n, _ := strconv.ParseInt(strings.TrimSpace(t), 10, 64)
		return n
	}
	return 0
}

func remarshal(in, out interface{}) error {
	raw, err := json.Marshal(in)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, out)
}

func idPath(format string, id int64) string {
	return fmt.Sprintf(format, id)
}

func companyQuery(companyID int64) url.Values {
	q := url.Values{}
	if companyID > 0 {
		q.Set("empresa_id", fmt.Sprint(companyID))
	}
	return q
}

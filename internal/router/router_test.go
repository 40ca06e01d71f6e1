package router

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	promclient "github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"golang.org/x/time/rate"

	"github.com/jwalitptl/odontogram-api/internal/handler/health"
	"github.com/jwalitptl/odontogram-api/internal/handler/prometheus"
	"github.com/jwalitptl/odontogram-api/internal/middleware"
	"github.com/jwalitptl/odontogram-api/internal/model"
	"github.com/jwalitptl/odontogram-api/pkg/metrics"
)

type pingHandler struct{}

func (pingHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, middleware.Session(c))
	})
}

func newTestRouter(limit float64) *gin.Engine {
	gin.SetMode(gin.TestMode)
	reg := promclient.NewRegistry()
	up := health.PingFunc(func(context.Context) error { return nil })

	r := NewRouter(
		middleware.NewSessionMiddleware(middleware.SessionConfig{Secret: "s3cret"}),
		pingHandler{},
		health.NewHandler(map[string]health.Pinger{"database": up}),
		prometheus.New(reg, metrics.NewMetrics(reg, "odonto")),
		RouterConfig{
			RateLimit:      rate.Limit(limit),
			RateBurst:      1,
			CORSConfig:     middleware.DefaultCORSConfig(),
			RequestTimeout: time.Second,
		},
	)
	r.Setup()
	return r.Engine()
}

func get(e *gin.Engine, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.ServeHTTP(w, req)
	return w
}

func TestPublicEndpoints(t *testing.T) {
	e := newTestRouter(0)

	assert.Equal(t, http.StatusOK, get(e, "/health", "").Code)
	assert.Equal(t, http.StatusOK, get(e, "/health/live", "").Code)
	w := get(e, "/metrics", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "odonto_http_requests_total")
}

func TestAPIRequiresSession(t *testing.T) {
	e := newTestRouter(0)

	w := get(e, "/api/v1/ping", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.NotEmpty(t, w.Header().Get(middleware.HeaderXRequestID))

	token, err := middleware.IssueToken(middleware.SessionConfig{Secret: "s3cret"}, sessionFor(9, 7), time.Hour)
	assert.NoError(t, err)
	w = get(e, "/api/v1/ping", token)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"usuario_id":9,"empresa_id":7}`, w.Body.String())
	assert.Equal(t, "1.0", w.Header().Get("X-API-Version"))
}

func TestAPIRateLimitedPerUser(t *testing.T) {
	e := newTestRouter(0.001)
	token, err := middleware.IssueToken(middleware.SessionConfig{Secret: "s3cret"}, sessionFor(9, 7), time.Hour)
	assert.NoError(t, err)

	assert.Equal(t, http.StatusOK, get(e, "/api/v1/ping", token).Code)
	assert.Equal(t, http.StatusTooManyRequests, get(e, "/api/v1/ping", token).Code)
}

func sessionFor(userID, companyID int64) model.SessionContext {
	return model.SessionContext{UserID: userID, CompanyID: companyID}
}

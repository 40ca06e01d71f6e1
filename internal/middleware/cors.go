package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

// CORSConfig controls which browser origins may call the API. Sessions travel
// in the Authorization header, so cookies are never allowed.
type CORSConfig struct {
	// Origins lists the allowed origins; "*" allows any.
	Origins []string
	MaxAge  time.Duration
}

var (
	corsMethods = strings.Join([]string{
		http.MethodGet,
		http.MethodPost,
		http.MethodPut,
		http.MethodDelete,
		http.MethodOptions,
	}, ", ")
	corsHeaders = strings.Join([]string{
		"Authorization",
		"Content-Type",
		HeaderXRequestID,
		HeaderUserID,
		HeaderCompanyID,
	}, ", ")
	corsExposed = strings.Join([]string{HeaderXRequestID, "X-API-Version"}, ", ")
)

func DefaultCORSConfig() CORSConfig {
	return CORSConfig{Origins: []string{"*"}, MaxAge: 24 * time.Hour}
}

func (cfg CORSConfig) allows(origin string) bool {
	for _, o := range cfg.Origins {
		if o == "*" || strings.EqualFold(o, origin) {
			return true
		}
	}
	return false
}

// CORS answers preflights for allowed origins and decorates their responses.
// Requests from other origins pass through without CORS headers.
func CORS(cfg CORSConfig) gin.HandlerFunc {
	maxAge := strconv.Itoa(int(cfg.MaxAge / time.Second))

	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		if origin == "" {
			c.Next()
			return
		}
		c.Writer.Header().Add("Vary", "Origin")
		if !cfg.allows(origin) {
			if c.Request.Method == http.MethodOptions {
				c.AbortWithStatus(http.StatusForbidden)
				return
			}
			c.Next()
			return
		}

		c.Header("Access-Control-Allow-Origin", origin)
		c.Header("Access-Control-Expose-Headers", corsExposed)

		if c.Request.Method == http.MethodOptions {
			c.Header("Access-Control-Allow-Methods", corsMethods)
			c.Header("Access-Control-Allow-Headers", corsHeaders)
			c.Header("Access-Control-Max-Age", maxAge)
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

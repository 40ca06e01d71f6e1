package middleware

import (
	stderrors "errors"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"github.com/jwalitptl/odontogram-api/internal/model"
	apperrors "github.com/jwalitptl/odontogram-api/pkg/errors"
	"github.com/jwalitptl/odontogram-api/pkg/httputil"
)

const (
	ContextSession = "session"

	HeaderUserID    = "X-Usuario-ID"
	HeaderCompanyID = "X-Empresa-ID"
)

// SessionClaims is the token payload issued by the clinic's login service.
type SessionClaims struct {
	jwt.RegisteredClaims
	UserID    int64 `json:"user_id"`
	CompanyID int64 `json:"empresa_id"`
}

type SessionConfig struct {
	Secret string
	Issuer string
	// Disabled reads the session from X-Usuario-ID / X-Empresa-ID, for local runs.
	Disabled bool
}

type SessionMiddleware struct {
	config SessionConfig
}

func NewSessionMiddleware(config SessionConfig) *SessionMiddleware {
	return &SessionMiddleware{config: config}
}

// Authenticate resolves the caller's SessionContext and stores it in the gin context.
func (m *SessionMiddleware) Authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		var (
			session model.SessionContext
			err     error
		)
		if m.config.Disabled {
			session, err = sessionFromHeaders(c)
		} else {
			session, err = m.sessionFromToken(c.GetHeader("Authorization"))
		}
		if err != nil {
			httputil.RespondWithError(c, apperrors.Unauthorized(err))
			return
		}

		c.Set(ContextSession, session)
		c.Next()
	}
}

func (m *SessionMiddleware) sessionFromToken(header string) (model.SessionContext, error) {
	if header == "" {
		return model.SessionContext{}, stderrors.New("missing authorization header")
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return model.SessionContext{}, stderrors.New("invalid authorization format")
	}

	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if m.config.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(m.config.Issuer))
	}

	claims := &SessionClaims{}
	_, err := jwt.ParseWithClaims(strings.TrimSpace(parts[1]), claims, func(*jwt.Token) (interface{}, error) {
		return []byte(m.config.Secret), nil
	}, opts...)
	if err != nil {
		return model.SessionContext{}, err
	}
	if claims.UserID <= 0 {
		return model.SessionContext{}, stderrors.New("token has no user")
	}
	return model.SessionContext{UserID: claims.UserID, CompanyID: claims.CompanyID}, nil
}

func sessionFromHeaders(c *gin.Context) (model.SessionContext, error) {
	var s model.SessionContext
	if v := c.GetHeader(HeaderUserID); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return s, stderrors.New("invalid user header")
		}
		s.UserID = id
	}
	if v := c.GetHeader(HeaderCompanyID); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return s, stderrors.New("invalid company header")
		}
		s.CompanyID = id
	}
	return s, nil
}

// IssueToken signs a session token. Used by tests and local tooling.
func IssueToken(config SessionConfig, session model.SessionContext, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := SessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    config.Issuer,
			Subject:   strconv.FormatInt(session.UserID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		UserID:    session.UserID,
		CompanyID: session.CompanyID,
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(config.Secret))
}

// Session returns the caller's session set by Authenticate.
func Session(c *gin.Context) model.SessionContext {
	if v, ok := c.Get(ContextSession); ok {
		if s, ok := v.(model.SessionContext); ok {
			return s
		}
	}
	return model.SessionContext{}
}

package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/pythagon-backend/internal/http/response"
	"github.com/yungbote/pythagon-backend/internal/platform/ctxutil"
	"github.com/yungbote/pythagon-backend/internal/platform/logger"
	"github.com/yungbote/pythagon-backend/internal/services"
)

const callerIDKey = "caller_id"

type AuthMiddleware struct {
	log      *logger.Logger
	verifier services.IdentityVerifier
}

func NewAuthMiddleware(log *logger.Logger, verifier services.IdentityVerifier) *AuthMiddleware {
	return &AuthMiddleware{log: log.With("Middleware", "AuthMiddleware"), verifier: verifier}
}

// RequireAuth verifies the bearer credential and attaches the caller to the
// request context. Every failure is a 401 with the same envelope.
func (am *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c)
		if token == "" {
			abortUnauthorized(c, "missing or invalid token")
			return
		}
		id, err := am.verifier.Verify(c.Request.Context(), token)
		if err != nil || id == nil || id.CallerID == "" {
			kv := append([]interface{}{"path", c.FullPath(), "error", err}, ctxutil.LogFields(c.Request.Context())...)
			am.log.Debug("credential rejected", kv...)
			abortUnauthorized(c, "missing or invalid token")
			return
		}
		ctx := ctxutil.WithRequestData(c.Request.Context(), &ctxutil.RequestData{
			CallerID: id.CallerID,
			Provider: id.Provider,
		})
		c.Request = c.Request.WithContext(ctx)
		c.Set(callerIDKey, id.CallerID)
		c.Next()
	}
}

// CallerID returns the verified caller for this request.
func CallerID(c *gin.Context) string {
	if rd := ctxutil.GetRequestData(c.Request.Context()); rd != nil {
		return rd.CallerID
	}
	return c.GetString(callerIDKey)
}

func bearerToken(c *gin.Context) string {
	authHeader := strings.TrimSpace(c.GetHeader("Authorization"))
	if len(authHeader) > 7 && strings.EqualFold(authHeader[:7], "Bearer ") {
		return strings.TrimSpace(authHeader[7:])
	}
	return ""
}

func abortUnauthorized(c *gin.Context, msg string) {
	c.Header("WWW-Authenticate", "Bearer")
	c.AbortWithStatusJSON(http.StatusUnauthorized, response.ErrorEnvelope{
		Error: response.APIError{Message: msg, Code: "unauthorized"},
	})
}

package middleware

import (
	"regexp"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/vidgen/studio/internal/utils/requestctx"
)

const (
	// RequestIDHeader is the header key for request ID.
	RequestIDHeader = "X-Request-ID"
	// RequestIDKey is the context key for request ID.
	RequestIDKey = "request_id"

	// SessionHeader carries the client's opaque session id.
	SessionHeader = "X-Session-ID"
	// SessionQuery carries the session id where headers cannot be set,
	// such as a video element's src.
	SessionQuery = "session"
	// SessionKey is the context key for the session id.
	SessionKey = "session_id"
	// DefaultSession is used when a client sends no session id.
	DefaultSession = "default"
)

var sessionPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

// RequestID returns a middleware that adds a request ID to each request.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		// Check if request ID exists in header
		requestID := c.GetHeader(RequestIDHeader)
		if requestID == "" {
			requestID = uuid.New().String()
		}

		// Set request ID in context and response header
		c.Set(RequestIDKey, requestID)
		c.Header(RequestIDHeader, requestID)
		c.Request = c.Request.WithContext(requestctx.WithRequestID(c.Request.Context(), requestID))

		c.Next()
	}
}

// GetRequestID returns the request ID from context.
func GetRequestID(c *gin.Context) string {
	if id, exists := c.Get(RequestIDKey); exists {
		return id.(string)
	}
	return ""
}

// Session returns a middleware that resolves the client session id from the
// header or the query string. Missing or malformed ids fall back to DefaultSession.
func Session() gin.HandlerFunc {
	return func(c *gin.Context) {
		session := c.GetHeader(SessionHeader)
		if session == "" {
			session = c.Query(SessionQuery)
		}
		if !sessionPattern.MatchString(session) {
			session = DefaultSession
		}

		c.Set(SessionKey, session)
		c.Request = c.Request.WithContext(requestctx.WithSession(c.Request.Context(), session))

		c.Next()
	}
}

// GetSession returns the session id from context.
func GetSession(c *gin.Context) string {
	if s := c.GetString(SessionKey); s != "" {
		return s
	}
	return DefaultSession
}

package middleware

import (
	"net/http"

	"github.com/classchain/classchain/internal/entity"
	"github.com/classchain/classchain/internal/lib/session"
	"github.com/gin-gonic/gin"
)

const (
	// AdminCookie and AttendantCookie are distinct so both identities can
	// coexist in one browser.
	AdminCookie     = "classchain_admin"
	AttendantCookie = "classchain_attendant"

	SessionKey = "session"
)

type SessionMiddleware struct {
	codec *session.Codec
}

func NewSessionMiddleware(codec *session.Codec) *SessionMiddleware {
	return &SessionMiddleware{codec: codec}
}

// RequireAdmin aborts with 401 unless the request carries a valid admin
// session cookie with the ADMIN role.
func (m *SessionMiddleware) RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := c.Cookie(AdminCookie)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		sess, err := m.codec.Verify(token, session.ScopeAdmin)
		if err != nil || sess.Role != entity.RoleAdmin {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		c.Set(SessionKey, sess)
		c.Next()
	}
}

// OptionalAttendant attaches an attendant session when the cookie is present
// and valid, and lets the request through either way. Handlers that need
// identification check for the session themselves.
func (m *SessionMiddleware) OptionalAttendant() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := c.Cookie(AttendantCookie)
		if err == nil {
			if sess, err := m.codec.Verify(token, session.ScopeAttendant); err == nil {
				c.Set(SessionKey, sess)
			}
		}
		c.Next()
	}
}

// SessionFromContext returns the session the middleware attached, if any.
func SessionFromContext(c *gin.Context) (session.Session, bool) {
	value, exists := c.Get(SessionKey)
	if !exists {
		return session.Session{}, false
	}
	sess, ok := value.(session.Session)
	return sess, ok
}

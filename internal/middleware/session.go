package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	SessionCookie = "session_id"
	SessionKey    = "session_id"
)

// Session makes sure every request has a session id, issuing a cookie on
// first contact. Handlers read it with c.GetString(SessionKey).
func Session(maxAge int, secure bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := c.Cookie(SessionCookie)
		if err != nil || !validSessionID(id) {
			id = uuid.NewString()
			c.SetSameSite(http.SameSiteLaxMode)
			c.SetCookie(SessionCookie, id, maxAge, "/", "", secure, true)
		}
		c.Set(SessionKey, id)
		c.Next()
	}
}

func validSessionID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

package cache

import (
	"bytes"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

type responseWriter struct {
	gin.ResponseWriter
	body *bytes.Buffer
}

func (w *responseWriter) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

// paths that are never cached: anything behind auth or carrying state
var skipPrefixes = []string{
	"/studio", "/dashboard", "/account", "/login", "/signup",
	"/logout", "/confirm", "/staff", "/upvote", "/ping",
}

// SessionCookieName is the session cookie issued at login. Requests
// carrying it see personalized pages and must never touch the cache.
const SessionCookieName = "inkdrop-session"

// Middleware serves rendered pages from the file cache, keyed by host
// and path. Requests with query strings are passed through untouched so
// redirect markers and filters never get frozen into a cached page, and
// requests from logged-in visitors bypass the cache entirely so their
// personalized renders are neither stored nor served to others.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method != http.MethodGet || c.Request.URL.RawQuery != "" {
			c.Next()
			return
		}
		if _, err := c.Cookie(SessionCookieName); err == nil {
			c.Next()
			return
		}

		path := c.Request.URL.Path
		for _, prefix := range skipPrefixes {
			if strings.HasPrefix(path, prefix) {
				c.Next()
				return
			}
		}

		host := strings.ToLower(c.Request.Host)
		if cached, found := ReadPage(host, path); found {
			c.Header("X-Cache", "HIT")
			c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(cached))
			c.Abort()
			return
		}

		c.Header("X-Cache", "MISS")
		writer := &responseWriter{
			ResponseWriter: c.Writer,
			body:           bytes.NewBuffer(nil),
		}
		c.Writer = writer

		c.Next()

		if c.Writer.Status() == http.StatusOK &&
			strings.HasPrefix(c.Writer.Header().Get("Content-Type"), "text/html") {
			WritePage(host, path, writer.body.String())
		}
	}
}

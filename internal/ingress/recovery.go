package ingress

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
)

// recovery is gin.Recovery with one difference: http.ErrAbortHandler is re-raised so net/http
// drops the connection without writing a response.
func recovery(log *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			r := recover()
			if r == nil {
				return
			}
			if err, ok := r.(error); ok && errors.Is(err, http.ErrAbortHandler) {
				panic(r)
			}
			log.Error("panic recovered", "panic", fmt.Sprint(r), "path", c.Request.URL.Path)
			c.AbortWithStatus(http.StatusInternalServerError)
		}()
		c.Next()
	}
}

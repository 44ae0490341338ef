package middleware

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

const idempotencyHeader = "Idempotency-Key"
const idempotencyTTL = 24 * time.Hour

type replayWriter struct {
	gin.ResponseWriter
	buf bytes.Buffer
}

func (w *replayWriter) Write(b []byte) (int, error) {
	w.buf.Write(b)
	return w.ResponseWriter.Write(b)
}

// IdempotencyMiddleware replays the first response for requests repeating an
// Idempotency-Key. Mutating methods only; reads are idempotent already.
func IdempotencyMiddleware(client *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		switch c.Request.Method {
		case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		default:
			c.Next()
			return
		}

		key := c.GetHeader(idempotencyHeader)
		if key == "" {
			c.Next()
			return
		}

		sum := sha256.Sum256([]byte(key))
		cacheKey := "idempotency:" + hex.EncodeToString(sum[:])

		// A Redis miss or error falls through to the handler (fail open).
		ctx := c.Request.Context()
		if cached, err := client.Get(ctx, cacheKey).Result(); err == nil && cached != "" {
			c.Header("X-Idempotent-Replay", "true")
			c.Data(http.StatusOK, "application/json", []byte(cached))
			c.Abort()
			return
		}

		w := &replayWriter{ResponseWriter: c.Writer}
		c.Writer = w
		c.Next()

		// Only successful responses are cached; failures stay retryable.
		if c.Writer.Status() >= 200 && c.Writer.Status() < 300 && w.buf.Len() > 0 {
			client.Set(ctx, cacheKey, w.buf.String(), idempotencyTTL)
		}
	}
}

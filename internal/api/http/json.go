package http

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/bytedance/sonic"
	"github.com/gin-gonic/gin"
)

// maxBodyBytes bounds request bodies; submissions are source text.
const maxBodyBytes = 1 << 20

const contentTypeJSON = "application/json; charset=utf-8"

// respond writes v as JSON.
func respond(c *gin.Context, status int, v any) {
	body, err := sonic.Marshal(v)
	if err != nil {
		c.Data(http.StatusInternalServerError, contentTypeJSON, []byte(`{"error":"failed to encode response"}`))
		return
	}
	c.Data(status, contentTypeJSON, body)
}

// respondError writes {"error": msg}.
func respondError(c *gin.Context, status int, msg string) {
	respond(c, status, gin.H{"error": msg})
}

// bindJSON decodes the request body into v.
func bindJSON(c *gin.Context, v any) error {
	body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return fmt.Errorf("request body exceeds %d bytes", tooLarge.Limit)
		}
		return fmt.Errorf("read request body: %w", err)
	}
	if len(body) == 0 {
		return errors.New("request body is empty")
	}
	if err := sonic.Unmarshal(body, v); err != nil {
		return fmt.Errorf("invalid JSON: %w", err)
	}
	return nil
}

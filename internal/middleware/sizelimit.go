package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/consultorio/pkg/httputil"
)

type SizeLimitConfig struct {
	MaxBodySize int64
	// MaxUploadSize applies to paths ending in one of UploadSuffixes.
	MaxUploadSize  int64
	UploadSuffixes []string
	ErrorMessage   string
}

func DefaultSizeLimitConfig(maxBody, maxUpload int64) SizeLimitConfig {
	return SizeLimitConfig{
		MaxBodySize:    maxBody,
		MaxUploadSize:  maxUpload,
		UploadSuffixes: []string{"/radiografias/upload"},
		ErrorMessage:   "El contenido enviado es demasiado grande.",
	}
}

// SizeLimit rejects declared oversize bodies up front and caps the rest with MaxBytesReader.
func SizeLimit(config SizeLimitConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit := config.MaxBodySize
		for _, suffix := range config.UploadSuffixes {
			if strings.HasSuffix(c.Request.URL.Path, suffix) {
				// leave room for the multipart envelope and the other fields
				limit = config.MaxUploadSize + 1<<20
				break
			}
		}
		if limit <= 0 {
			c.Next()
			return
		}

		if c.Request.ContentLength > limit {
			c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, httputil.Response{
				Success: false,
				Error:   &httputil.Error{Code: http.StatusRequestEntityTooLarge, Message: config.ErrorMessage},
			})
			return
		}
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)
		c.Next()
	}
}

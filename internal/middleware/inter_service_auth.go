package middleware

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"pinksync/internal/models"
)

const (
	InterServiceTokenHeader = "X-Internal-Service-Token"
	// SourceServiceKey is the gin context key holding the caller's name.
	SourceServiceKey = "source_service"
)

// InterServiceTokenVerifier checks a token and returns the calling service.
type InterServiceTokenVerifier interface {
	VerifyInterServiceToken(ctx context.Context, tokenString string) (string, error)
}

// InterServiceAuth rejects requests without a valid inter-service token.
func InterServiceAuth(verifier InterServiceTokenVerifier, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		log := logger.With(zap.String("path", c.Request.URL.Path))

		tokenString := c.GetHeader(InterServiceTokenHeader)
		if tokenString == "" {
			log.Warn("Inter-service token header missing")
			abortUnauthorized(c, "Missing inter-service token")
			return
		}

		source, err := verifier.VerifyInterServiceToken(c.Request.Context(), tokenString)
		if err != nil {
			switch {
			case errors.Is(err, models.ErrTokenExpired):
				abortUnauthorized(c, "Inter-service token expired")
			case errors.Is(err, models.ErrTokenMalformed), errors.Is(err, models.ErrTokenInvalid):
				abortUnauthorized(c, "Invalid inter-service token")
			default:
				log.Error("Unexpected inter-service token verification error", zap.Error(err))
				c.AbortWithStatusJSON(http.StatusInternalServerError, models.ErrorResponse{
					Code:    models.ErrCodeInternal,
					Message: "Internal server error",
				})
			}
			return
		}

		c.Set(SourceServiceKey, source)
		log.Debug("Inter-service request authorized", zap.String("source_service", source))
		c.Next()
	}
}

func abortUnauthorized(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, models.ErrorResponse{
		Code:    models.ErrCodeUnauthorized,
		Message: msg,
	})
}

package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/autodca/autodca-backend/internal/domain"
)

const callerKey = "caller"

// AuthMiddleware validates the bearer credential from the Authorization
// header and stores the verified caller address in the request context.
// Requests with a missing or invalid credential get 401.
func AuthMiddleware(verifier domain.IdentityVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing authorization header"})
			return
		}

		credential := strings.TrimPrefix(header, "Bearer ")

		caller, err := verifier.Verify(credential)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid credential"})
			return
		}

		c.Set(callerKey, caller)
		c.Next()
	}
}

// CallerAddress returns the verified caller address set by AuthMiddleware
func CallerAddress(c *gin.Context) string {
	return c.GetString(callerKey)
}

// StaticTokenVerifier maps fixed API tokens to caller addresses. Suitable
// for development and tests; production deployments plug in a real verifier.
type StaticTokenVerifier struct {
	tokens map[string]string
}

// NewStaticTokenVerifier creates a verifier from a token -> address map
func NewStaticTokenVerifier(tokens map[string]string) *StaticTokenVerifier {
	return &StaticTokenVerifier{tokens: tokens}
}

// Verify resolves the credential to its caller address
func (v *StaticTokenVerifier) Verify(credential string) (string, error) {
	address, ok := v.tokens[credential]
	if !ok {
		return "", errors.New("unknown credential")
	}
	return address, nil
}

var _ domain.IdentityVerifier = (*StaticTokenVerifier)(nil)

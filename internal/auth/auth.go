package auth

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v4"
	"golang.org/x/crypto/bcrypt"
)

// Context keys set by RequireAuth
const (
	KeyPlayerID    = "player_id"
	KeyDisplayName = "display_name"
)

var ErrInvalidToken = errors.New("invalid token")

// Claims identify a player in an access token.
type Claims struct {
	PlayerID    int    `json:"player_id"`
	DisplayName string `json:"display_name"`
	jwt.RegisteredClaims
}

// IssueToken signs an HS256 access token valid for ttl.
func IssueToken(secret string, playerID int, displayName string, ttl time.Duration) (string, time.Time, error) {
	exp := time.Now().Add(ttl)
	claims := Claims{
		PlayerID:    playerID,
		DisplayName: displayName,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(exp),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, exp, nil
}

// ParseToken validates an access token and returns its claims.
func ParseToken(secret, token string) (*Claims, error) {
	var claims Claims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (interface{}, error) {
		if t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, fmt.Errorf("unexpected signing method")
		}
		return []byte(secret), nil
	})
	if err != nil || !parsed.Valid || claims.PlayerID <= 0 {
		return nil, ErrInvalidToken
	}
	return &claims, nil
}

// HashPIN hashes a player PIN with bcrypt.
func HashPIN(pin string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(pin), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// CheckPIN reports whether pin matches hash.
func CheckPIN(hash, pin string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(pin)) == nil
}

// ValidPIN accepts 4 to 6 digits.
func ValidPIN(pin string) bool {
	if len(pin) < 4 || len(pin) > 6 {
		return false
	}
	for _, r := range pin {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// TokenFromRequest reads a bearer token from the Authorization header, or
// from the access_token query parameter for WebSocket upgrades.
func TokenFromRequest(c *gin.Context) string {
	if h := c.GetHeader("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimPrefix(h, "Bearer ")
	}
	return c.Query("access_token")
}

// RequireAuth validates the bearer JWT and sets player_id and display_name in
// the context.
func RequireAuth(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := TokenFromRequest(c)
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
			return
		}
		claims, err := ParseToken(secret, token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		c.Set(KeyPlayerID, claims.PlayerID)
		c.Set(KeyDisplayName, claims.DisplayName)
		c.Next()
	}
}

// PlayerID returns the authenticated player id, or 0.
func PlayerID(c *gin.Context) int {
	return c.GetInt(KeyPlayerID)
}

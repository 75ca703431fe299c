package security

import (
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/joho/godotenv"

	"github.com/CoderMariusz/MonoPilot-sub046/pkg/roles"
)

var (
	jwtSecret     []byte
	jwtSecretErr  error
	jwtSecretOnce sync.Once
)

// secretKey resolves JWT_SECRET on first use so importing this package does
// not require a configured environment.
func secretKey() ([]byte, error) {
	jwtSecretOnce.Do(func() {
		secret := os.Getenv("JWT_SECRET")
		if secret == "" {
			if err := godotenv.Load(); err != nil {
				log.Printf("could not load .env: %v", err)
			}
			secret = os.Getenv("JWT_SECRET")
		}
		if secret == "" {
			jwtSecretErr = errors.New("JWT_SECRET environment variable is not set")
			return
		}
		jwtSecret = []byte(secret)
	})
	return jwtSecret, jwtSecretErr
}

// GenerateJWT issues a token carrying the actor's identity, role and org.
func GenerateJWT(userID int, orgID int, role string) (string, error) {
	key, err := secretKey()
	if err != nil {
		return "", err
	}

	claims := jwt.MapClaims{
		"userID": userID,
		"orgID":  orgID,
		"role":   role,
		"exp":    time.Now().Add(12 * time.Hour).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(key)
}

// JWTMiddleware validates the bearer token and stores userID, orgID and role
// on the request context. Every downstream query is scoped by that orgID.
func JWTMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Authorization header missing"})
			c.Abort()
			return
		}

		tokenString := strings.TrimPrefix(authHeader, "Bearer ")

		token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method")
			}
			return secretKey()
		})
		if err != nil || !token.Valid {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid token"})
			c.Abort()
			return
		}

		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid token claims"})
			c.Abort()
			return
		}

		userID, ok := numericClaim(claims, "userID")
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid userID claim"})
			c.Abort()
			return
		}
		orgID, ok := numericClaim(claims, "orgID")
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid orgID claim"})
			c.Abort()
			return
		}
		role, _ := claims["role"].(string)

		c.Set("userID", userID)
		c.Set("orgID", orgID)
		c.Set("role", role)
		c.Next()
	}
}

// Authorize rejects requests whose role sits below the required one.
func Authorize(required roles.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		role, exists := c.Get("role")
		if !exists {
			c.JSON(http.StatusForbidden, gin.H{"error": "Forbidden: insufficient permissions"})
			c.Abort()
			return
		}
		userRole, ok := role.(string)
		if !ok || !roles.Role(userRole).HasPermission(required) {
			c.JSON(http.StatusForbidden, gin.H{"error": "Forbidden: insufficient permissions"})
			c.Abort()
			return
		}
		c.Next()
	}
}

// OrgFromContext returns the authenticated organization id.
func OrgFromContext(c *gin.Context) (int, error) {
	orgID, exists := c.Get("orgID")
	if !exists {
		return 0, fmt.Errorf("orgID missing from context")
	}
	id, ok := orgID.(int)
	if !ok {
		return 0, fmt.Errorf("orgID is not an int")
	}
	return id, nil
}

// ActorFromContext returns the authenticated actor.
func ActorFromContext(c *gin.Context) (roles.Actor, error) {
	userID, exists := c.Get("userID")
	if !exists {
		return roles.Actor{}, fmt.Errorf("userID missing from context")
	}
	id, ok := userID.(int)
	if !ok {
		return roles.Actor{}, fmt.Errorf("userID is not an int")
	}
	role, _ := c.Get("role")
	roleStr, _ := role.(string)
	return roles.Actor{ID: id, Role: roles.Role(roleStr)}, nil
}

func numericClaim(claims jwt.MapClaims, key string) (int, bool) {
	switch v := claims[key].(type) {
	case float64:
		return int(v), true
	case int:
		return v, true
	default:
		return 0, false
	}
}

package http_api

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"github.com/promohive/rewards/internal/models"
)

const claimsKey = "claims"

// Claims is the bearer token payload. Tokens are issued by the auth service.
type Claims struct {
	UserID int64       `json:"user_id"`
	Role   models.Role `json:"role"`
	jwt.RegisteredClaims
}

// Capability is a permission checked by requireCapability.
type Capability string

const (
	CapManageUsers       Capability = "users:manage"
	CapManageTasks       Capability = "tasks:manage"
	CapManageWithdrawals Capability = "withdrawals:manage"
	CapManageLevels      Capability = "levels:manage"
	CapManageBalances    Capability = "balances:manage"
	CapManageSettings    Capability = "settings:manage"
	CapRunJobs           Capability = "jobs:run"
)

// roleCapabilities is the single authorization policy for admin routes.
var roleCapabilities = map[models.Role]map[Capability]bool{
	models.RoleAdmin: {
		CapManageUsers:       true,
		CapManageTasks:       true,
		CapManageWithdrawals: true,
		CapManageLevels:      true,
		CapManageBalances:    true,
		CapManageSettings:    true,
		CapRunJobs:           true,
	},
	models.RoleUser: {},
}

func hasCapability(role models.Role, capability Capability) bool {
	return roleCapabilities[role][capability]
}

func (s *HTTPServer) parseToken(raw string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(raw, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		return s.jwtSecret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.UserID <= 0 {
		return nil, errors.New("invalid token")
	}
	return claims, nil
}

// authenticate requires a valid bearer token and stores its claims.
func (s *HTTPServer) authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "error": "authorization header required"})
			return
		}
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "error": "invalid authorization header format"})
			return
		}
		claims, err := s.parseToken(parts[1])
		if err != nil {
			s.logger.Debug("Rejected bearer token", "error", err)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "error": "invalid or expired token"})
			return
		}
		c.Set(claimsKey, claims)
		c.Next()
	}
}

// requireCapability guards a route group; it must run after authenticate.
func requireCapability(capability Capability) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims := currentClaims(c)
		if claims == nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "error": "unauthorized"})
			return
		}
		if !hasCapability(claims.Role, capability) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"success": false, "error": models.ErrForbidden.Error()})
			return
		}
		c.Next()
	}
}

func currentClaims(c *gin.Context) *Claims {
	value, ok := c.Get(claimsKey)
	if !ok {
		return nil
	}
	claims, _ := value.(*Claims)
	return claims
}

// webhookKeyValid compares the presented key with the network's shared key.
// A network without a configured key accepts nothing.
func (s *HTTPServer) webhookKeyValid(network, presented string) bool {
	expected := s.webhookKeys[network]
	if expected == "" || presented == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(expected), []byte(presented)) == 1
}

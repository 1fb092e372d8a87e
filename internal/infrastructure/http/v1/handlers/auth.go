package handlers

import (
	"crypto/subtle"

	"github.com/gin-gonic/gin"

	"fabrica/internal/core/apperror"
	"fabrica/internal/core/auth"
	"fabrica/internal/infrastructure/http/v1/dto"
)

// Credentials is a configured API user.
type Credentials struct {
	Username string
	Password string
	Roles    []string
}

// AuthHandler issues access tokens against configured credentials.
type AuthHandler struct {
	*BaseHandler
	jwt   *auth.JWTService
	users []Credentials
}

// NewAuthHandler creates a new auth handler.
func NewAuthHandler(base *BaseHandler, jwt *auth.JWTService, users []Credentials) *AuthHandler {
	return &AuthHandler{BaseHandler: base, jwt: jwt, users: users}
}

// RegisterRoutes registers auth routes.
func (h *AuthHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/auth/token", h.Token)
}

// Token handles POST /auth/token.
func (h *AuthHandler) Token(c *gin.Context) {
	var req dto.TokenRequest
	if !h.BindJSON(c, &req) {
		return
	}

	user, ok := h.match(req.Username, req.Password)
	if !ok {
		h.Error(c, apperror.NewUnauthorized("invalid credentials"))
		return
	}

	token, expiresAt, err := h.jwt.GenerateAccessToken(user.Username, user.Username, user.Roles)
	if err != nil {
		h.Error(c, apperror.NewInternal(err))
		return
	}

	h.OK(c, dto.TokenResponse{
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresAt:   expiresAt,
	})
}

func (h *AuthHandler) match(username, password string) (Credentials, bool) {
	for _, u := range h.users {
		userOK := subtle.ConstantTimeCompare([]byte(u.Username), []byte(username)) == 1
		passOK := subtle.ConstantTimeCompare([]byte(u.Password), []byte(password)) == 1
		if userOK && passOK {
			return u, true
		}
	}
	return Credentials{}, false
}

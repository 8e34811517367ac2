package handlers

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v4"
	"golang.org/x/crypto/bcrypt"

	"github.com/thereayou/guildchat/internal/database"
	"github.com/thereayou/guildchat/internal/handlers/dto"
	"github.com/thereayou/guildchat/internal/middleware"
	"github.com/thereayou/guildchat/internal/models"
	"github.com/thereayou/guildchat/pkg/auth"
)

// UserStore пользователи (*database.Database)
type UserStore interface {
	SaveUser(ctx context.Context, user *models.User) error
	GetUser(ctx context.Context, id string) (*models.User, error)
	FindUserByEmail(ctx context.Context, email string) (*models.User, error)
	UpdateLastSeen(ctx context.Context, id string) error
}

type AuthHandler struct {
	users      UserStore
	jwtManager *auth.JWTManager
	blacklist  auth.Blacklist
}

func NewAuthHandler(users UserStore, jwtMgr *auth.JWTManager, blacklist auth.Blacklist) *AuthHandler {
	return &AuthHandler{users: users, jwtManager: jwtMgr, blacklist: blacklist}
}

func (h *AuthHandler) Register(c *gin.Context) {
	var req dto.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "cannot hash password"})
		return
	}

	now := time.Now()
	user := &models.User{
		Username:     strings.TrimSpace(req.Username),
		Email:        strings.ToLower(req.Email),
		PasswordHash: string(hash),
		LastSeenAt:   now,
		CreatedAt:    now,
	}

	if err := h.users.SaveUser(c.Request.Context(), user); err != nil {
		if errors.Is(err, database.ErrDuplicate) {
			c.JSON(http.StatusConflict, gin.H{"error": "username or email already taken"})
			return
		}
		log.Printf("Failed to create user: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create user"})
		return
	}

	h.issueToken(c, http.StatusCreated, user)
}

// Login выдаёт JWT и обновляет last_seen
func (h *AuthHandler) Login(c *gin.Context) {
	var req dto.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user, err := h.users.FindUserByEmail(c.Request.Context(), strings.ToLower(req.Email))
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		return
	}

	if err := h.users.UpdateLastSeen(c.Request.Context(), user.ID.String()); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
			return
		}

		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not update last seen"})
		return
	}

	h.issueToken(c, http.StatusOK, user)
}

// Logout отзывает текущий токен до истечения его срока
func (h *AuthHandler) Logout(c *gin.Context) {
	claims, ok := c.MustGet(middleware.ClaimsKey).(*jwt.RegisteredClaims)
	if !ok || claims.ExpiresAt == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}

	if err := h.blacklist.Revoke(c.Request.Context(), claims.ID, claims.ExpiresAt.Time); err != nil {
		log.Printf("Failed to revoke token: %v", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "could not revoke token"})
		return
	}

	c.Status(http.StatusNoContent)
}

func (h *AuthHandler) issueToken(c *gin.Context, status int, user *models.User) {
	token, expires, err := h.jwtManager.Generate(user.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not generate token"})
		return
	}

	c.JSON(status, dto.AuthResponse{
		Uid:            user.ID.String(),
		Token:          token,
		TokenExpiresAt: expires.UTC().Format(time.RFC3339),
	})
}

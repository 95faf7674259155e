package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/emilythestrangee/lokniti/backend/internal/auth"
	"github.com/emilythestrangee/lokniti/backend/internal/database"
	"github.com/emilythestrangee/lokniti/backend/internal/logging"
	"github.com/emilythestrangee/lokniti/backend/internal/models"
)

type AuthHandler struct {
	base
	issuer     *auth.Issuer
	bcryptCost int
}

func NewAuthHandler(b base, issuer *auth.Issuer, bcryptCost int) *AuthHandler {
	return &AuthHandler{base: b, issuer: issuer, bcryptCost: bcryptCost}
}

// Register handles user registration. New accounts always start with the
// user role.
func (h *AuthHandler) Register(c *gin.Context) {
	var input models.RegisterRequest
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	ctx := c.Request.Context()
	email := strings.ToLower(strings.TrimSpace(input.Email))

	var existing int64
	if err := h.db.WithContext(ctx).Model(&models.User{}).Where("email = ?", email).Count(&existing).Error; err != nil {
		h.internalError(c, err, "Failed to create user")
		return
	}
	if existing > 0 {
		c.JSON(http.StatusConflict, gin.H{"error": "Email already registered"})
		return
	}

	hashedPassword, err := auth.HashPassword(input.Password, h.bcryptCost)
	if err != nil {
		h.internalError(c, err, "Failed to hash password")
		return
	}

	user := models.User{
		Name:     strings.TrimSpace(input.Name),
		Email:    email,
		Password: hashedPassword,
		Role:     models.RoleUser,
		Locality: strings.TrimSpace(input.Locality),
		Phone:    input.Phone,
	}
	if err := h.db.WithContext(ctx).Create(&user).Error; err != nil {
		if database.IsUniqueViolation(err) {
			c.JSON(http.StatusConflict, gin.H{"error": "Email already registered"})
			return
		}
		h.internalError(c, err, "Failed to create user")
		return
	}

	token, err := h.issuer.Issue(&user)
	if err != nil {
		h.internalError(c, err, "Failed to generate token")
		return
	}

	logging.Ctx(ctx).Info().Int("user_id", user.ID).Str("locality", user.Locality).Msg("user registered")
	c.JSON(http.StatusCreated, models.AuthResponse{
		Message: "User registered successfully",
		Token:   token,
		User:    user,
	})
}

// Login handles user login
func (h *AuthHandler) Login(c *gin.Context) {
	var input models.LoginRequest
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var user models.User
	err := h.db.WithContext(c.Request.Context()).
		Where("email = ?", strings.ToLower(strings.TrimSpace(input.Email))).
		First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
			return
		}
		h.internalError(c, err, "Failed to log in")
		return
	}

	if !auth.CheckPassword(user.Password, input.Password) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
		return
	}

	token, err := h.issuer.Issue(&user)
	if err != nil {
		h.internalError(c, err, "Failed to generate token")
		return
	}

	c.JSON(http.StatusOK, models.AuthResponse{
		Message: "Login successful",
		Token:   token,
		User:    user,
	})
}

// GetMe returns the authenticated user with their activity counters
func (h *AuthHandler) GetMe(c *gin.Context) {
	user, ok := h.currentUser(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, user)
}

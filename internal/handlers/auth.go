package handlers

import (
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"attendance-backend/internal/config"
	"attendance-backend/internal/middleware"
	"attendance-backend/internal/models"
	"attendance-backend/internal/utils"
)

type AuthHandler struct {
	DB  *gorm.DB
	Cfg config.Config
}

type loginRequest struct {
	NISN     string `json:"nisn" binding:"required"`
	Password string `json:"password" binding:"required"`

	// Optional device metadata; when present, students are locked to the
	// first device they log in from.
	DeviceID   string `json:"deviceId"`
	DeviceName string `json:"deviceName"`
	Platform   string `json:"platform"`
	Browser    string `json:"browser"`
}

type updateProfileRequest struct {
	Name  string `json:"name" binding:"required,min=2"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"currentPassword" binding:"required"`
	NewPassword     string `json:"newPassword" binding:"required,min=6"`
}

func NewAuthHandler(db *gorm.DB, cfg config.Config) *AuthHandler {
	return &AuthHandler{DB: db, Cfg: cfg}
}

func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid input"})
		return
	}

	var user models.User
	if err := h.DB.Where("nisn = ?", strings.TrimSpace(req.NISN)).First(&user).Error; err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "wrong nisn or password"})
		return
	}

	if !user.Active {
		c.JSON(http.StatusForbidden, gin.H{"error": "account is deactivated"})
		return
	}

	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)) != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "wrong nisn or password"})
		return
	}

	// Device lock: a student stays bound to the first device that logs in
	// until an admin resets the binding.
	if user.Role == models.RoleStudent && req.DeviceID != "" {
		if user.DeviceID == "" {
			if err := h.DB.Model(&user).Update("device_id", req.DeviceID).Error; err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": "login failed"})
				return
			}
			log.Printf("locked user %s to device %s", user.ID, req.DeviceID)
		} else if user.DeviceID != req.DeviceID {
			log.Printf("device mismatch for user %s: expected %s, got %s", user.ID, user.DeviceID, req.DeviceID)
			c.JSON(http.StatusForbidden, gin.H{"error": "account is locked to another device, ask an admin to reset it"})
			return
		}
	}

	if req.DeviceID != "" {
		h.recordDeviceSession(c, &user, &req)
	}

	now := time.Now()
	_ = h.DB.Model(&user).Update("last_login", now).Error

	token, err := utils.GenerateAccessToken(
		user.ID.String(), user.NISN, user.Name, user.Role, user.Class,
		h.Cfg.JwtSecret, h.Cfg.JwtAccessHours,
	)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "login failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"token": token,
		"user":  user,
	})
}

func (h *AuthHandler) recordDeviceSession(c *gin.Context, user *models.User, req *loginRequest) {
	now := time.Now()

	// Every earlier active session for this user ends when a new one starts.
	_ = h.DB.Model(&models.DeviceSession{}).
		Where("user_id = ? AND active = ? AND device_id <> ?", user.ID, true, req.DeviceID).
		Updates(map[string]any{
			"active":        false,
			"logout_time":   now,
			"logout_reason": "new login from different device",
		}).Error

	var session models.DeviceSession
	err := h.DB.Where("user_id = ? AND device_id = ?", user.ID, req.DeviceID).First(&session).Error
	if err == nil {
		_ = h.DB.Model(&session).Updates(map[string]any{
			"active":        true,
			"login_time":    now,
			"last_activity": now,
			"logout_time":   nil,
			"logout_reason": "",
			"user_agent":    c.Request.UserAgent(),
			"ip_address":    c.ClientIP(),
		}).Error
		return
	}

	session = models.DeviceSession{
		UserID:       user.ID,
		DeviceID:     req.DeviceID,
		DeviceName:   defaultString(req.DeviceName, "Unknown Device"),
		Platform:     defaultString(req.Platform, "Unknown"),
		Browser:      defaultString(req.Browser, "Unknown"),
		UserAgent:    c.Request.UserAgent(),
		IPAddress:    c.ClientIP(),
		Active:       true,
		LoginTime:    now,
		LastActivity: now,
	}
	if err := h.DB.Create(&session).Error; err != nil {
		log.Printf("device session insert failed for user %s: %v", user.ID, err)
	}
}

func (h *AuthHandler) Logout(c *gin.Context) {
	userID, ok := currentUserID(c)
	if ok {
		now := time.Now()
		_ = h.DB.Model(&models.DeviceSession{}).
			Where("user_id = ? AND active = ?", userID, true).
			Updates(map[string]any{
				"active":        false,
				"logout_time":   now,
				"logout_reason": "logout",
			}).Error
	}
	c.JSON(http.StatusOK, gin.H{"message": "logged out"})
}

func (h *AuthHandler) Me(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var user models.User
	if err := h.DB.First(&user, "id = ?", userID).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
		return
	}
	c.JSON(http.StatusOK, user)
}

func (h *AuthHandler) UpdateProfile(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var req updateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid input"})
		return
	}

	updates := map[string]any{
		"name":  strings.TrimSpace(req.Name),
		"email": strings.TrimSpace(req.Email),
		"phone": strings.TrimSpace(req.Phone),
	}
	if err := h.DB.Model(&models.User{}).Where("id = ?", userID).Updates(updates).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "update failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "profile updated"})
}

func (h *AuthHandler) ChangePassword(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var req changePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid input"})
		return
	}

	var user models.User
	if err := h.DB.First(&user, "id = ?", userID).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
		return
	}

	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.CurrentPassword)) != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "current password is wrong"})
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "change failed"})
		return
	}
	if err := h.DB.Model(&user).Update("password_hash", string(hash)).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "change failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "password changed"})
}

func currentUserID(c *gin.Context) (uuid.UUID, bool) {
	raw, ok := c.Get(middleware.ContextUserID)
	if !ok {
		return uuid.Nil, false
	}
	id, err := uuid.Parse(raw.(string))
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}

func defaultString(v, fallback string) string {
	if strings.TrimSpace(v) == "" {
		return fallback
	}
	return v
}

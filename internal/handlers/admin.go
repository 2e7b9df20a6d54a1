package handlers

import (
	"net/http"
	"os"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"attendance-backend/internal/attendance"
	"attendance-backend/internal/clock"
	"attendance-backend/internal/models"
)

type AdminHandler struct {
	DB         *gorm.DB
	Clock      clock.Clock
	Reconciler *attendance.Reconciler
	Notifier   attendance.Notifier
}

type createUserRequest struct {
	NISN     string `json:"nisn" binding:"required"`
	Name     string `json:"name" binding:"required"`
	Password string `json:"password" binding:"required,min=6"`
	Role     string `json:"role"`
	Class    string `json:"class"`
	Email    string `json:"email"`
	Phone    string `json:"phone"`
}

type updateUserRequest struct {
	NISN   string `json:"nisn" binding:"required"`
	Name   string `json:"name" binding:"required"`
	Role   string `json:"role" binding:"required,oneof=student teacher admin"`
	Class  string `json:"class"`
	Email  string `json:"email"`
	Phone  string `json:"phone"`
	Active *bool  `json:"active" binding:"required"`
}

type resetPasswordRequest struct {
	Password string `json:"password" binding:"required,min=6"`
}

func NewAdminHandler(db *gorm.DB, clk clock.Clock, rec *attendance.Reconciler, notifier attendance.Notifier) *AdminHandler {
	return &AdminHandler{DB: db, Clock: clk, Reconciler: rec, Notifier: notifier}
}

func (h *AdminHandler) ListUsers(c *gin.Context) {
	query := h.DB.Model(&models.User{})

	if class := c.Query("class"); class != "" {
		query = query.Where("class = ?", class)
	}
	if role := c.Query("role"); role != "" {
		query = query.Where("role = ?", role)
	}
	if search := c.Query("search"); search != "" {
		like := "%" + strings.ToLower(search) + "%"
		query = query.Where("LOWER(nisn) LIKE ? OR LOWER(name) LIKE ?", like, like)
	}

	var users []models.User
	if err := query.Order("role, class, name").Find(&users).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not load users"})
		return
	}
	c.JSON(http.StatusOK, users)
}

func (h *AdminHandler) GetUser(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	var user models.User
	if err := h.DB.First(&user, "id = ?", id).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
		return
	}
	c.JSON(http.StatusOK, user)
}

func (h *AdminHandler) CreateUser(c *gin.Context) {
	var req createUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid input"})
		return
	}

	role := strings.ToLower(strings.TrimSpace(req.Role))
	if role == "" {
		role = models.RoleStudent
	}
	if role != models.RoleStudent && role != models.RoleTeacher && role != models.RoleAdmin {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid role"})
		return
	}

	var existing models.User
	if err := h.DB.Where("nisn = ?", strings.TrimSpace(req.NISN)).First(&existing).Error; err == nil {
		c.JSON(http.StatusConflict, gin.H{"error": "nisn already exists"})
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "create failed"})
		return
	}

	user := models.User{
		NISN:         strings.TrimSpace(req.NISN),
		Name:         strings.TrimSpace(req.Name),
		PasswordHash: string(hash),
		Role:         role,
		Class:        strings.TrimSpace(req.Class),
		Email:        strings.TrimSpace(req.Email),
		Phone:        strings.TrimSpace(req.Phone),
		Active:       true,
	}
	if err := h.DB.Create(&user).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "create failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "user created", "user": user})
}

func (h *AdminHandler) UpdateUser(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}

	var req updateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid input"})
		return
	}

	updates := map[string]any{
		"nisn":   strings.TrimSpace(req.NISN),
		"name":   strings.TrimSpace(req.Name),
		"role":   req.Role,
		"class":  strings.TrimSpace(req.Class),
		"email":  strings.TrimSpace(req.Email),
		"phone":  strings.TrimSpace(req.Phone),
		"active": *req.Active,
	}
	result := h.DB.Model(&models.User{}).Where("id = ?", id).Updates(updates)
	if result.Error != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "update failed"})
		return
	}
	if result.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "user updated"})
}

func (h *AdminHandler) DeleteUser(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	result := h.DB.Where("id = ?", id).Delete(&models.User{})
	if result.Error != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "delete failed"})
		return
	}
	if result.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "user deleted"})
}

func (h *AdminHandler) ResetPassword(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}

	var req resetPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid input"})
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "reset failed"})
		return
	}
	if err := h.DB.Model(&models.User{}).Where("id = ?", id).Update("password_hash", string(hash)).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "reset failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "password reset"})
}

// ResetDeviceLock unbinds a student from their locked device so they can log
// in from new hardware.
func (h *AdminHandler) ResetDeviceLock(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	if err := h.DB.Model(&models.User{}).Where("id = ?", id).Update("device_id", "").Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "reset failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "device lock reset, the user can log in from a new device"})
}

func (h *AdminHandler) ListDeviceSessions(c *gin.Context) {
	query := h.DB.Model(&models.DeviceSession{})
	if userID := c.Query("userId"); userID != "" {
		id, err := uuid.Parse(userID)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid userId"})
			return
		}
		query = query.Where("user_id = ?", id)
	}
	if active := c.Query("active"); active != "" {
		query = query.Where("active = ?", active == "true" || active == "1")
	}

	var sessions []models.DeviceSession
	if err := query.Order("last_activity DESC").Limit(200).Find(&sessions).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not load device sessions"})
		return
	}
	c.JSON(http.StatusOK, sessions)
}

func (h *AdminHandler) ListLeaveRequests(c *gin.Context) {
	type leaveRow struct {
		models.Attendance
		UserName string `json:"userName"`
		NISN     string `json:"nisn"`
		Class    string `json:"class"`
	}
	var rows []leaveRow
	err := h.DB.Model(&models.Attendance{}).
		Select("attendances.*, users.name AS user_name, users.nisn, users.class").
		Joins("JOIN users ON users.id = attendances.user_id").
		Where("attendances.status IN ?", []string{models.StatusLeave, models.StatusSick}).
		Order("attendances.date DESC, attendances.time DESC").
		Scan(&rows).Error
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not load leave requests"})
		return
	}
	c.JSON(http.StatusOK, rows)
}

func (h *AdminHandler) setLeaveApproval(c *gin.Context, approval string) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}

	result := h.DB.Model(&models.Attendance{}).
		Where("id = ? AND status IN ?", id, []string{models.StatusLeave, models.StatusSick}).
		Update("approval", approval)
	if result.Error != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "update failed"})
		return
	}
	if result.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "leave request not found"})
		return
	}

	var rec models.Attendance
	if err := h.DB.First(&rec, "id = ?", id).Error; err == nil {
		h.Notifier.Publish("leave-status-changed", map[string]any{
			"id":       rec.ID,
			"userId":   rec.UserID,
			"approval": approval,
		})
	}

	c.JSON(http.StatusOK, gin.H{"message": "leave request " + approval})
}

func (h *AdminHandler) ApproveLeave(c *gin.Context) {
	h.setLeaveApproval(c, models.ApprovalApproved)
}

func (h *AdminHandler) RejectLeave(c *gin.Context) {
	h.setLeaveApproval(c, models.ApprovalRejected)
}

// DeleteLeave removes a leave row together with its attachment file.
func (h *AdminHandler) DeleteLeave(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}

	var rec models.Attendance
	if err := h.DB.First(&rec, "id = ? AND status IN ?", id, []string{models.StatusLeave, models.StatusSick}).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "leave request not found"})
		return
	}

	if rec.Attachment != "" {
		if err := os.Remove(rec.Attachment); err != nil && !os.IsNotExist(err) {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not remove attachment"})
			return
		}
	}

	if err := h.DB.Delete(&rec).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "delete failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "leave request deleted"})
}

// Reconcile triggers the absence back-fill on demand. The run shares the
// scheduled job's serialization, so it cannot interleave with a cron tick.
func (h *AdminHandler) Reconcile(c *gin.Context) {
	count, err := h.Reconciler.Run(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message":       "reconciliation complete",
		"insertedCount": count,
	})
}

func (h *AdminHandler) Dashboard(c *gin.Context) {
	snap := h.Clock.Now()

	var totalStudents int64
	_ = h.DB.Model(&models.User{}).Where("role = ?", models.RoleStudent).Count(&totalStudents).Error

	var presentToday int64
	_ = h.DB.Model(&models.Attendance{}).
		Where("date = ? AND status IN ?", snap.Today, []string{models.StatusPresent, models.StatusLate}).
		Distinct("user_id").Count(&presentToday).Error

	var leaveToday int64
	_ = h.DB.Model(&models.Attendance{}).
		Where("date = ? AND status IN ?", snap.Today, []string{models.StatusLeave, models.StatusSick}).
		Distinct("user_id").Count(&leaveToday).Error

	// Unrecorded students only count as missing once at least one session
	// exists today; otherwise a school holiday would show the whole roster
	// as absent.
	var sessionsToday int64
	_ = h.DB.Model(&models.Session{}).Where("date = ?", snap.Today).Count(&sessionsToday).Error

	var missingToday int64
	if sessionsToday > 0 {
		_ = h.DB.Model(&models.User{}).
			Where("role = ? AND active = ?", models.RoleStudent, true).
			Where("id NOT IN (?)", h.DB.Model(&models.Attendance{}).Distinct("user_id").Where("date = ?", snap.Today)).
			Count(&missingToday).Error
	}

	type feedRow struct {
		models.Attendance
		UserName string `json:"userName"`
		Class    string `json:"class"`
	}
	var feed []feedRow
	_ = h.DB.Model(&models.Attendance{}).
		Select("attendances.*, users.name AS user_name, users.class").
		Joins("JOIN users ON users.id = attendances.user_id").
		Where("attendances.date = ?", snap.Today).
		Order("attendances.time DESC").
		Limit(10).
		Scan(&feed).Error

	c.JSON(http.StatusOK, gin.H{
		"totalStudents": totalStudents,
		"presentToday":  presentToday,
		"leaveToday":    leaveToday,
		"missingToday":  missingToday,
		"liveFeed":      feed,
	})
}

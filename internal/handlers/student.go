package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"attendance-backend/internal/attendance"
	"attendance-backend/internal/clock"
	"attendance-backend/internal/middleware"
	"attendance-backend/internal/models"
)

type StudentHandler struct {
	DB          *gorm.DB
	Evaluator   *attendance.Evaluator
	Ledger      attendance.Ledger
	StatsReader attendance.StatsReader
	Clock       clock.Clock
	Notifier    attendance.Notifier
	UploadDir   string
}

type scanRequest struct {
	Code      string   `json:"code" binding:"required"`
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
	DeviceID  string   `json:"deviceId"`
}

func NewStudentHandler(db *gorm.DB, evaluator *attendance.Evaluator, ledger attendance.Ledger, stats attendance.StatsReader, clk clock.Clock, notifier attendance.Notifier, uploadDir string) *StudentHandler {
	return &StudentHandler{
		DB:          db,
		Evaluator:   evaluator,
		Ledger:      ledger,
		StatsReader: stats,
		Clock:       clk,
		Notifier:    notifier,
		UploadDir:   uploadDir,
	}
}

// Scan validates a QR scan and records presence. Rejections come back as
// 400s with a machine-readable code; only store faults produce a 500.
func (h *StudentHandler) Scan(c *gin.Context) {
	var req scanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "qr code is required"})
		return
	}

	user, ok := h.scanUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	if req.DeviceID != "" && !h.deviceAllowed(user.ID, req.DeviceID) {
		c.JSON(http.StatusForbidden, gin.H{"error": "unrecognized device, please log in again"})
		return
	}

	var geo *attendance.Geo
	if req.Latitude != nil && req.Longitude != nil {
		geo = &attendance.Geo{Latitude: *req.Latitude, Longitude: *req.Longitude}
	}

	result, err := h.Evaluator.EvaluateScan(c.Request.Context(), strings.TrimSpace(req.Code), user, geo)
	if err != nil {
		var rej *attendance.Rejection
		if errors.As(err, &rej) {
			c.JSON(http.StatusBadRequest, gin.H{"error": rej.Message, "code": rej.Code, "meta": rej.Meta})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "scan failed"})
		return
	}

	subjectName := ""
	if result.Session.Subject != nil {
		subjectName = result.Session.Subject.Name
	}
	c.JSON(http.StatusOK, gin.H{
		"message":   fmt.Sprintf("attendance recorded for %s", subjectName),
		"sessionId": result.Session.ID,
		"status":    models.DisplayStatus(result.Record.Status),
		"time":      result.Record.Time,
	})
}

// SubmitLeave files a leave or sick report for today. It shares the
// one-record-per-day rule with scans, so a student who already scanned (or
// already filed) is refused.
func (h *StudentHandler) SubmitLeave(c *gin.Context) {
	user, ok := h.scanUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	status, statusOK := models.CanonicalStatus(c.PostForm("type"))
	note := strings.TrimSpace(c.PostForm("note"))
	if !statusOK || !models.ValidLeaveStatus(status) || note == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "leave type and note are required"})
		return
	}

	if deviceID := c.PostForm("deviceId"); deviceID != "" && !h.deviceAllowed(user.ID, deviceID) {
		c.JSON(http.StatusForbidden, gin.H{"error": "unrecognized device, please log in again"})
		return
	}

	snap := h.Clock.Now()

	// Refuse a duplicate day before touching the filesystem so a refused
	// submission does not leave an orphaned upload behind. The unique index
	// on (user_id, date) remains the authority at insert time.
	if dup, err := h.Ledger.HasRecordOn(c.Request.Context(), user.ID, snap.Today); err == nil && dup {
		c.JSON(http.StatusBadRequest, gin.H{"error": "your attendance or leave is already recorded for today"})
		return
	}

	attachment := ""
	if file, err := c.FormFile("attachment"); err == nil {
		name := fmt.Sprintf("%s_%d%s", user.ID, time.Now().UnixMilli(), filepath.Ext(file.Filename))
		dst := filepath.Join(h.UploadDir, "attachments", name)
		if err := c.SaveUploadedFile(file, dst); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "attachment upload failed"})
			return
		}
		attachment = dst
	}

	// The session link on a leave row is informational only; the first
	// session for the student's class today is attached when one exists.
	var sessionID *uuid.UUID
	var session models.Session
	if err := h.DB.Where("class = ? AND date = ?", user.Class, snap.Today).First(&session).Error; err == nil {
		sessionID = &session.ID
	}

	rec := &models.Attendance{
		UserID:     user.ID,
		SessionID:  sessionID,
		Date:       snap.Today,
		Time:       snap.TimeOfDay,
		Status:     status,
		Note:       note,
		Attachment: attachment,
		IPAddress:  c.ClientIP(),
		Approval:   models.ApprovalPending,
	}
	if err := h.Ledger.Insert(c.Request.Context(), rec); err != nil {
		if attachment != "" {
			_ = os.Remove(attachment)
		}
		if errors.Is(err, attendance.ErrDuplicateRecord) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "your attendance or leave is already recorded for today"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "leave submission failed"})
		return
	}

	h.Notifier.Publish("leave-submitted", map[string]any{
		"userId":   user.ID,
		"userName": user.Name,
		"class":    user.Class,
		"status":   status,
		"note":     note,
		"time":     snap.TimeOfDay,
	})

	c.JSON(http.StatusOK, gin.H{"message": "leave request submitted", "id": rec.ID})
}

func (h *StudentHandler) History(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}

	var rows []models.Attendance
	err := h.DB.Where("user_id = ?", userID).
		Order("date DESC, time DESC").
		Limit(limit).Offset((page - 1) * limit).
		Find(&rows).Error
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not load history"})
		return
	}
	c.JSON(http.StatusOK, rows)
}

// Stats returns the student's attended totals: overall, this month, and a
// per-subject breakdown.
func (h *StudentHandler) Stats(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	snap := h.Clock.Now()
	month := snap.Today[:7] // YYYY-MM

	stats, err := h.StatsReader.UserStats(c.Request.Context(), userID, month)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not load stats"})
		return
	}

	perSubject := stats.PerSubject
	if perSubject == nil {
		perSubject = []attendance.SubjectCount{}
	}
	resp := gin.H{
		"total":      stats.Total,
		"thisMonth":  stats.ThisMonth,
		"perSubject": perSubject,
	}
	if stats.Last != nil {
		resp["lastAttendance"] = stats.Last
	}
	c.JSON(http.StatusOK, resp)
}

// Analytics returns this month's per-status counts plus the last seven
// recorded days.
func (h *StudentHandler) Analytics(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	snap := h.Clock.Now()
	month := snap.Today[:7]

	type statusCount struct {
		Status string `json:"status"`
		Count  int64  `json:"count"`
	}
	var monthly []statusCount
	_ = h.DB.Model(&models.Attendance{}).
		Select("status, COUNT(*) as count").
		Where("user_id = ? AND date LIKE ?", userID, month+"%").
		Group("status").
		Scan(&monthly).Error

	var recent []models.Attendance
	_ = h.DB.Where("user_id = ?", userID).
		Order("date DESC").
		Limit(7).
		Find(&recent).Error

	c.JSON(http.StatusOK, gin.H{"monthly": monthly, "recent": recent})
}

func (h *StudentHandler) scanUser(c *gin.Context) (attendance.ScanUser, bool) {
	id, ok := currentUserID(c)
	if !ok {
		return attendance.ScanUser{}, false
	}
	return attendance.ScanUser{
		ID:    id,
		Name:  c.GetString(middleware.ContextName),
		Class: c.GetString(middleware.ContextClass),
	}, true
}

// deviceAllowed re-checks the device lock at scan time so a stolen token
// cannot be replayed from another device.
func (h *StudentHandler) deviceAllowed(userID uuid.UUID, deviceID string) bool {
	var user models.User
	if err := h.DB.Select("device_id").First(&user, "id = ?", userID).Error; err != nil {
		return false
	}
	return user.DeviceID == "" || user.DeviceID == deviceID
}

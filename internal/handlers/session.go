package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	qrcode "github.com/skip2/go-qrcode"
	"gorm.io/gorm"

	"attendance-backend/internal/attendance"
	"attendance-backend/internal/clock"
	"attendance-backend/internal/middleware"
	"attendance-backend/internal/models"
	"attendance-backend/internal/utils"
)

type SessionHandler struct {
	DB       *gorm.DB
	Clock    clock.Clock
	Notifier attendance.Notifier
}

type createSessionRequest struct {
	SubjectID    string   `json:"subjectId" binding:"required"`
	Class        string   `json:"class" binding:"required"`
	StartTime    string   `json:"startTime" binding:"required"`
	EndTime      string   `json:"endTime" binding:"required"`
	Date         string   `json:"date"`
	Latitude     *float64 `json:"latitude"`
	Longitude    *float64 `json:"longitude"`
	RadiusMeters *float64 `json:"radiusMeters"`
	LocationName string   `json:"locationName"`
}

type updateSessionRequest struct {
	SubjectID *string `json:"subjectId"`
	Class     *string `json:"class"`
	StartTime *string `json:"startTime"`
	EndTime   *string `json:"endTime"`
	Date      *string `json:"date"`
	Active    *bool   `json:"active"`
}

func NewSessionHandler(db *gorm.DB, clk clock.Clock, notifier attendance.Notifier) *SessionHandler {
	return &SessionHandler{DB: db, Clock: clk, Notifier: notifier}
}

// Create opens a new attendance window and mints its rotating code. When an
// overnight window (start > end) is created after midnight without an
// explicit date, the session is dated yesterday so its window is already in
// effect.
func (h *SessionHandler) Create(c *gin.Context) {
	var req createSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "subject, class, start and end time are required"})
		return
	}

	subjectID, err := uuid.Parse(req.SubjectID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid subjectId"})
		return
	}
	var subject models.Subject
	if err := h.DB.First(&subject, "id = ?", subjectID).Error; err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "subject not found"})
		return
	}

	start := normalizeTimeOfDay(req.StartTime)
	end := normalizeTimeOfDay(req.EndTime)
	if start == "" || end == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "times must be HH:MM or HH:MM:SS"})
		return
	}

	snap := h.Clock.Now()
	date := req.Date
	if date == "" {
		date = snap.Today
		if attendance.ClassifyWindow(start, end) == attendance.WindowOvernight && snap.TimeOfDay <= end {
			date = snap.Yesterday
		}
	}

	code, err := utils.GenerateSessionCode()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not create session"})
		return
	}

	userID, _ := currentUserID(c)
	session := models.Session{
		SubjectID:    subjectID,
		Class:        strings.TrimSpace(req.Class),
		Date:         date,
		StartTime:    start,
		EndTime:      end,
		Code:         code,
		Active:       true,
		Latitude:     req.Latitude,
		Longitude:    req.Longitude,
		RadiusMeters: geofenceRadius(req.Latitude, req.Longitude, req.RadiusMeters),
		LocationName: strings.TrimSpace(req.LocationName),
		CreatedBy:    userID,
	}
	if err := h.DB.Create(&session).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not create session"})
		return
	}
	session.Subject = &subject

	h.Notifier.Publish("session-created", map[string]any{
		"sessionId": session.ID,
		"subject":   subject.Name,
		"class":     session.Class,
		"date":      session.Date,
	})

	c.JSON(http.StatusOK, gin.H{
		"message": "session created",
		"session": session,
	})
}

// List returns sessions scoped to the caller: teachers see the sessions they
// created, students the sessions for their class, admins everything.
func (h *SessionHandler) List(c *gin.Context) {
	query := h.DB.Preload("Subject").Model(&models.Session{})

	switch c.GetString(middleware.ContextRole) {
	case models.RoleTeacher:
		userID, _ := currentUserID(c)
		query = query.Where("created_by = ?", userID)
	case models.RoleStudent:
		query = query.Where("class = ?", c.GetString(middleware.ContextClass))
	}

	if date := c.Query("date"); date != "" {
		query = query.Where("date = ?", date)
	}
	if class := c.Query("class"); class != "" {
		query = query.Where("class = ?", class)
	}
	if active := c.Query("active"); active != "" {
		query = query.Where("active = ?", active == "true" || active == "1")
	}

	var sessions []models.Session
	if err := query.Order("date DESC, start_time DESC").Find(&sessions).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not load sessions"})
		return
	}
	c.JSON(http.StatusOK, sessions)
}

func (h *SessionHandler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}

	var session models.Session
	if err := h.DB.Preload("Subject").First(&session, "id = ?", id).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
		return
	}

	type attendeeRow struct {
		models.Attendance
		UserName string `json:"userName"`
		NISN     string `json:"nisn"`
		Class    string `json:"class"`
	}
	var attendees []attendeeRow
	_ = h.DB.Model(&models.Attendance{}).
		Select("attendances.*, users.name AS user_name, users.nisn, users.class").
		Joins("JOIN users ON users.id = attendances.user_id").
		Where("attendances.session_id = ?", id).
		Order("attendances.time ASC").
		Scan(&attendees).Error

	c.JSON(http.StatusOK, gin.H{
		"session":    session,
		"attendance": attendees,
	})
}

func (h *SessionHandler) Update(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}

	var req updateSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid input"})
		return
	}

	updates := map[string]any{}
	if req.SubjectID != nil {
		subjectID, err := uuid.Parse(*req.SubjectID)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid subjectId"})
			return
		}
		updates["subject_id"] = subjectID
	}
	if req.Class != nil {
		updates["class"] = strings.TrimSpace(*req.Class)
	}
	if req.StartTime != nil {
		if t := normalizeTimeOfDay(*req.StartTime); t != "" {
			updates["start_time"] = t
		}
	}
	if req.EndTime != nil {
		if t := normalizeTimeOfDay(*req.EndTime); t != "" {
			updates["end_time"] = t
		}
	}
	if req.Date != nil {
		updates["date"] = *req.Date
	}
	if req.Active != nil {
		updates["active"] = *req.Active
	}
	if len(updates) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "nothing to update"})
		return
	}

	result := h.DB.Model(&models.Session{}).Where("id = ?", id).Updates(updates)
	if result.Error != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "update failed"})
		return
	}
	if result.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "session updated"})
}

// Delete removes a session and every attendance row recorded against it.
func (h *SessionHandler) Delete(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}

	err = h.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("session_id = ?", id).Delete(&models.Attendance{}).Error; err != nil {
			return err
		}
		result := tx.Where("id = ?", id).Delete(&models.Session{})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
	if err == gorm.ErrRecordNotFound {
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "delete failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "session and its attendance deleted"})
}

// QR renders the session's rotating code as a PNG for projection.
func (h *SessionHandler) QR(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}

	var session models.Session
	if err := h.DB.First(&session, "id = ?", id).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
		return
	}

	payload, _ := json.Marshal(map[string]any{
		"sessionId": session.ID,
		"code":      session.Code,
		"class":     session.Class,
		"date":      session.Date,
		"window":    fmt.Sprintf("%s-%s", session.StartTime, session.EndTime),
	})

	png, err := qrcode.Encode(string(payload), qrcode.High, 400)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "qr generation failed"})
		return
	}
	c.Data(http.StatusOK, "image/png", png)
}

// defaultRadiusMeters is the capture radius applied when a session carries
// coordinates but no explicit radius.
const defaultRadiusMeters = 100.0

// geofenceRadius fills in the default radius for sessions created with
// coordinates only, so supplying a location always yields a fenced session.
func geofenceRadius(lat, lon, radius *float64) *float64 {
	if radius == nil && lat != nil && lon != nil {
		r := defaultRadiusMeters
		return &r
	}
	return radius
}

// normalizeTimeOfDay pads HH:MM input to HH:MM:SS and rejects anything that
// is not a valid zero-padded time-of-day. The window comparisons are
// lexicographic, so a malformed value here would corrupt them.
func normalizeTimeOfDay(v string) string {
	v = strings.TrimSpace(v)
	if len(v) == 5 {
		v += ":00"
	}
	if len(v) != 8 || v[2] != ':' || v[5] != ':' {
		return ""
	}
	if _, err := time.Parse(clock.TimeLayout, v); err != nil {
		return ""
	}
	return v
}

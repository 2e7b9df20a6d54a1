package handlers

import (
	"encoding/csv"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/xuri/excelize/v2"
	"gorm.io/gorm"

	"attendance-backend/internal/models"
)

type ReportHandler struct {
	DB *gorm.DB
}

func NewReportHandler(db *gorm.DB) *ReportHandler {
	return &ReportHandler{DB: db}
}

type reportRow struct {
	UserName string `json:"userName"`
	NISN     string `json:"nisn"`
	Class    string `json:"class"`
	Subject  string `json:"subject"`
	Date     string `json:"date"`
	Time     string `json:"time"`
	Status   string `json:"status"`
	Note     string `json:"note"`
}

// Export streams the attendance report as XLSX (default) or CSV, filtered
// by class, date and subject.
func (h *ReportHandler) Export(c *gin.Context) {
	query := h.DB.Model(&models.Attendance{}).
		Select(`users.name AS user_name, users.nisn, users.class,
			COALESCE(subjects.name, '') AS subject,
			attendances.date, attendances.time, attendances.status, attendances.note`).
		Joins("JOIN users ON users.id = attendances.user_id").
		Joins("LEFT JOIN sessions ON sessions.id = attendances.session_id").
		Joins("LEFT JOIN subjects ON subjects.id = sessions.subject_id")

	if class := c.Query("class"); class != "" {
		query = query.Where("users.class = ?", class)
	}
	if date := c.Query("date"); date != "" {
		query = query.Where("attendances.date = ?", date)
	}
	if subjectID := c.Query("subjectId"); subjectID != "" {
		// Leave and sick rows have no subject but still belong in a
		// per-subject report for the day.
		query = query.Where("sessions.subject_id = ? OR attendances.status IN ?",
			subjectID, []string{models.StatusLeave, models.StatusSick})
	}

	var rows []reportRow
	if err := query.Order("attendances.date DESC, attendances.time DESC").Scan(&rows).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not load report data"})
		return
	}

	if c.Query("format") == "csv" {
		h.writeCSV(c, rows)
		return
	}
	h.writeXLSX(c, rows)
}

var reportHeader = []string{"Name", "NISN", "Class", "Subject", "Date", "Time", "Status", "Note"}

func (h *ReportHandler) writeCSV(c *gin.Context, rows []reportRow) {
	filename := fmt.Sprintf("attendance-report-%d.csv", time.Now().UnixMilli())
	c.Header("Content-Type", "text/csv")
	c.Header("Content-Disposition", "attachment; filename="+filename)

	w := csv.NewWriter(c.Writer)
	_ = w.Write(reportHeader)
	for _, row := range rows {
		_ = w.Write([]string{
			row.UserName, row.NISN, row.Class, row.Subject,
			row.Date, row.Time, models.DisplayStatus(row.Status), row.Note,
		})
	}
	w.Flush()
}

func (h *ReportHandler) writeXLSX(c *gin.Context, rows []reportRow) {
	f := excelize.NewFile()
	defer f.Close()

	const sheet = "Attendance"
	f.SetSheetName("Sheet1", sheet)

	for i, title := range reportHeader {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, title)
	}
	for i, row := range rows {
		values := []any{
			row.UserName, row.NISN, row.Class, row.Subject,
			row.Date, row.Time, models.DisplayStatus(row.Status), row.Note,
		}
		for j, v := range values {
			cell, _ := excelize.CoordinatesToCellName(j+1, i+2)
			_ = f.SetCellValue(sheet, cell, v)
		}
	}

	filename := fmt.Sprintf("attendance-report-%d.xlsx", time.Now().UnixMilli())
	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Header("Content-Disposition", "attachment; filename="+filename)
	if err := f.Write(c.Writer); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "export failed"})
	}
}

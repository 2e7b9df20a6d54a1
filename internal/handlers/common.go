package handlers

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"attendance-backend/internal/models"
)

type CommonHandler struct {
	DB *gorm.DB
}

type createSubjectRequest struct {
	Name  string `json:"name" binding:"required"`
	Code  string `json:"code" binding:"required"`
	Color string `json:"color"`
}

func NewCommonHandler(db *gorm.DB) *CommonHandler {
	return &CommonHandler{DB: db}
}

// Classes returns the fixed class catalogue: grades 10-12, ten rooms each.
func (h *CommonHandler) Classes(c *gin.Context) {
	classes := make([]string, 0, 30)
	for grade := 10; grade <= 12; grade++ {
		for room := 1; room <= 10; room++ {
			classes = append(classes, fmt.Sprintf("%d.%d", grade, room))
		}
	}
	c.JSON(http.StatusOK, classes)
}

func (h *CommonHandler) ListSubjects(c *gin.Context) {
	var subjects []models.Subject
	if err := h.DB.Order("name").Find(&subjects).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not load subjects"})
		return
	}
	c.JSON(http.StatusOK, subjects)
}

func (h *CommonHandler) CreateSubject(c *gin.Context) {
	var req createSubjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name and code are required"})
		return
	}

	subject := models.Subject{
		Name:  strings.TrimSpace(req.Name),
		Code:  strings.ToUpper(strings.TrimSpace(req.Code)),
		Color: strings.TrimSpace(req.Color),
	}
	if err := h.DB.Create(&subject).Error; err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": "subject code already exists"})
		return
	}
	c.JSON(http.StatusOK, subject)
}

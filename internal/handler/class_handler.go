package handler

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/class-schedule/internal/models"
	"github.com/noah-isme/class-schedule/internal/service"
	appErrors "github.com/noah-isme/class-schedule/pkg/errors"
	"github.com/noah-isme/class-schedule/pkg/response"
)

type classService interface {
	List(ctx context.Context, filter models.ClassFilter) ([]models.Class, error)
	Get(ctx context.Context, id int64) (*models.Class, error)
	Create(ctx context.Context, in models.ClassInput) (*models.Class, error)
	Update(ctx context.Context, id int64, in models.ClassInput) (*models.Class, error)
	Delete(ctx context.Context, id int64) error
}

type scheduleExporter interface {
	Export(ctx context.Context, format service.ExportFormat, filter models.ClassFilter) (*service.ExportResult, error)
}

// ClassHandler exposes class CRUD endpoints.
type ClassHandler struct {
	service  classService
	exporter scheduleExporter
}

// NewClassHandler constructs a class handler. exporter may be nil, in which
// case Export answers 503.
func NewClassHandler(svc classService, exporter scheduleExporter) *ClassHandler {
	return &ClassHandler{service: svc, exporter: exporter}
}

// List godoc
// @Summary List classes
// @Tags Classes
// @Produce json
// @Param day query string false "Only classes held on this day"
// @Success 200 {array} models.Class
// @Router /classes [get]
func (h *ClassHandler) List(c *gin.Context) {
	classes, err := h.service.List(c.Request.Context(), models.ClassFilter{Day: c.Query("day")})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, classes)
}

// Get godoc
// @Summary Get class detail
// @Tags Classes
// @Produce json
// @Param id path int true "Class ID"
// @Success 200 {object} models.Class
// @Failure 404 {object} response.Envelope
// @Router /classes/{id} [get]
func (h *ClassHandler) Get(c *gin.Context) {
	id, ok := classID(c)
	if !ok {
		return
	}
	class, err := h.service.Get(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, class)
}

// Create godoc
// @Summary Create class
// @Tags Classes
// @Accept json
// @Produce json
// @Param payload body models.ClassInput true "Class payload"
// @Success 201 {object} models.Class
// @Failure 400 {object} response.Envelope
// @Router /classes [post]
func (h *ClassHandler) Create(c *gin.Context) {
	var req models.ClassInput
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	class, err := h.service.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, class)
}

// Update godoc
// @Summary Update class
// @Tags Classes
// @Accept json
// @Produce json
// @Param id path int true "Class ID"
// @Param payload body models.ClassInput true "Class payload"
// @Success 200 {object} models.Class
// @Failure 404 {object} response.Envelope
// @Router /classes/{id} [put]
func (h *ClassHandler) Update(c *gin.Context) {
	id, ok := classID(c)
	if !ok {
		return
	}
	var req models.ClassInput
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	class, err := h.service.Update(c.Request.Context(), id, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, class)
}

// Delete godoc
// @Summary Delete class
// @Tags Classes
// @Produce json
// @Param id path int true "Class ID"
// @Success 200 {object} response.Ack
// @Failure 404 {object} response.Envelope
// @Router /classes/{id} [delete]
func (h *ClassHandler) Delete(c *gin.Context) {
	id, ok := classID(c)
	if !ok {
		return
	}
	if err := h.service.Delete(c.Request.Context(), id); err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, response.Ack{Message: "class deleted", ID: id})
}

// Export godoc
// @Summary Download the schedule
// @Tags Classes
// @Produce text/csv
// @Produce application/pdf
// @Param format query string false "csv (default) or pdf"
// @Param day query string false "Only classes held on this day"
// @Success 200 {file} file
// @Router /classes/export [get]
func (h *ClassHandler) Export(c *gin.Context) {
	if h.exporter == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrUnavailable, "export disabled"))
		return
	}
	format, err := service.ParseExportFormat(c.Query("format"))
	if err != nil {
		response.Error(c, err)
		return
	}
	res, err := h.exporter.Export(c.Request.Context(), format, models.ClassFilter{Day: c.Query("day")})
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", res.Filename))
	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, res.ContentType, res.Body)
}

func classID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "id must be a positive integer"))
		return 0, false
	}
	return id, true
}

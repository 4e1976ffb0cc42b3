package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mentorhub/mentorhub-api/internal/service"
	appErrors "github.com/mentorhub/mentorhub-api/pkg/errors"
	"github.com/mentorhub/mentorhub-api/pkg/response"
)

// AvailabilityHandler exposes weekly windows and blackout exceptions.
type AvailabilityHandler struct {
	availability *service.AvailabilityService
}

// NewAvailabilityHandler constructs AvailabilityHandler.
func NewAvailabilityHandler(availability *service.AvailabilityService) *AvailabilityHandler {
	return &AvailabilityHandler{availability: availability}
}

// ReplaceWindows godoc
// @Summary Replace the weekly window set for a call type
// @Tags Availability
// @Accept json
// @Produce json
// @Param id path string true "Mentor ID"
// @Param payload body service.ReplaceWindowsRequest true "Windows payload"
// @Success 200 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /mentors/{id}/availability [put]
func (h *AvailabilityHandler) ReplaceWindows(c *gin.Context) {
	var req service.ReplaceWindowsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}

	windows, err := h.availability.ReplaceWindows(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, windows, nil)
}

// ListWindows godoc
// @Summary List a mentor's weekly windows
// @Tags Availability
// @Produce json
// @Param id path string true "Mentor ID"
// @Success 200 {object} response.Envelope
// @Router /mentors/{id}/availability [get]
func (h *AvailabilityHandler) ListWindows(c *gin.Context) {
	windows, err := h.availability.ListWindows(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, windows, nil)
}

// DeleteWindow godoc
// @Summary Delete a weekly window
// @Tags Availability
// @Produce json
// @Param id path string true "Window ID"
// @Success 204
// @Failure 409 {object} response.Envelope
// @Router /availability/windows/{id} [delete]
func (h *AvailabilityHandler) DeleteWindow(c *gin.Context) {
	if err := h.availability.DeleteWindow(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// CreateException godoc
// @Summary Declare a blackout period
// @Tags Availability
// @Accept json
// @Produce json
// @Param id path string true "Mentor ID"
// @Param payload body service.CreateExceptionRequest true "Exception payload"
// @Success 201 {object} response.Envelope
// @Router /mentors/{id}/exceptions [post]
func (h *AvailabilityHandler) CreateException(c *gin.Context) {
	var req service.CreateExceptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}

	exception, err := h.availability.CreateException(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, exception)
}

// ListExceptions godoc
// @Summary List a mentor's blackout periods
// @Tags Availability
// @Produce json
// @Param id path string true "Mentor ID"
// @Success 200 {object} response.Envelope
// @Router /mentors/{id}/exceptions [get]
func (h *AvailabilityHandler) ListExceptions(c *gin.Context) {
	exceptions, err := h.availability.ListExceptions(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, exceptions, nil)
}

// DeleteException godoc
// @Summary Delete a blackout period
// @Tags Availability
// @Produce json
// @Param id path string true "Exception ID"
// @Success 204
// @Router /exceptions/{id} [delete]
func (h *AvailabilityHandler) DeleteException(c *gin.Context) {
	if err := h.availability.DeleteException(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mentorhub/mentorhub-api/internal/models"
	"github.com/mentorhub/mentorhub-api/internal/service"
	appErrors "github.com/mentorhub/mentorhub-api/pkg/errors"
	"github.com/mentorhub/mentorhub-api/pkg/response"
)

// CommitmentHandler exposes program enrollment and discipline subscription.
type CommitmentHandler struct {
	commitments *service.CommitmentService
	exports     *service.ExportService
}

// NewCommitmentHandler constructs CommitmentHandler.
func NewCommitmentHandler(commitments *service.CommitmentService, exports *service.ExportService) *CommitmentHandler {
	return &CommitmentHandler{commitments: commitments, exports: exports}
}

// EnrollProgram godoc
// @Summary Enroll a participant into a mentorship program
// @Tags Commitments
// @Accept json
// @Produce json
// @Param payload body service.EnrollProgramRequest true "Enrollment payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /commitments/program [post]
func (h *CommitmentHandler) EnrollProgram(c *gin.Context) {
	var req service.EnrollProgramRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	if claims := claimsFromContext(c); claims != nil && claims.Role == models.RoleParticipant {
		req.ParticipantID = claims.UserID
	}

	schedule, err := h.commitments.EnrollProgram(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, schedule)
}

// SubscribeDiscipline godoc
// @Summary Subscribe a participant to the discipline term
// @Tags Commitments
// @Accept json
// @Produce json
// @Param payload body service.SubscribeDisciplineRequest true "Subscription payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /commitments/discipline [post]
func (h *CommitmentHandler) SubscribeDiscipline(c *gin.Context) {
	var req service.SubscribeDisciplineRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	if claims := claimsFromContext(c); claims != nil && claims.Role == models.RoleParticipant {
		req.ParticipantID = claims.UserID
	}

	schedule, err := h.commitments.SubscribeDiscipline(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, schedule)
}

// Get godoc
// @Summary Get a commitment with its next session
// @Tags Commitments
// @Produce json
// @Param id path string true "Commitment ID"
// @Success 200 {object} response.Envelope
// @Router /commitments/{id} [get]
func (h *CommitmentHandler) Get(c *gin.Context) {
	schedule, err := h.commitments.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, schedule, nil)
}

// Withdraw godoc
// @Summary Withdraw from a commitment and cancel its remaining sessions
// @Tags Commitments
// @Produce json
// @Param id path string true "Commitment ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /commitments/{id}/withdraw [post]
func (h *CommitmentHandler) Withdraw(c *gin.Context) {
	requesterID := ""
	if claims := claimsFromContext(c); claims != nil && claims.Role == models.RoleParticipant {
		requesterID = claims.UserID
	}

	outcome, err := h.commitments.Withdraw(c.Request.Context(), c.Param("id"), requesterID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, outcome, nil)
}

// Sessions godoc
// @Summary List generated sessions for a commitment
// @Tags Commitments
// @Produce json
// @Param id path string true "Commitment ID"
// @Success 200 {object} response.Envelope
// @Router /commitments/{id}/sessions [get]
func (h *CommitmentHandler) Sessions(c *gin.Context) {
	sessions, err := h.commitments.Sessions(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, sessions, nil)
}

// ExportAttendance godoc
// @Summary Export the attendance record for a commitment
// @Tags Commitments
// @Produce text/csv
// @Produce application/pdf
// @Param id path string true "Commitment ID"
// @Param format query string false "Export format (csv or pdf)"
// @Success 200 {file} binary
// @Router /commitments/{id}/attendance/export [get]
func (h *CommitmentHandler) ExportAttendance(c *gin.Context) {
	result, err := h.exports.AttendanceReport(c.Request.Context(), c.Param("id"), c.DefaultQuery("format", "csv"))
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", "attachment; filename="+result.Filename)
	c.Data(http.StatusOK, result.ContentType, result.Content)
}

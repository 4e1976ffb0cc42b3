package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mentorhub/mentorhub-api/internal/service"
	appErrors "github.com/mentorhub/mentorhub-api/pkg/errors"
	"github.com/mentorhub/mentorhub-api/pkg/response"
)

// TaskHandler exposes task postponement.
type TaskHandler struct {
	tasks *service.TaskService
}

// NewTaskHandler constructs TaskHandler.
func NewTaskHandler(tasks *service.TaskService) *TaskHandler {
	return &TaskHandler{tasks: tasks}
}

// Postpone godoc
// @Summary Postpone a task's due date
// @Tags Tasks
// @Accept json
// @Produce json
// @Param id path string true "Task ID"
// @Param payload body service.PostponeRequest true "Postpone payload"
// @Success 200 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /tasks/{id}/postpone [post]
func (h *TaskHandler) Postpone(c *gin.Context) {
	var req service.PostponeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	req.TaskID = c.Param("id")

	task, err := h.tasks.Postpone(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, task, nil)
}

// Alerts godoc
// @Summary List escalation alerts for a task
// @Tags Tasks
// @Produce json
// @Param id path string true "Task ID"
// @Success 200 {object} response.Envelope
// @Router /tasks/{id}/alerts [get]
func (h *TaskHandler) Alerts(c *gin.Context) {
	alerts, err := h.tasks.Alerts(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, alerts, nil)
}

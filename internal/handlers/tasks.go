package handlers

import (
	"net/http"
	"strings"
	"time"

	"tasklist/backend/internal/logger"
	"tasklist/backend/internal/models"
	"tasklist/backend/internal/monitoring"
	"tasklist/backend/internal/repositories"
	"tasklist/backend/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/gofrs/uuid"
)

type TaskHandler struct {
	taskService services.TaskService
	log         *logger.Logger
}

func NewTaskHandler(taskService services.TaskService, log *logger.Logger) *TaskHandler {
	if log == nil {
		log = logger.NewNop()
	}
	RegisterValidators()
	return &TaskHandler{taskService: taskService, log: log.WithComponent("task_handler")}
}

// RegisterRoutes mounts the task endpoints on an already authenticated group.
func (h *TaskHandler) RegisterRoutes(group *gin.RouterGroup) {
	group.GET("", h.ListTasks)
	group.POST("", h.CreateTask)
	group.GET("/stats", h.TaskStats)
	group.GET("/:id", h.GetTask)
	group.PUT("/:id", h.UpdateTask)
	group.PATCH("/:id", h.UpdateTask)
	group.DELETE("/:id", h.DeleteTask)
}

type createTaskRequest struct {
	Title       string          `json:"title" binding:"notblank"`
	Description *string         `json:"description"`
	Status      models.Status   `json:"status" binding:"omitempty,taskstatus"`
	Priority    models.Priority `json:"priority" binding:"omitempty,taskpriority"`
	DueDate     *string         `json:"dueDate" binding:"omitempty,duedate"`
}

type updateTaskRequest struct {
	Title       models.Optional[string]          `json:"title" binding:"omitempty,notblank"`
	Description models.Optional[string]          `json:"description"`
	Status      models.Optional[models.Status]   `json:"status" binding:"omitempty,taskstatus"`
	Priority    models.Optional[models.Priority] `json:"priority" binding:"omitempty,taskpriority"`
	DueDate     models.Optional[string]          `json:"dueDate" binding:"omitempty,duedate"`
}

func (h *TaskHandler) ListTasks(c *gin.Context) {
	owner, ok := h.owner(c)
	if !ok {
		return
	}

	var filter repositories.Filter
	var invalid []FieldError
	if value := c.Query("status"); value != "" {
		status := models.Status(value)
		if !status.IsValid() {
			invalid = append(invalid, FieldError{Field: "status", Message: "Status must be one of pending, in-progress, completed"})
		}
		filter.Status = &status
	}
	if value := c.Query("priority"); value != "" {
		priority := models.Priority(value)
		if !priority.IsValid() {
			invalid = append(invalid, FieldError{Field: "priority", Message: "Priority must be one of low, medium, high"})
		}
		filter.Priority = &priority
	}
	if len(invalid) > 0 {
		respondValidation(c, invalid)
		return
	}
	filter.Search = c.Query("search")
	sort := repositories.ParseSort(c.Query("sortBy"), c.Query("order"))

	tasks, err := h.taskService.List(c.Request.Context(), owner, filter, sort)
	if err != nil {
		h.fail(c, "list", "access", err)
		return
	}
	monitoring.RecordTaskOperation("list", monitoring.OutcomeSuccess)

	count := len(tasks)
	c.JSON(http.StatusOK, Envelope{Success: true, Count: &count, Data: tasks})
}

func (h *TaskHandler) TaskStats(c *gin.Context) {
	owner, ok := h.owner(c)
	if !ok {
		return
	}

	stats, err := h.taskService.Stats(c.Request.Context(), owner)
	if err != nil {
		h.fail(c, "stats", "access", err)
		return
	}
	monitoring.RecordTaskOperation("stats", monitoring.OutcomeSuccess)
	respondData(c, http.StatusOK, stats)
}

func (h *TaskHandler) GetTask(c *gin.Context) {
	owner, ok := h.owner(c)
	if !ok {
		return
	}
	id, ok := taskID(c)
	if !ok {
		return
	}

	task, err := h.taskService.Get(c.Request.Context(), owner, id)
	if err != nil {
		h.fail(c, "get", "access", err)
		return
	}
	monitoring.RecordTaskOperation("get", monitoring.OutcomeSuccess)
	respondData(c, http.StatusOK, task)
}

func (h *TaskHandler) CreateTask(c *gin.Context) {
	owner, ok := h.owner(c)
	if !ok {
		return
	}

	var req createTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		monitoring.RecordTaskOperation("create", monitoring.OutcomeInvalid)
		respondBindError(c, err)
		return
	}

	input := services.CreateTaskInput{
		Title:       req.Title,
		Description: req.Description,
		Status:      req.Status,
		Priority:    req.Priority,
	}
	if req.DueDate != nil {
		due, err := parseDueDate(*req.DueDate)
		if err != nil {
			monitoring.RecordTaskOperation("create", monitoring.OutcomeInvalid)
			respondValidation(c, []FieldError{{Field: "dueDate", Message: dueDateMessage}})
			return
		}
		input.DueDate = &due
	}

	task, err := h.taskService.Create(c.Request.Context(), owner, input)
	if err != nil {
		h.fail(c, "create", "create", err)
		return
	}
	monitoring.RecordTaskOperation("create", monitoring.OutcomeSuccess)
	respondData(c, http.StatusCreated, task)
}

func (h *TaskHandler) UpdateTask(c *gin.Context) {
	owner, ok := h.owner(c)
	if !ok {
		return
	}
	id, ok := taskID(c)
	if !ok {
		return
	}

	var req updateTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		monitoring.RecordTaskOperation("update", monitoring.OutcomeInvalid)
		respondBindError(c, err)
		return
	}

	patch := services.TaskPatch{
		Title:       req.Title,
		Description: req.Description,
		Status:      req.Status,
		Priority:    req.Priority,
	}
	// An empty due date clears it, the same as null.
	if req.DueDate.Set {
		patch.DueDate = models.Null[time.Time]()
		if req.DueDate.Valid && strings.TrimSpace(req.DueDate.Value) != "" {
			due, err := parseDueDate(req.DueDate.Value)
			if err != nil {
				monitoring.RecordTaskOperation("update", monitoring.OutcomeInvalid)
				respondValidation(c, []FieldError{{Field: "dueDate", Message: dueDateMessage}})
				return
			}
			patch.DueDate = models.Some(due)
		}
	}

	task, err := h.taskService.Update(c.Request.Context(), owner, id, patch)
	if err != nil {
		h.fail(c, "update", "update", err)
		return
	}
	monitoring.RecordTaskOperation("update", monitoring.OutcomeSuccess)
	respondData(c, http.StatusOK, task)
}

func (h *TaskHandler) DeleteTask(c *gin.Context) {
	owner, ok := h.owner(c)
	if !ok {
		return
	}
	id, ok := taskID(c)
	if !ok {
		return
	}

	if err := h.taskService.Delete(c.Request.Context(), owner, id); err != nil {
		h.fail(c, "delete", "delete", err)
		return
	}
	monitoring.RecordTaskOperation("delete", monitoring.OutcomeSuccess)
	respondMessage(c, http.StatusOK, "Task removed")
}

func (h *TaskHandler) fail(c *gin.Context, operation, action string, err error) {
	monitoring.RecordTaskOperation(operation, outcomeOf(err))
	respondError(c, h.log, action, err)
}

// owner reads the authenticated user id set by the auth middleware.
func (h *TaskHandler) owner(c *gin.Context) (uuid.UUID, bool) {
	value, exists := c.Get("user_id")
	if !exists {
		respondMessage(c, http.StatusUnauthorized, msgNotAuthenticated)
		return uuid.Nil, false
	}
	str, _ := value.(string)
	owner, err := uuid.FromString(str)
	if err != nil || owner == uuid.Nil {
		h.log.Warnw("Invalid user id in request context", "user_id", value)
		respondMessage(c, http.StatusUnauthorized, msgNotAuthenticated)
		return uuid.Nil, false
	}
	return owner, true
}

// taskID parses the :id parameter. A malformed id cannot name a stored task,
// so it is answered as not found.
func taskID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.FromString(c.Param("id"))
	if err != nil {
		respondMessage(c, http.StatusNotFound, msgTaskNotFound)
		return uuid.Nil, false
	}
	return id, true
}

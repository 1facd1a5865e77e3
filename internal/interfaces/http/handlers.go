package http

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/garyjia/approval-engine/internal/application/port"
	"github.com/garyjia/approval-engine/internal/application/service"
	"github.com/garyjia/approval-engine/internal/domain/approval"
	"github.com/garyjia/approval-engine/internal/domain/entity"
)

// Handlers contains all HTTP request handlers
type Handlers struct {
	approvalService service.ApprovalService
	bulkService     service.BulkService
	queryService    service.QueryService
	logger          Logger
}

// NewHandlers creates a new Handlers instance
func NewHandlers(
	approvalService service.ApprovalService,
	bulkService service.BulkService,
	queryService service.QueryService,
	logger Logger,
) *Handlers {
	return &Handlers{
		approvalService: approvalService,
		bulkService:     bulkService,
		queryService:    queryService,
		logger:          logger,
	}
}

// Response represents a standard JSON response
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Version   string `json:"version"`
}

// DecideRequest is the body of a decide call; the document ID comes from the
// path.
type DecideRequest struct {
	Principal string `json:"principal" binding:"required"`
	Level     *int   `json:"level" binding:"required"`
	Verdict   string `json:"verdict" binding:"required"`
	Comments  string `json:"comments"`
}

// ForwardRequest is the body of a forward call.
type ForwardRequest struct {
	Principal   string `json:"principal" binding:"required"`
	TargetLevel int    `json:"target_level" binding:"required"`
}

// PrincipalRequest carries the acting principal for owner-gated operations.
type PrincipalRequest struct {
	Principal string `json:"principal" binding:"required"`
}

// ListDocumentsRequest represents query parameters for listing documents
type ListDocumentsRequest struct {
	DocumentType string `form:"type"`
	Status       string `form:"status"`
	Level        *int   `form:"level"`
	ProjectID    int64  `form:"project_id"`
	DepartmentID int64  `form:"department_id"`
	Limit        int    `form:"limit"`
	Offset       int    `form:"offset"`
}

// HealthCheck handles GET /health
func (h *Handlers) HealthCheck(c *gin.Context) {
	response := HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Version:   "1.0.0",
	}

	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    response,
	})
}

// CreateDocument handles POST /api/documents
func (h *Handlers) CreateDocument(c *gin.Context) {
	var input service.CreateDocumentInput
	if err := c.ShouldBindJSON(&input); err != nil {
		h.badRequest(c, "invalid request body", err)
		return
	}

	doc, err := h.approvalService.CreateDocument(c.Request.Context(), input)
	if err != nil {
		h.serviceError(c, "create document", err)
		return
	}

	c.JSON(http.StatusCreated, Response{Success: true, Data: doc})
}

// ListDocuments handles GET /api/documents
func (h *Handlers) ListDocuments(c *gin.Context) {
	var req ListDocumentsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		h.badRequest(c, "invalid query parameters", err)
		return
	}

	// Set defaults
	if req.Limit <= 0 || req.Limit > 100 {
		req.Limit = 20
	}
	if req.Offset < 0 {
		req.Offset = 0
	}

	docs, err := h.queryService.ListDocuments(c.Request.Context(), port.DocumentFilter{
		DocumentType:   entity.DocumentType(req.DocumentType),
		ApprovalStatus: req.Status,
		CurrentLevel:   req.Level,
		ProjectID:      req.ProjectID,
		DepartmentID:   req.DepartmentID,
		Limit:          req.Limit,
		Offset:         req.Offset,
	})
	if err != nil {
		h.serviceError(c, "list documents", err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: docs})
}

// GetDocument handles GET /api/documents/:id
func (h *Handlers) GetDocument(c *gin.Context) {
	id, ok := h.documentID(c)
	if !ok {
		return
	}

	doc, err := h.queryService.GetDocument(c.Request.Context(), id)
	if err != nil {
		h.serviceError(c, "get document", err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: doc})
}

// GetHistory handles GET /api/documents/:id/history
func (h *Handlers) GetHistory(c *gin.Context) {
	id, ok := h.documentID(c)
	if !ok {
		return
	}

	events, err := h.queryService.History(c.Request.Context(), id)
	if err != nil {
		h.serviceError(c, "get history", err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: events})
}

// SubmitDocument handles POST /api/documents/:id/submit
func (h *Handlers) SubmitDocument(c *gin.Context) {
	id, ok := h.documentID(c)
	if !ok {
		return
	}

	doc, err := h.approvalService.SubmitDocument(c.Request.Context(), id)
	if err != nil {
		h.serviceError(c, "submit document", err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: doc})
}

// StartApproval handles POST /api/documents/:id/start
func (h *Handlers) StartApproval(c *gin.Context) {
	id, ok := h.documentID(c)
	if !ok {
		return
	}

	doc, err := h.approvalService.StartApproval(c.Request.Context(), id)
	if err != nil {
		h.serviceError(c, "start approval", err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: doc})
}

// Decide handles POST /api/documents/:id/decide
func (h *Handlers) Decide(c *gin.Context) {
	id, ok := h.documentID(c)
	if !ok {
		return
	}

	var req DecideRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, "invalid request body", err)
		return
	}

	doc, err := h.approvalService.Decide(c.Request.Context(), service.DecideInput{
		DocumentID: id,
		Principal:  req.Principal,
		Level:      *req.Level,
		Verdict:    req.Verdict,
		Comments:   req.Comments,
	})
	if err != nil {
		h.serviceError(c, "decide", err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: doc})
}

// Forward handles POST /api/documents/:id/forward
func (h *Handlers) Forward(c *gin.Context) {
	id, ok := h.documentID(c)
	if !ok {
		return
	}

	var req ForwardRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, "invalid request body", err)
		return
	}

	doc, err := h.approvalService.Forward(c.Request.Context(), id, req.Principal, req.TargetLevel)
	if err != nil {
		h.serviceError(c, "forward", err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: doc})
}

// Resubmit handles POST /api/documents/:id/resubmit
func (h *Handlers) Resubmit(c *gin.Context) {
	id, ok := h.documentID(c)
	if !ok {
		return
	}

	var req PrincipalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, "invalid request body", err)
		return
	}

	doc, err := h.approvalService.Resubmit(c.Request.Context(), id, req.Principal)
	if err != nil {
		h.serviceError(c, "resubmit", err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: doc})
}

// Cancel handles POST /api/documents/:id/cancel
func (h *Handlers) Cancel(c *gin.Context) {
	id, ok := h.documentID(c)
	if !ok {
		return
	}

	var req PrincipalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, "invalid request body", err)
		return
	}

	doc, err := h.approvalService.Cancel(c.Request.Context(), id, req.Principal)
	if err != nil {
		h.serviceError(c, "cancel", err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: doc})
}

// Remind handles POST /api/documents/:id/remind
func (h *Handlers) Remind(c *gin.Context) {
	id, ok := h.documentID(c)
	if !ok {
		return
	}

	if err := h.approvalService.Remind(c.Request.Context(), id); err != nil {
		h.serviceError(c, "remind", err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true})
}

// BulkApprove handles POST /api/documents/bulk-approve
func (h *Handlers) BulkApprove(c *gin.Context) {
	var input service.BulkApproveInput
	if err := c.ShouldBindJSON(&input); err != nil {
		h.badRequest(c, "invalid request body", err)
		return
	}

	result, err := h.bulkService.BulkApprove(c.Request.Context(), input)
	if err != nil {
		h.serviceError(c, "bulk approve", err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: result})
}

// ListPending handles GET /api/approvers/:principal/pending
func (h *Handlers) ListPending(c *gin.Context) {
	principal := c.Param("principal")

	pending, err := h.queryService.ListPending(c.Request.Context(), principal)
	if err != nil {
		h.serviceError(c, "list pending", err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: pending})
}

// AssignedLevels handles GET /api/approvers/:principal/levels
func (h *Handlers) AssignedLevels(c *gin.Context) {
	principal := c.Param("principal")

	assignments, err := h.queryService.AssignedLevels(c.Request.Context(), principal)
	if err != nil {
		h.serviceError(c, "assigned levels", err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: assignments})
}

// documentID parses the :id path parameter, replying 400 on failure.
func (h *Handlers) documentID(c *gin.Context) (int64, bool) {
	idStr := c.Param("id")
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		h.logger.Error("Invalid document ID", "id", idStr, "error", err)
		c.JSON(http.StatusBadRequest, Response{
			Success: false,
			Error:   "invalid document ID",
		})
		return 0, false
	}
	return id, true
}

// badRequest replies 400 with a stable message; the underlying error only
// goes to the log.
func (h *Handlers) badRequest(c *gin.Context, msg string, err error) {
	h.logger.Error("Bad request", "error", err, "path", c.Request.URL.Path)
	c.JSON(http.StatusBadRequest, Response{
		Success: false,
		Error:   msg,
	})
}

// serviceError maps domain errors onto HTTP status codes.
func (h *Handlers) serviceError(c *gin.Context, op string, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, approval.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, approval.ErrUnauthorized):
		status = http.StatusForbidden
	case errors.Is(err, approval.ErrMixedLevels):
		status = http.StatusBadRequest
	case errors.Is(err, approval.ErrInvalidState),
		errors.Is(err, approval.ErrLevelMismatch),
		errors.Is(err, approval.ErrConflictingDecision),
		errors.Is(err, approval.ErrForwardNotAllowed),
		errors.Is(err, approval.ErrConcurrentModification):
		status = http.StatusConflict
	}

	h.logger.Error("Request failed", "op", op, "error", err, "status", status)
	c.JSON(status, Response{
		Success: false,
		Error:   err.Error(),
	})
}

// Package http wires the JSON API routes to domain services.
package http

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"todo-service/internal/auth"
	"todo-service/internal/domain"
	"todo-service/internal/service"
	"todo-service/internal/storage"
)

const maxTitleLength = 500

// Handler wires HTTP routes to domain services.
type Handler struct {
	todos     service.TodoService
	subs      service.SubscriptionService
	storage   storage.Service
	bucket    string
	keyPrefix string
	logger    *logrus.Logger
}

func NewHandler(todos service.TodoService, subs service.SubscriptionService, store storage.Service, bucket, keyPrefix string, logger *logrus.Logger) *Handler {
	return &Handler{
		todos:     todos,
		subs:      subs,
		storage:   store,
		bucket:    bucket,
		keyPrefix: keyPrefix,
		logger:    logger,
	}
}

func (h *Handler) RegisterRoutes(router *gin.Engine) {
	api := router.Group("/api")
	{
		api.GET("/todos", h.listTodos)
		api.POST("/todos", h.createTodo)
		api.DELETE("/todos/:id", h.deleteTodo)
		api.GET("/subscription", h.subscriptionStatus)
		api.POST("/subscription", h.activateSubscription)
		api.POST("/exports", h.exportTodos)
		api.GET("/exports", h.listExports)
		api.DELETE("/exports", h.clearExports)
		api.GET("/health", func(ctx *gin.Context) {
			ctx.JSON(http.StatusOK, gin.H{"status": "ok"})
		})
	}
}

// CORSMiddleware answers preflight requests and sets the allow headers.
// It must be installed ahead of the session guard, a preflight never
// carries credentials.
func CORSMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

func (h *Handler) listTodos(c *gin.Context) {
	claims, ok := auth.ClaimsFromContext(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	page := parsePage(c.DefaultQuery("page", "1"))
	search := c.Query("search")

	result, err := h.todos.List(c.Request.Context(), claims.Subject, page, search)
	if err != nil {
		h.logger.WithError(err).Error("list todos failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}

	resp := make([]TodoResponse, len(result.Todos))
	for i := range result.Todos {
		resp[i] = todoToResponse(result.Todos[i])
	}
	c.JSON(http.StatusOK, ListTodosResponse{
		Todos:       resp,
		CurrentPage: result.CurrentPage,
		TotalPages:  result.TotalPages,
	})
}

type createTodoRequest struct {
	Title string `json:"title" binding:"required"`
}

func (h *Handler) createTodo(c *gin.Context) {
	claims, ok := auth.ClaimsFromContext(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var req createTodoRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "title is required"})
		return
	}

	title := strings.TrimSpace(req.Title)
	if title == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "title is required"})
		return
	}
	if len(title) > maxTitleLength {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("title exceeds %d characters", maxTitleLength)})
		return
	}

	todo, err := h.todos.Create(c.Request.Context(), claims.Subject, title)
	switch {
	case err == nil:
		c.JSON(http.StatusCreated, todoToResponse(*todo))
	case err == service.ErrUserNotFound:
		c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
	case err == service.ErrQuotaExceeded:
		c.JSON(http.StatusForbidden, gin.H{
			"error": fmt.Sprintf("free users can keep up to %d todos, subscribe to create more", service.FreeTodoLimit),
		})
	default:
		h.logger.WithError(err).Error("create todo failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}

func (h *Handler) deleteTodo(c *gin.Context) {
	claims, ok := auth.ClaimsFromContext(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	err := h.todos.Delete(c.Request.Context(), claims.Subject, c.Param("id"))
	switch {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{"message": "todo deleted successfully"})
	case err == service.ErrTodoNotFound:
		c.JSON(http.StatusNotFound, gin.H{"error": "todo not found"})
	case err == service.ErrForbidden:
		c.JSON(http.StatusForbidden, gin.H{"error": "forbidden"})
	default:
		h.logger.WithError(err).Error("delete todo failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}

func (h *Handler) activateSubscription(c *gin.Context) {
	claims, ok := auth.ClaimsFromContext(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	ends, err := h.subs.Activate(c.Request.Context(), claims.Subject)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{
			"message":          "subscription added successfully",
			"subscriptionEnds": ends.Format(time.RFC3339),
		})
	case err == service.ErrUserNotFound:
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not found"})
	default:
		h.logger.WithError(err).Error("activate subscription failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}

func (h *Handler) subscriptionStatus(c *gin.Context) {
	claims, ok := auth.ClaimsFromContext(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	status, err := h.subs.Status(c.Request.Context(), claims.Subject)
	switch {
	case err == nil:
		resp := SubscriptionResponse{IsSubscribed: status.IsSubscribed}
		if status.SubscriptionEnds != nil {
			v := status.SubscriptionEnds.Format(time.RFC3339)
			resp.SubscriptionEnds = &v
		}
		c.JSON(http.StatusOK, resp)
	case err == service.ErrUserNotFound:
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not found"})
	default:
		h.logger.WithError(err).Error("subscription status failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}

func (h *Handler) exportTodos(c *gin.Context) {
	claims, ok := auth.ClaimsFromContext(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	if h.storage == nil || h.bucket == "" {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "storage service not configured"})
		return
	}

	todos, err := h.todos.ListAll(c.Request.Context(), claims.Subject)
	if err != nil {
		h.logger.WithError(err).Error("export todos failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}

	items := make([]TodoResponse, len(todos))
	for i := range todos {
		items[i] = todoToResponse(todos[i])
	}
	now := time.Now().UTC()
	snapshot := ExportSnapshot{
		UserID:     claims.Subject,
		ExportedAt: now.Format(time.RFC3339),
		Count:      len(items),
		Todos:      items,
	}

	key := fmt.Sprintf("%s/%s/%s.json", h.keyPrefix, claims.Subject, now.Format("20060102T150405Z"))
	location, err := h.storage.PutJSON(c.Request.Context(), h.bucket, key, snapshot)
	if err != nil {
		h.logger.WithError(err).Error("upload todo snapshot failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"location": location, "count": len(items)})
}

func (h *Handler) listExports(c *gin.Context) {
	claims, ok := auth.ClaimsFromContext(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	if h.storage == nil || h.bucket == "" {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "storage service not configured"})
		return
	}

	objects, err := h.storage.ListObjects(c.Request.Context(), h.bucket, h.exportPrefix(claims.Subject))
	if err != nil {
		h.logger.WithError(err).Error("list exports failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}

	resp := make([]StorageObjectResponse, len(objects))
	for i := range objects {
		resp[i] = objectToResponse(objects[i])
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) clearExports(c *gin.Context) {
	claims, ok := auth.ClaimsFromContext(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	if h.storage == nil || h.bucket == "" {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "storage service not configured"})
		return
	}

	if err := h.storage.DeletePrefix(c.Request.Context(), h.bucket, h.exportPrefix(claims.Subject)); err != nil {
		h.logger.WithError(err).Error("clear exports failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "exports cleared"})
}

func (h *Handler) exportPrefix(userID string) string {
	return fmt.Sprintf("%s/%s/", strings.Trim(h.keyPrefix, "/"), userID)
}

// parsePage clamps malformed or out-of-range page parameters to the first page.
func parsePage(raw string) int {
	page, err := strconv.Atoi(raw)
	if err != nil || page < 1 {
		return 1
	}
	return page
}

type TodoResponse struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	UserID    string `json:"userId"`
	CreatedAt string `json:"createdAt"`
}

type ListTodosResponse struct {
	Todos       []TodoResponse `json:"todos"`
	CurrentPage int            `json:"currentPage"`
	TotalPages  int            `json:"totalPages"`
}

type SubscriptionResponse struct {
	IsSubscribed     bool    `json:"isSubscribed"`
	SubscriptionEnds *string `json:"subscriptionEnds"`
}

type ExportSnapshot struct {
	UserID     string         `json:"userId"`
	ExportedAt string         `json:"exportedAt"`
	Count      int            `json:"count"`
	Todos      []TodoResponse `json:"todos"`
}

type StorageObjectResponse struct {
	Key          string  `json:"key"`
	Size         int64   `json:"size"`
	LastModified *string `json:"last_modified,omitempty"`
}

func objectToResponse(obj storage.ObjectInfo) StorageObjectResponse {
	resp := StorageObjectResponse{
		Key:  obj.Key,
		Size: obj.Size,
	}
	if obj.LastModified != nil && !obj.LastModified.IsZero() {
		v := obj.LastModified.Format(time.RFC3339)
		resp.LastModified = &v
	}
	return resp
}

func todoToResponse(todo domain.Todo) TodoResponse {
	return TodoResponse{
		ID:        todo.ID,
		Title:     todo.Title,
		UserID:    todo.UserID,
		CreatedAt: todo.CreatedAt.Format(time.RFC3339),
	}
}

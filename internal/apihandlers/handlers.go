package apihandlers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"
	"wardrobe/internal/models"
	"wardrobe/internal/push"
	"wardrobe/internal/services"
)

// UserHeader carries the caller id, set by the gateway in front of us.
const UserHeader = "X-User-ID"

const userKey = "user_id"

// multipartOverhead is room for boundaries and the other form fields on top
// of the image itself.
const multipartOverhead = 1 << 20

// JobService is what the handlers need from the intake service.
type JobService interface {
	Upload(ctx context.Context, params services.UploadParams) (*models.ProcessingJob, error)
	Get(ctx context.Context, userID, jobID int64) (*models.ProcessingJob, error)
	List(ctx context.Context, params services.ListJobsParams) ([]*models.ProcessingJob, error)
	Confirm(ctx context.Context, userID, jobID int64, imageRef string) (*models.ProcessingJob, error)
}

// Pinger reports backend health.
type Pinger interface {
	Ping(ctx context.Context) error
}

type APIHandler struct {
	Jobs   JobService
	Hub    *push.Hub
	Health Pinger
	// MaxUploadBytes rejects larger images before they are buffered. 0 means unlimited.
	MaxUploadBytes int64
	upgrader       websocket.Upgrader
}

func NewAPIHandler(jobs JobService, hub *push.Hub, health Pinger) *APIHandler {
	return &APIHandler{
		Jobs:   jobs,
		Hub:    hub,
		Health: health,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Origin checks happen at the gateway.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// Register mounts every route on router.
func (h *APIHandler) Register(router *gin.Engine) {
	router.GET("/health", h.HealthHandler)

	v1 := router.Group("/api/v1", RequireUser())
	{
		jobs := v1.Group("/jobs")
		{
			jobs.POST("", h.UploadHandler)
			jobs.GET("", h.ListJobsHandler)
			jobs.GET("/:id", h.GetJobHandler)
			jobs.POST("/:id/confirm", h.ConfirmHandler)
		}
		v1.GET("/ws", h.WebSocketHandler)
	}
}

// RequireUser rejects requests without a positive numeric user header.
func RequireUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := c.GetHeader(UserHeader)
		id, err := strconv.ParseInt(raw, 10, 64)
		if raw == "" || err != nil || id <= 0 {
			Unauthorized(c, "missing or invalid "+UserHeader+" header")
			return
		}
		c.Set(userKey, id)
		c.Next()
	}
}

func userID(c *gin.Context) int64 {
	return c.GetInt64(userKey)
}

func (h *APIHandler) UploadHandler(c *gin.Context) {
	if h.MaxUploadBytes > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.MaxUploadBytes+multipartOverhead)
	}
	fh, err := c.FormFile("image")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			JSONError(c, http.StatusRequestEntityTooLarge, "too_large", fmt.Sprintf("request body exceeds %d bytes", tooLarge.Limit))
			return
		}
		BadRequest(c, "missing multipart file field 'image'")
		return
	}
	if h.MaxUploadBytes > 0 && fh.Size > h.MaxUploadBytes {
		BadRequest(c, fmt.Sprintf("image is %d bytes, limit is %d", fh.Size, h.MaxUploadBytes))
		return
	}
	f, err := fh.Open()
	if err != nil {
		BadRequest(c, "unreadable upload: "+err.Error())
		return
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		BadRequest(c, "unreadable upload: "+err.Error())
		return
	}

	job, err := h.Jobs.Upload(c.Request.Context(), services.UploadParams{
		UserID:    userID(c),
		Filename:  fh.Filename,
		ImageType: c.PostForm("image_type"),
		Data:      data,
	})
	if err != nil {
		respondError(c, "UploadHandler", err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"data": job})
}

func (h *APIHandler) ListJobsHandler(c *gin.Context) {
	params := services.ListJobsParams{UserID: userID(c), Status: c.Query("status")}
	if l := c.Query("limit"); l != "" {
		parsed, err := strconv.Atoi(l)
		if err != nil || parsed <= 0 {
			BadRequest(c, fmt.Sprintf("invalid limit: %s", l))
			return
		}
		params.Limit = parsed
	}
	if o := c.Query("offset"); o != "" {
		parsed, err := strconv.Atoi(o)
		if err != nil || parsed < 0 {
			BadRequest(c, fmt.Sprintf("invalid offset: %s", o))
			return
		}
		params.Offset = parsed
	}

	jobs, err := h.Jobs.List(c.Request.Context(), params)
	if err != nil {
		respondError(c, "ListJobsHandler", err)
		return
	}
	if jobs == nil {
		jobs = []*models.ProcessingJob{}
	}
	c.JSON(http.StatusOK, gin.H{"items": jobs})
}

func (h *APIHandler) GetJobHandler(c *gin.Context) {
	id, err := parseJobID(c)
	if err != nil {
		BadRequest(c, err.Error())
		return
	}
	job, err := h.Jobs.Get(c.Request.Context(), userID(c), id)
	if err != nil {
		respondError(c, "GetJobHandler", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": job})
}

type confirmRequest struct {
	ImageRef string `json:"image_ref" binding:"required"`
}

func (h *APIHandler) ConfirmHandler(c *gin.Context) {
	id, err := parseJobID(c)
	if err != nil {
		BadRequest(c, err.Error())
		return
	}
	var req confirmRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "Invalid request body: "+err.Error())
		return
	}
	job, err := h.Jobs.Confirm(c.Request.Context(), userID(c), id, req.ImageRef)
	if err != nil {
		respondError(c, "ConfirmHandler", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": job})
}

// WebSocketHandler upgrades the connection and keeps it registered with the
// hub until the client goes away.
func (h *APIHandler) WebSocketHandler(c *gin.Context) {
	if h.Hub == nil {
		Unavailable(c, "push notifications are not enabled")
		return
	}
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade already wrote the error response.
		log.WithError(err).Warn("websocket upgrade failed")
		return
	}
	h.Hub.Serve(userID(c), conn)
}

func (h *APIHandler) HealthHandler(c *gin.Context) {
	if h.Health != nil {
		if err := h.Health.Ping(c.Request.Context()); err != nil {
			Unavailable(c, err.Error())
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func parseJobID(c *gin.Context) (int64, error) {
	idStr := c.Param("id")
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("Invalid job ID format: %s", idStr)
	}
	return id, nil
}

package api

import (
	"net/http"
	"time"

	authusecase "voicebox-backend/internal/auth/usecase"
	messagedomain "voicebox-backend/internal/message/domain"
	messagerepo "voicebox-backend/internal/message/repository"
	queuedomain "voicebox-backend/internal/queue/domain"
	queuerepo "voicebox-backend/internal/queue/repository"
	userrepo "voicebox-backend/internal/user/repository"
	voiceusecase "voicebox-backend/internal/voice/usecase"
	"voicebox-backend/internal/worker"
	"voicebox-backend/pkg/config"
	"voicebox-backend/pkg/sse"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	authUsecase authusecase.AuthUsecase
	manager     *worker.Manager
	queue       queuerepo.QueueRepository
	processed   messagerepo.ProcessedMessageRepository
	connections userrepo.ConnectionRepository
	fcmTokens   userrepo.FCMTokenRepository
	voice       *voiceusecase.Generator
	sseManager  *sse.Manager
	config      *config.Config
	engine      *gin.Engine
}

func NewHandler(
	authUsecase authusecase.AuthUsecase,
	manager *worker.Manager,
	queue queuerepo.QueueRepository,
	processed messagerepo.ProcessedMessageRepository,
	connections userrepo.ConnectionRepository,
	fcmTokens userrepo.FCMTokenRepository,
	voice *voiceusecase.Generator,
	sseManager *sse.Manager,
	cfg *config.Config,
) *Handler {
	h := &Handler{
		authUsecase: authUsecase,
		manager:     manager,
		queue:       queue,
		processed:   processed,
		connections: connections,
		fcmTokens:   fcmTokens,
		voice:       voice,
		sseManager:  sseManager,
		config:      cfg,
	}

	r := gin.Default()
	SetupRoutes(r, h)
	h.engine = r
	return h
}

// Start runs the HTTP server
func (h *Handler) Start(addr string) error {
	return h.engine.Run(addr)
}

// Health reports overall status plus per-worker health flags
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"workers": h.manager.CheckHealth(),
	})
}

// ListWorkers returns runtime snapshots of every worker
func (h *Handler) ListWorkers(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"workers": h.manager.Statuses()})
}

// GetWorker returns one worker's runtime snapshot
func (h *Handler) GetWorker(c *gin.Context) {
	status, ok := h.manager.Status(c.Param("name"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "worker not found"})
		return
	}
	c.JSON(http.StatusOK, status)
}

// StartWorker starts a stopped worker
func (h *Handler) StartWorker(c *gin.Context) {
	w, ok := h.manager.Get(c.Param("name"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "worker not found"})
		return
	}
	w.Start()
	c.JSON(http.StatusOK, w.Status())
}

// StopWorker stops a running worker
func (h *Handler) StopWorker(c *gin.Context) {
	w, ok := h.manager.Get(c.Param("name"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "worker not found"})
		return
	}
	w.Stop()
	c.JSON(http.StatusOK, w.Status())
}

type enqueueRequest struct {
	ID                     string    `json:"id" binding:"required"`
	Source                 string    `json:"source" binding:"required"`
	Sender                 string    `json:"sender"`
	Subject                string    `json:"subject"`
	Content                string    `json:"content"`
	Timestamp              time.Time `json:"timestamp"`
	Priority               int       `json:"priority"`
	MaxRetries             int       `json:"max_retries"`
	VisibilityDelaySeconds int       `json:"visibility_delay_seconds"`
}

// Enqueue accepts a normalized message from any ingestion path
func (h *Handler) Enqueue(c *gin.Context) {
	var req enqueueRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	source := messagedomain.Source(req.Source)
	if !source.IsValid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown source"})
		return
	}

	timestamp := req.Timestamp
	if timestamp.IsZero() {
		timestamp = time.Now()
	}

	msg := &messagedomain.NormalizedMessage{
		ID:        req.ID,
		Source:    source,
		Sender:    req.Sender,
		Subject:   req.Subject,
		Content:   req.Content,
		Timestamp: timestamp,
	}

	opts := queuedomain.DefaultEnqueueOptions()
	if req.Priority != 0 {
		opts.Priority = req.Priority
	}
	if req.MaxRetries > 0 {
		opts.MaxRetries = req.MaxRetries
	}
	if req.VisibilityDelaySeconds > 0 {
		opts.VisibilityDelay = time.Duration(req.VisibilityDelaySeconds) * time.Second
	}

	id, err := h.queue.Enqueue(msg, c.GetString("userID"), opts)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if id == "" {
		c.JSON(http.StatusOK, gin.H{"status": "duplicate", "id": nil})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"status": "queued", "id": id})
}

// RecentQueueItems lists the user's recent queue items, newest first
func (h *Handler) RecentQueueItems(c *gin.Context) {
	items, err := h.queue.Recent(c.GetString("userID"), 50)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

// ListProcessedMessages lists the user's classification results
func (h *Handler) ListProcessedMessages(c *gin.Context) {
	messages, err := h.processed.FindByUser(c.GetString("userID"), 50)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": messages})
}

// GetVoiceResponse returns the synthesized audio record for a message
func (h *Handler) GetVoiceResponse(c *gin.Context) {
	response, err := h.voice.GetResponse(c.GetString("userID"), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if response == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no voice response for message"})
		return
	}
	c.JSON(http.StatusOK, response)
}

// ListConnections lists which sources the user has connected
func (h *Handler) ListConnections(c *gin.Context) {
	conns, err := h.connections.FindByUser(c.GetString("userID"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"connections": conns})
}

type registerFCMRequest struct {
	Token string `json:"token" binding:"required"`
}

// RegisterFCMToken registers a device for push notifications
func (h *Handler) RegisterFCMToken(c *gin.Context) {
	var req registerFCMRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.fcmTokens.Register(c.GetString("userID"), req.Token); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "registered"})
}

// UnregisterFCMToken removes a device token
func (h *Handler) UnregisterFCMToken(c *gin.Context) {
	if err := h.fcmTokens.DeleteToken(c.Param("token")); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "unregistered"})
}

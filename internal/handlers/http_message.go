package handlers

import (
	"errors"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/thereayou/taskchat/internal/handlers/dto"
	"github.com/thereayou/taskchat/internal/metrics"
	"github.com/thereayou/taskchat/internal/middleware"
	"github.com/thereayou/taskchat/internal/models"
	"github.com/thereayou/taskchat/internal/services"
	"github.com/thereayou/taskchat/internal/storage"
)

const (
	// AttachmentPlaceholder is stored as content when only a file was sent.
	AttachmentPlaceholder = "Attachment"
	maxHistoryLimit       = 500
	multipartOverhead     = 1 << 20
)

type HTTPMessageHandler struct {
	store        services.ChatStore
	attachments  storage.AttachmentStore
	metrics      *metrics.Metrics
	historyLimit int
	maxUpload    int64
	log          zerolog.Logger
}

type MessageHandlerConfig struct {
	HistoryLimit   int
	MaxUploadBytes int64
}

func NewHTTPMessageHandler(store services.ChatStore, attachments storage.AttachmentStore, m *metrics.Metrics, cfg MessageHandlerConfig, log zerolog.Logger) *HTTPMessageHandler {
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = 100
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 10 << 20
	}
	return &HTTPMessageHandler{
		store:        store,
		attachments:  attachments,
		metrics:      m,
		historyLimit: cfg.HistoryLimit,
		maxUpload:    cfg.MaxUploadBytes,
		log:          log.With().Str("module", "handlers.message").Logger(),
	}
}

// GetRoomMessages отдаёт последние сообщения комнаты, новые первыми
func (h *HTTPMessageHandler) GetRoomMessages(c *gin.Context) {
	room, ok := loadRoom(c, h.store)
	if !ok {
		return
	}

	// Параметры пагинации
	limit := h.historyLimit
	if l := c.Query("limit"); l != "" {
		parsed, err := strconv.Atoi(l)
		if err != nil || parsed <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
			return
		}
		limit = min(parsed, maxHistoryLimit)
	}

	messages, err := h.store.GetRoomMessages(room.ID, limit)
	if err != nil {
		h.log.Error().Err(err).Str("room", room.ID.String()).Msg("fetch failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get messages"})
		return
	}

	h.metrics.MessageFetches.Inc()
	c.JSON(http.StatusOK, dto.NewMessageList(messages))
}

// SendMessage принимает JSON {content} или multipart с полями content и attachment
func (h *HTTPMessageHandler) SendMessage(c *gin.Context) {
	room, ok := loadRoom(c, h.store)
	if !ok {
		return
	}

	var (
		content string
		file    *multipart.FileHeader
	)
	if c.ContentType() == gin.MIMEMultipartPOSTForm {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUpload+multipartOverhead)
		form, err := c.MultipartForm()
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "attachment is too large"})
				return
			}
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid multipart body"})
			return
		}
		if v := form.Value["content"]; len(v) > 0 {
			content = v[0]
		}
		if f := form.File["attachment"]; len(f) > 0 {
			file = f[0]
		}
	} else {
		var req dto.MessagePayload
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		content = req.Content
	}

	blank := strings.TrimSpace(content) == ""
	if blank && file == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "message is empty"})
		return
	}
	if blank {
		content = AttachmentPlaceholder
	}

	message := &models.Message{
		RoomID:    room.ID,
		SenderID:  middleware.CurrentUser(c),
		Content:   content,
		CreatedAt: time.Now(),
	}

	var ref *storage.Ref
	if file != nil {
		if file.Size > h.maxUpload {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "attachment is too large"})
			return
		}
		saved, ok := h.saveAttachment(c, file)
		if !ok {
			return
		}
		ref = &saved
		message.AttachmentPath = saved.Path
		message.AttachmentType = saved.ContentType
	}

	if err := h.store.SaveMessage(message); err != nil {
		h.log.Error().Err(err).Str("room", room.ID.String()).Msg("save message failed")
		if ref != nil {
			if derr := h.attachments.Delete(*ref); derr != nil {
				h.log.Warn().Err(derr).Str("path", ref.Path).Msg("orphaned attachment not removed")
			}
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to save message"})
		return
	}
	if file != nil {
		h.metrics.AttachmentBytes.Add(float64(file.Size))
	}

	// Загружаем полную информацию о сообщении
	full, err := h.store.GetMessage(message.ID)
	if err != nil {
		full = message
	}

	kind := "text"
	if message.HasAttachment() {
		kind = "attachment"
	}
	h.metrics.MessagesPosted.WithLabelValues(kind).Inc()
	c.JSON(http.StatusCreated, dto.NewMessageResponse(full))
}

func (h *HTTPMessageHandler) saveAttachment(c *gin.Context, fh *multipart.FileHeader) (storage.Ref, bool) {
	f, err := fh.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "cannot read attachment"})
		return storage.Ref{}, false
	}
	defer f.Close()

	ref, err := h.attachments.Save(fh.Filename, f)
	if errors.Is(err, storage.ErrEmptyUpload) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "attachment is empty"})
		return storage.Ref{}, false
	}
	if err != nil {
		h.log.Error().Err(err).Str("file", fh.Filename).Msg("store attachment failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store attachment"})
		return storage.Ref{}, false
	}
	return ref, true
}

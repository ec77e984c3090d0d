package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"medlink-server/internal/chat"
	"medlink-server/internal/config"
	"medlink-server/internal/logger"
	"medlink-server/internal/middleware"
	"medlink-server/internal/models"
	"medlink-server/internal/utils"
)

// ChatHandler serves chat threads over REST and WebSocket.
type ChatHandler struct {
	Service  *chat.Service
	Hub      *chat.Hub
	Log      *logger.Logger
	MaxBytes int64
	upgrader websocket.Upgrader
}

// NewChatHandler creates a new ChatHandler. WebSocket upgrades are accepted
// from the configured origin only, or from anywhere in development.
func NewChatHandler(service *chat.Service, hub *chat.Hub, cfg *config.Config, log *logger.Logger) *ChatHandler {
	if log == nil {
		log = logger.Discard()
	}
	h := &ChatHandler{
		Service:  service,
		Hub:      hub,
		Log:      log,
		MaxBytes: int64(cfg.MaxUploadMB) << 20,
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return origin == "" || cfg.IsDevelopment() || strings.EqualFold(origin, cfg.Origin)
		},
	}
	return h
}

// CreateThreadRequest is the body of POST /chats.
type CreateThreadRequest struct {
	ParticipantIDs []string `json:"participant_ids" binding:"required,min=1,dive,uuid"`
}

// CreateThread opens a thread between the caller and the listed users.
func (h *ChatHandler) CreateThread(c *gin.Context) {
	actor, ok := middleware.GetActor(c)
	if !ok {
		return
	}

	var req CreateThreadRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}

	thread, err := h.Service.CreateThread(c.Request.Context(), actor, req.ParticipantIDs)
	if err != nil {
		utils.HandleError(c, err)
		return
	}
	utils.Created(c, "Chat thread created successfully", thread)
}

// ListThreads returns the caller's threads.
func (h *ChatHandler) ListThreads(c *gin.Context) {
	actor, ok := middleware.GetActor(c)
	if !ok {
		return
	}

	threads, err := h.Service.ListThreads(c.Request.Context(), actor)
	if err != nil {
		utils.HandleError(c, err)
		return
	}
	utils.Success(c, "Chat threads fetched successfully", threads)
}

// ListMessages returns the messages of a thread.
func (h *ChatHandler) ListMessages(c *gin.Context) {
	actor, ok := middleware.GetActor(c)
	if !ok {
		return
	}

	messages, err := h.Service.ListMessages(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		utils.HandleError(c, err)
		return
	}
	utils.Success(c, "Messages fetched successfully", messages)
}

// PostMessageRequest is the JSON body of a text message.
type PostMessageRequest struct {
	Text string `json:"text" binding:"required"`
}

// PostMessage posts a message to a thread. JSON bodies carry text; multipart
// bodies carry a "file" field and an optional "text" caption.
func (h *ChatHandler) PostMessage(c *gin.Context) {
	actor, ok := middleware.GetActor(c)
	if !ok {
		return
	}

	in := chat.MessageInput{Type: models.MessageText}
	if strings.HasPrefix(c.ContentType(), "multipart/") {
		file, ok := readUpload(c, "file", h.MaxBytes)
		if !ok {
			return
		}
		in.Type = models.MessageFile
		if file.IsImage() {
			in.Type = models.MessageImage
		}
		in.Text = c.PostForm("text")
		in.FileName = file.Name
		in.ContentType = file.ContentType
		in.Data = file.Data
	} else {
		var req PostMessageRequest
		if !utils.BindAndValidate(c, &req) {
			return
		}
		in.Text = req.Text
	}

	msg, err := h.Service.PostMessage(c.Request.Context(), actor, c.Param("id"), in)
	if err != nil {
		utils.HandleError(c, err)
		return
	}
	utils.Created(c, "Message sent successfully", msg)
}

// MarkRead marks a message as read by the caller.
func (h *ChatHandler) MarkRead(c *gin.Context) {
	actor, ok := middleware.GetActor(c)
	if !ok {
		return
	}

	msg, err := h.Service.MarkRead(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		utils.HandleError(c, err)
		return
	}
	utils.Success(c, "Message marked as read", msg)
}

// DownloadAttachment returns the file of an image or file message.
func (h *ChatHandler) DownloadAttachment(c *gin.Context) {
	actor, ok := middleware.GetActor(c)
	if !ok {
		return
	}

	msg, err := h.Service.GetMessage(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		utils.HandleError(c, err)
		return
	}
	if msg.Type == models.MessageText {
		utils.NotFound(c, "Message has no attachment")
		return
	}
	serveFile(c, msg.FileName, msg.ContentType, msg.FileData)
}

// ServeWS upgrades the request to a WebSocket joined to the thread's room.
// Membership is checked before the upgrade so outsiders get a plain 403.
func (h *ChatHandler) ServeWS(c *gin.Context) {
	actor, ok := middleware.GetActor(c)
	if !ok {
		return
	}

	threadID := c.Param("id")
	if _, err := h.Service.GetThread(c.Request.Context(), actor, threadID); err != nil {
		utils.HandleError(c, err)
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade has already written the HTTP error.
		h.Log.WithComponent("chat").WithError(err).Warn("WebSocket upgrade failed")
		return
	}

	client := chat.NewClient(conn, actor.ID, threadID)
	h.Hub.Register(client)
	go client.WritePump()
	client.ReadPump(h.Hub, h.Service.HandleInbound(c.Request.Context(), actor))
}

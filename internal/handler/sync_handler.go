package handler

import (
	"errors"

	"collab-notes-be/internal/config"
	"collab-notes-be/internal/pkg/logger"
	"collab-notes-be/internal/pkg/serverutils"
	"collab-notes-be/internal/service"
	ws "collab-notes-be/internal/websocket"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
)

// SyncHandler upgrades authenticated clients into live note sessions.
// Authentication and access checks run before the upgrade so rejections are
// plain HTTP statuses, not half-open sockets.
type SyncHandler struct {
	hub         *ws.Hub
	syncService service.ISyncService
	cfg         *config.Config
	logger      logger.ILogger
}

func NewSyncHandler(hub *ws.Hub, syncService service.ISyncService, cfg *config.Config, log logger.ILogger) *SyncHandler {
	return &SyncHandler{
		hub:         hub,
		syncService: syncService,
		cfg:         cfg,
		logger:      log,
	}
}

func (h *SyncHandler) RegisterRoutes(router fiber.Router) {
	router.Get("/note/v1/:id/ws", h.allowUpgrade, websocket.New(h.serve))
}

func (h *SyncHandler) allowUpgrade(ctx *fiber.Ctx) error {
	if !websocket.IsWebSocketUpgrade(ctx) {
		return fiber.ErrUpgradeRequired
	}

	token := serverutils.WsToken(ctx)
	if token == "" {
		return ctx.Status(fiber.StatusUnauthorized).
			JSON(serverutils.ErrorResponse(fiber.StatusUnauthorized, "Missing token"))
	}

	rawUserId, err := serverutils.ParseUserID(token)
	if err != nil {
		return ctx.Status(fiber.StatusUnauthorized).
			JSON(serverutils.ErrorResponse(fiber.StatusUnauthorized, "Invalid token"))
	}
	userId, err := uuid.Parse(rawUserId)
	if err != nil {
		return ctx.Status(fiber.StatusUnauthorized).
			JSON(serverutils.ErrorResponse(fiber.StatusUnauthorized, "Invalid token"))
	}

	noteId, err := uuid.Parse(ctx.Params("id"))
	if err != nil {
		return ctx.Status(fiber.StatusBadRequest).
			JSON(serverutils.ErrorResponse(fiber.StatusBadRequest, "Invalid note id"))
	}

	if err := h.syncService.CheckAccess(ctx.Context(), userId, noteId); err != nil {
		switch {
		case errors.Is(err, service.ErrNoteNotFound):
			return ctx.Status(fiber.StatusNotFound).
				JSON(serverutils.ErrorResponse(fiber.StatusNotFound, "Note not found"))
		case errors.Is(err, service.ErrAccessDenied):
			return ctx.Status(fiber.StatusForbidden).
				JSON(serverutils.ErrorResponse(fiber.StatusForbidden, "Access denied"))
		default:
			h.logger.Error("SyncHandler", "Access check failed", map[string]interface{}{
				"note_id": noteId, "user_id": userId, "error": err.Error(),
			})
			return ctx.Status(fiber.StatusInternalServerError).
				JSON(serverutils.ErrorResponse(fiber.StatusInternalServerError, "Internal server error"))
		}
	}

	ctx.Locals("user_id", userId)
	ctx.Locals("note_id", noteId)
	return ctx.Next()
}

func (h *SyncHandler) serve(conn *websocket.Conn) {
	userId := conn.Locals("user_id").(uuid.UUID)
	noteId := conn.Locals("note_id").(uuid.UUID)

	ws.ServeSession(h.hub, conn, noteId, userId, h.syncService, h.logger, h.cfg.Sync.SendBufferSize)
}

package controller

import (
	"context"
	"strconv"

	"ai-helpdesk-be/internal/dto"
	"ai-helpdesk-be/internal/pkg/logger"
	"ai-helpdesk-be/internal/pkg/serverutils"
	"ai-helpdesk-be/internal/service"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

type IChatController interface {
	RegisterRoutes(r fiber.Router)
	Chat(ctx *fiber.Ctx) error
	GetHistory(ctx *fiber.Ctx) error
	ClearHistory(ctx *fiber.Ctx) error
	SessionCount(ctx *fiber.Ctx) error
}

type chatController struct {
	chatService service.IChatService
	auth        fiber.Handler
	logger      logger.ILogger
}

func NewChatController(chatService service.IChatService, auth fiber.Handler, log logger.ILogger) IChatController {
	return &chatController{
		chatService: chatService,
		auth:        auth,
		logger:      log,
	}
}

func (c *chatController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/chat/v1")
	h.Use(c.auth)
	h.Post("", c.Chat)
	h.Get("history/:session_id", c.GetHistory)
	h.Delete("history/:session_id", c.ClearHistory)
	h.Get("sessions/count", c.SessionCount)
	h.Use("ws", upgradeOnly)
	h.Get("ws", websocket.New(c.serveWs))
}

func (c *chatController) Chat(ctx *fiber.Ctx) error {
	var req dto.ChatRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}

	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.chatService.Chat(ctx.UserContext(), serverutils.UserID(ctx), &req, nil)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success chat", res))
}

func (c *chatController) GetHistory(ctx *fiber.Ctx) error {
	limit := 0
	if raw := ctx.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return fiber.NewError(fiber.StatusBadRequest, "limit must be a non-negative integer")
		}
		limit = n
	}

	res, err := c.chatService.GetHistory(ctx.UserContext(), ctx.Params("session_id"), limit)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success get history", res))
}

func (c *chatController) ClearHistory(ctx *fiber.Ctx) error {
	res, err := c.chatService.ClearHistory(ctx.UserContext(), ctx.Params("session_id"))
	if err != nil {
		return err
	}

	message := "History cleared"
	if !res.Deleted {
		message = "Session not found"
	}
	return ctx.JSON(serverutils.SuccessResponse(message, res))
}

func (c *chatController) SessionCount(ctx *fiber.Ctx) error {
	res, err := c.chatService.SessionCount(ctx.UserContext())
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success get session count", res))
}

func upgradeOnly(ctx *fiber.Ctx) error {
	if websocket.IsWebSocketUpgrade(ctx) {
		return ctx.Next()
	}
	return fiber.ErrUpgradeRequired
}

// serveWs runs one chat turn per inbound request frame, streaming chunk frames
// and finishing each turn with a done (or error) frame.
func (c *chatController) serveWs(conn *websocket.Conn) {
	userID, _ := conn.Locals("user_id").(string)

	for {
		var req dto.ChatRequest
		if err := conn.ReadJSON(&req); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Warn("ChatController", "Websocket read failed", map[string]interface{}{"error": err.Error()})
			}
			return
		}

		if err := serverutils.ValidateRequest(req); err != nil {
			if conn.WriteJSON(dto.ChatFrame{Type: dto.FrameError, Error: err.Error()}) != nil {
				return
			}
			continue
		}

		if !c.streamTurn(conn, userID, &req) {
			return
		}
	}
}

// streamTurn runs one turn and reports whether the connection is still usable.
// A failed chunk write means the client is gone: the turn is cancelled so its
// history is not persisted.
func (c *chatController) streamTurn(conn frameWriter, userID string, req *dto.ChatRequest) bool {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var writeErr error
	res, err := c.chatService.Chat(ctx, userID, req, func(chunk string) {
		if writeErr != nil {
			return
		}
		if writeErr = conn.WriteJSON(dto.ChatFrame{Type: dto.FrameChunk, Content: chunk}); writeErr != nil {
			c.logger.Warn("ChatController", "Client went away mid-turn, abandoning", map[string]interface{}{"error": writeErr.Error()})
			cancel()
		}
	})
	if writeErr != nil {
		return false
	}

	frame := dto.ChatFrame{Type: dto.FrameDone, Data: res}
	if err != nil {
		frame = dto.ChatFrame{Type: dto.FrameError, Error: err.Error()}
	}
	return conn.WriteJSON(frame) == nil
}

type frameWriter interface {
	WriteJSON(v interface{}) error
}

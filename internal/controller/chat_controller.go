package controller

import (
	"bufio"
	"encoding/json"
	"errors"

	"deep-research-be/internal/dto"
	"deep-research-be/internal/pkg/serverutils"
	"deep-research-be/internal/service"
	"deep-research-be/pkg/events"

	"github.com/gofiber/fiber/v2"
	"github.com/valyala/fasthttp"
)

type IChatController interface {
	RegisterRoutes(r fiber.Router)
	Chat(ctx *fiber.Ctx) error
}

type chatController struct {
	researchService service.IResearchService
}

func NewChatController(researchService service.IResearchService) IChatController {
	return &chatController{
		researchService: researchService,
	}
}

func (c *chatController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/chat/v1")
	h.Post("", c.Chat)
	h.Get("/health", func(ctx *fiber.Ctx) error {
		return ctx.JSON(serverutils.SuccessResponse("ok", fiber.Map{"status": "ok"}))
	})
}

// Chat starts a research run and streams its event frames over SSE until the
// done frame. Admission failures are reported before the stream opens.
func (c *chatController) Chat(ctx *fiber.Ctx) error {
	var req dto.ChatRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	handle, err := c.researchService.StartRun(req.SessionId, req.Message)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrRateLimited):
			return fiber.NewError(fiber.StatusTooManyRequests, err.Error())
		case errors.Is(err, service.ErrBusy):
			return fiber.NewError(fiber.StatusServiceUnavailable, err.Error())
		default:
			return err
		}
	}

	ctx.Set(fiber.HeaderContentType, "text/event-stream")
	ctx.Set(fiber.HeaderCacheControl, "no-cache")
	ctx.Set(fiber.HeaderConnection, "keep-alive")
	ctx.Set("X-Accel-Buffering", "no")

	ctx.Context().SetBodyStreamWriter(fasthttp.StreamWriter(func(w *bufio.Writer) {
		defer handle.Cancel()

		if handle.NewSession {
			opening := events.NewEvent(events.TypeStatus, handle.RunID, handle.SessionID)
			opening.Source = events.SourceSystem
			opening.Content = "session created"
			if !writeFrame(w, opening) {
				return
			}
		}

		for event := range handle.Events {
			if !writeFrame(w, event) {
				return
			}
			if event.Type == events.TypeDone {
				return
			}
		}
	}))

	return nil
}

// writeFrame pushes one SSE data frame and flushes it immediately; a false
// return means the client is gone.
func writeFrame(w *bufio.Writer, event events.Event) bool {
	payload, err := json.Marshal(event)
	if err != nil {
		return true
	}
	if _, err := w.WriteString("data: " + string(payload) + "\n\n"); err != nil {
		return false
	}
	return w.Flush() == nil
}

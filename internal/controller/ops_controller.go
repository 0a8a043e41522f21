package controller

import (
	"strconv"

	"deep-research-be/internal/pkg/logger"
	"deep-research-be/internal/pkg/serverutils"

	"github.com/gofiber/fiber/v2"
)

type IOpsController interface {
	RegisterRoutes(r fiber.Router)
	GetLogs(ctx *fiber.Ctx) error
	GetLogDetail(ctx *fiber.Ctx) error
}

// opsController exposes the system log for operators debugging research runs.
type opsController struct {
	log logger.ILogger
}

func NewOpsController(log logger.ILogger) IOpsController {
	return &opsController{
		log: log,
	}
}

func (c *opsController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/ops/v1")
	h.Get("/logs", c.GetLogs)
	h.Get("/logs/:id", c.GetLogDetail)
}

func (c *opsController) GetLogs(ctx *fiber.Ctx) error {
	page, _ := strconv.Atoi(ctx.Query("page", "1"))
	limit, _ := strconv.Atoi(ctx.Query("limit", "50"))
	level := ctx.Query("level", "")
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 500 {
		limit = 50
	}

	logs, err := c.log.GetLogs(level, limit, (page-1)*limit)
	if err != nil {
		return ctx.Status(fiber.StatusInternalServerError).JSON(serverutils.ErrorResponse(500, err.Error()))
	}
	return ctx.JSON(serverutils.SuccessResponse("System logs", logs))
}

func (c *opsController) GetLogDetail(ctx *fiber.Ctx) error {
	logId := ctx.Params("id") // Log ID is a string (MD5 hash), not UUID

	entry, err := c.log.GetLogById(logId)
	if err != nil {
		return ctx.Status(fiber.StatusNotFound).JSON(serverutils.ErrorResponse(404, "Log not found"))
	}
	return ctx.JSON(serverutils.SuccessResponse("Log detail", entry))
}

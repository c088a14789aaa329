package controller

import (
	"errors"

	"ma-assistant/internal/dto"
	"ma-assistant/pkg/agent"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

type IChatController interface {
	RegisterRoutes(r fiber.Router)
	Chat(ctx *fiber.Ctx) error
	Health(ctx *fiber.Ctx) error
}

type chatController struct {
	orchestrator *agent.Orchestrator
	validate     *validator.Validate
}

func NewChatController(orchestrator *agent.Orchestrator) IChatController {
	return &chatController{
		orchestrator: orchestrator,
		validate:     validator.New(),
	}
}

func (c *chatController) RegisterRoutes(r fiber.Router) {
	v1 := r.Group("/v1")
	v1.Post("/chat", c.Chat)
	v1.Get("/health", c.Health)
}

// Chat runs one full assistant turn for the posted query. Turns are
// serialized by the orchestrator; concurrent requests queue up.
func (c *chatController) Chat(ctx *fiber.Ctx) error {
	var req dto.ChatRequest
	if err := ctx.BodyParser(&req); err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid request body"})
	}
	if err := c.validate.Struct(req); err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "query is required"})
	}

	result, err := c.orchestrator.RunTurn(ctx.UserContext(), req.Query)
	if err != nil {
		if errors.Is(err, agent.ErrResearchTimeout) {
			return ctx.Status(fiber.StatusGatewayTimeout).JSON(dto.ErrorResponse{Error: "research timed out, turn aborted"})
		}
		return ctx.Status(fiber.StatusBadGateway).JSON(dto.ErrorResponse{Error: err.Error()})
	}

	return ctx.JSON(dto.ChatResponse{
		ConversationID: result.ConversationID,
		Answer:         result.Answer,
		Verdict:        result.Verdict,
		Issues:         result.Issues,
		Verified:       result.Verified,
		Revised:        result.Revised,
	})
}

func (c *chatController) Health(ctx *fiber.Ctx) error {
	return ctx.JSON(fiber.Map{"status": "ok"})
}

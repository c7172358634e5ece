package controller

import (
	"context"
	"fmt"
	"time"

	"marketplace-chat-be/internal/dto"
	"marketplace-chat-be/internal/entity"
	"marketplace-chat-be/internal/pkg/serverutils"
	"marketplace-chat-be/internal/service"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type IConversationController interface {
	RegisterRoutes(r fiber.Router, auth fiber.Handler)
	Resolve(ctx *fiber.Ctx) error
	GetAll(ctx *fiber.Ctx) error
	Show(ctx *fiber.Ctx) error
	ListMessages(ctx *fiber.Ctx) error
	SendMessage(ctx *fiber.Ctx) error
}

type conversationController struct {
	conversations service.IConversationService
	messages      service.IMessageService
	timeout       time.Duration
}

func NewConversationController(
	conversations service.IConversationService,
	messages service.IMessageService,
	timeout time.Duration,
) IConversationController {
	return &conversationController{
		conversations: conversations,
		messages:      messages,
		timeout:       timeout,
	}
}

func (c *conversationController) RegisterRoutes(r fiber.Router, auth fiber.Handler) {
	h := r.Group("/chat/v1/conversations")
	h.Use(auth)
	h.Post("", c.Resolve)
	h.Get("", c.GetAll)
	h.Get(":id", c.Show)
	h.Get(":id/messages", c.ListMessages)
	h.Post(":id/messages", c.SendMessage)
}

// opContext bounds store calls so a hung store surfaces as a retryable timeout.
func (c *conversationController) opContext(ctx *fiber.Ctx) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx.UserContext(), c.timeout)
}

func conversationID(ctx *fiber.Ctx) (uuid.UUID, error) {
	id, err := uuid.Parse(ctx.Params("id"))
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: malformed conversation id", entity.ErrInvalidArgument)
	}
	return id, nil
}

func (c *conversationController) Resolve(ctx *fiber.Ctx) error {
	userId, err := serverutils.CurrentUserID(ctx)
	if err != nil {
		return err
	}

	var req dto.ResolveConversationRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fmt.Errorf("%w: %w", entity.ErrInvalidArgument, err)
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	opCtx, cancel := c.opContext(ctx)
	defer cancel()
	id, err := c.conversations.Resolve(opCtx, req.ListingId, req.SellerId, userId)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success resolve conversation", dto.ResolveConversationResponse{Id: id}))
}

func (c *conversationController) GetAll(ctx *fiber.Ctx) error {
	userId, err := serverutils.CurrentUserID(ctx)
	if err != nil {
		return err
	}

	opCtx, cancel := c.opContext(ctx)
	defer cancel()
	details, err := c.conversations.ListForUser(opCtx, userId)
	if err != nil {
		return err
	}

	res := make([]dto.ConversationResponse, 0, len(details))
	for _, d := range details {
		res = append(res, dto.NewConversationResponse(d))
	}
	return ctx.JSON(serverutils.SuccessResponse("Success get all conversations", res))
}

func (c *conversationController) Show(ctx *fiber.Ctx) error {
	userId, err := serverutils.CurrentUserID(ctx)
	if err != nil {
		return err
	}
	id, err := conversationID(ctx)
	if err != nil {
		return err
	}

	opCtx, cancel := c.opContext(ctx)
	defer cancel()
	detail, err := c.conversations.Get(opCtx, id, userId)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success show conversation", dto.NewConversationResponse(detail)))
}

func (c *conversationController) ListMessages(ctx *fiber.Ctx) error {
	userId, err := serverutils.CurrentUserID(ctx)
	if err != nil {
		return err
	}
	id, err := conversationID(ctx)
	if err != nil {
		return err
	}

	opCtx, cancel := c.opContext(ctx)
	defer cancel()
	messages, err := c.messages.List(opCtx, id, userId)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success get messages", dto.NewMessageResponses(messages)))
}

func (c *conversationController) SendMessage(ctx *fiber.Ctx) error {
	userId, err := serverutils.CurrentUserID(ctx)
	if err != nil {
		return err
	}
	id, err := conversationID(ctx)
	if err != nil {
		return err
	}

	var req dto.SendMessageRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fmt.Errorf("%w: %w", entity.ErrInvalidArgument, err)
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	opCtx, cancel := c.opContext(ctx)
	defer cancel()
	msg, err := c.messages.Append(opCtx, id, userId, req.Content, req.ClientNonce)
	if err != nil {
		return err
	}

	return ctx.Status(fiber.StatusCreated).JSON(serverutils.SuccessResponse("Success send message", dto.NewMessageResponse(*msg)))
}

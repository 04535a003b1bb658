package controller

import (
	"errors"
	"time"

	"sdm-platform-be/internal/dto"
	"sdm-platform-be/internal/pkg/serverutils"
	"sdm-platform-be/internal/service"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
)

type IConversationController interface {
	RegisterRoutes(r fiber.Router, auth fiber.Handler)
	SendMessage(ctx *fiber.Ctx) error
	InitiatePoint(ctx *fiber.Ctx) error
	History(ctx *fiber.Ctx) error
	DeleteThread(ctx *fiber.Ctx) error
	ForgetMe(ctx *fiber.Ctx) error
}

type ConversationControllerConfig struct {
	// MessagesPerMinute caps message submissions per user. Zero disables the limit.
	MessagesPerMinute int
}

type conversationController struct {
	service service.ITurnService
	cfg     ConversationControllerConfig
}

func NewConversationController(service service.ITurnService, cfg ConversationControllerConfig) IConversationController {
	return &conversationController{service: service, cfg: cfg}
}

func (c *conversationController) RegisterRoutes(r fiber.Router, auth fiber.Handler) {
	h := r.Group("/conversation/v1")
	h.Use(auth)

	send := []fiber.Handler{}
	if c.cfg.MessagesPerMinute > 0 {
		send = append(send, limiter.New(limiter.Config{
			Max:        c.cfg.MessagesPerMinute,
			Expiration: time.Minute,
			KeyGenerator: func(ctx *fiber.Ctx) string {
				return userID(ctx)
			},
			LimitReached: func(ctx *fiber.Ctx) error {
				return ctx.Status(fiber.StatusTooManyRequests).JSON(serverutils.ErrorResponse(fiber.StatusTooManyRequests, "Too many messages, slow down"))
			},
		}))
	}
	h.Post(":threadId/messages", append(send, c.SendMessage)...)
	h.Post(":threadId/points/:pointSlug", c.InitiatePoint)
	h.Get(":threadId/history", c.History)
	h.Delete(":threadId", c.DeleteThread)

	m := r.Group("/memory/v1")
	m.Use(auth)
	m.Delete("me", c.ForgetMe)
}

func (c *conversationController) SendMessage(ctx *fiber.Ctx) error {
	var req dto.SendMessageRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.service.SendMessage(ctx.UserContext(), userID(ctx), username(ctx), ctx.Params("threadId"), &req)
	if err != nil {
		return toHTTPError(err)
	}
	return ctx.Status(fiber.StatusAccepted).JSON(serverutils.SuccessResponse("Message queued", res))
}

func (c *conversationController) InitiatePoint(ctx *fiber.Ctx) error {
	var req dto.InitiatePointRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.service.RequestConversationPoint(ctx.UserContext(), userID(ctx), ctx.Params("threadId"), ctx.Params("pointSlug"), &req)
	if err != nil {
		return toHTTPError(err)
	}
	return ctx.Status(fiber.StatusAccepted).JSON(serverutils.SuccessResponse("Conversation point queued", res))
}

func (c *conversationController) History(ctx *fiber.Ctx) error {
	res, err := c.service.GetHistory(ctx.UserContext(), userID(ctx), ctx.Params("threadId"))
	if err != nil {
		return toHTTPError(err)
	}
	return ctx.JSON(serverutils.SuccessResponse("Success get history", res))
}

func (c *conversationController) DeleteThread(ctx *fiber.Ctx) error {
	if err := c.service.DeleteThread(ctx.UserContext(), userID(ctx), ctx.Params("threadId")); err != nil {
		return toHTTPError(err)
	}
	return ctx.JSON(serverutils.SuccessResponse[any]("Success delete thread", nil))
}

func (c *conversationController) ForgetMe(ctx *fiber.Ctx) error {
	res, err := c.service.ForgetUser(ctx.UserContext(), userID(ctx))
	if err != nil {
		return toHTTPError(err)
	}
	return ctx.JSON(serverutils.SuccessResponse("Success delete memories", res))
}

func toHTTPError(err error) error {
	switch {
	case errors.Is(err, service.ErrThreadNotFound):
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrThreadForbidden):
		return fiber.NewError(fiber.StatusForbidden, err.Error())
	case errors.Is(err, service.ErrPointNotFound):
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrJourneyNotFound):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	return err
}

func userID(ctx *fiber.Ctx) string {
	id, _ := ctx.Locals("user_id").(string)
	return id
}

func username(ctx *fiber.Ctx) string {
	name, _ := ctx.Locals("username").(string)
	return name
}

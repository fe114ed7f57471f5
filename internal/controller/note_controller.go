package controller

import (
	"errors"

	"collab-notes-be/internal/dto"
	"collab-notes-be/internal/pkg/logger"
	"collab-notes-be/internal/pkg/serverutils"
	"collab-notes-be/internal/service"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type NoteController struct {
	noteService service.INoteService
	logger      logger.ILogger
}

func NewNoteController(noteService service.INoteService, log logger.ILogger) *NoteController {
	return &NoteController{
		noteService: noteService,
		logger:      log,
	}
}

func (c *NoteController) RegisterRoutes(router fiber.Router) {
	notes := router.Group("/note/v1", serverutils.JwtMiddleware)
	notes.Post("/", c.Create)
	notes.Get("/", c.List)
	notes.Get("/:id", c.Show)
	notes.Delete("/:id", c.Delete)
}

func (c *NoteController) currentUser(ctx *fiber.Ctx) (uuid.UUID, error) {
	raw, ok := ctx.Locals("user_id").(string)
	if !ok {
		return uuid.Nil, fiber.ErrUnauthorized
	}
	userId, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fiber.ErrUnauthorized
	}
	return userId, nil
}

func (c *NoteController) Create(ctx *fiber.Ctx) error {
	userId, err := c.currentUser(ctx)
	if err != nil {
		return err
	}

	var req dto.CreateNoteRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}
	if err := serverutils.ValidateRequest(&req); err != nil {
		return err
	}

	res, err := c.noteService.Create(ctx.Context(), userId, &req)
	if err != nil {
		return c.mapError(err)
	}

	return ctx.Status(fiber.StatusCreated).JSON(serverutils.SuccessResponse("Note created", res))
}

func (c *NoteController) Show(ctx *fiber.Ctx) error {
	userId, err := c.currentUser(ctx)
	if err != nil {
		return err
	}

	id, err := uuid.Parse(ctx.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid note id")
	}

	res, err := c.noteService.Show(ctx.Context(), userId, id)
	if err != nil {
		return c.mapError(err)
	}

	return ctx.JSON(serverutils.SuccessResponse("Note retrieved", res))
}

func (c *NoteController) List(ctx *fiber.Ctx) error {
	userId, err := c.currentUser(ctx)
	if err != nil {
		return err
	}

	res, err := c.noteService.List(ctx.Context(), userId)
	if err != nil {
		return c.mapError(err)
	}

	return ctx.JSON(serverutils.SuccessResponse("Notes retrieved", res))
}

func (c *NoteController) Delete(ctx *fiber.Ctx) error {
	userId, err := c.currentUser(ctx)
	if err != nil {
		return err
	}

	id, err := uuid.Parse(ctx.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid note id")
	}

	if err := c.noteService.Delete(ctx.Context(), userId, id); err != nil {
		return c.mapError(err)
	}

	return ctx.JSON(serverutils.SuccessResponse("Note deleted", fiber.Map{"id": id}))
}

func (c *NoteController) mapError(err error) error {
	switch {
	case errors.Is(err, service.ErrNoteNotFound):
		return fiber.NewError(fiber.StatusNotFound, "Note not found")
	case errors.Is(err, service.ErrAccessDenied):
		return fiber.NewError(fiber.StatusForbidden, "Access denied")
	default:
		c.logger.Error("NoteController", "Unhandled service error", map[string]interface{}{"error": err.Error()})
		return fiber.ErrInternalServerError
	}
}

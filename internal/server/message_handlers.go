package server

import (
	"homehive/internal/middleware"
	"homehive/internal/models"
	"homehive/internal/service"

	"github.com/gofiber/fiber/v2"
)

// GetInbox handles GET /api/messages
// @Summary Inbox
// @Description One entry per peer with the latest message, newest first
// @Tags messages
// @Produce json
// @Security BearerAuth
// @Success 200 {array} models.ConversationSummary
// @Router /messages [get]
func (s *Server) GetInbox(c *fiber.Ctx) error {
	inbox, err := s.messagingService.Inbox(c.UserContext(), middleware.UserID(c))
	if err != nil {
		return mapServiceError(c, err)
	}
	return c.JSON(inbox)
}

// GetConversation handles GET /api/messages/:peerId
// @Summary Load a conversation
// @Tags messages
// @Produce json
// @Security BearerAuth
// @Param peerId path int true "Peer user ID"
// @Success 200 {array} models.Message
// @Failure 400 {object} models.ErrorResponse
// @Router /messages/{peerId} [get]
func (s *Server) GetConversation(c *fiber.Ctx) error {
	peerID, err := s.parseID(c, "peerId")
	if err != nil {
		return nil
	}
	messages, err := s.messagingService.LoadConversation(c.UserContext(), middleware.UserID(c), peerID)
	if err != nil {
		return mapServiceError(c, err)
	}
	return c.JSON(messages)
}

// SendMessage handles POST /api/messages/:peerId with a JSON body ({"text"}) or a
// multipart form carrying text and an optional "media" file.
// @Summary Send a message
// @Tags messages
// @Accept json,multipart/form-data
// @Produce json
// @Security BearerAuth
// @Param peerId path int true "Peer user ID"
// @Param text formData string false "Message text"
// @Param media formData file false "Photo or video"
// @Success 201 {object} models.Message
// @Failure 400 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /messages/{peerId} [post]
func (s *Server) SendMessage(c *fiber.Ctx) error {
	peerID, err := s.parseID(c, "peerId")
	if err != nil {
		return nil
	}
	var req struct {
		Text string `json:"text" form:"text"`
	}
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}
	media, err := formFile(c, "media")
	if err != nil {
		return mapServiceError(c, err)
	}

	ctx := c.UserContext()
	msg, err := s.messagingService.SendMessage(ctx, service.SendMessageInput{
		SenderID:   middleware.UserID(c),
		ReceiverID: peerID,
		Text:       req.Text,
		Media:      media,
	})
	if err != nil {
		return mapServiceError(c, err)
	}

	s.publishMessageCreated(ctx, msg)
	return c.Status(fiber.StatusCreated).JSON(msg)
}

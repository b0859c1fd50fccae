package http

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	svix "github.com/svix/svix-webhooks/go"

	"todo-service/internal/service"
)

const maxWebhookBodyBytes = int64(65536)

// WebhookHandler receives signed identity-provider lifecycle events.
type WebhookHandler struct {
	provisioner service.ProvisioningService
	webhook     *svix.Webhook
	logger      *logrus.Logger
}

func NewWebhookHandler(provisioner service.ProvisioningService, signingSecret string, logger *logrus.Logger) (*WebhookHandler, error) {
	wh, err := svix.NewWebhook(signingSecret)
	if err != nil {
		return nil, fmt.Errorf("init webhook verifier: %w", err)
	}
	return &WebhookHandler{
		provisioner: provisioner,
		webhook:     wh,
		logger:      logger,
	}, nil
}

func (h *WebhookHandler) Register(router *gin.Engine) {
	router.POST("/api/webhook/register", h.handleEvent)
}

type providerEvent struct {
	Type string       `json:"type"`
	Data providerUser `json:"data"`
}

type providerUser struct {
	ID                    string         `json:"id"`
	PrimaryEmailAddressID string         `json:"primary_email_address_id"`
	EmailAddresses        []emailAddress `json:"email_addresses"`
}

type emailAddress struct {
	ID           string `json:"id"`
	EmailAddress string `json:"email_address"`
}

// primaryEmail resolves the address flagged primary among the user's
// linked email identities.
func (u providerUser) primaryEmail() (string, bool) {
	for _, email := range u.EmailAddresses {
		if email.ID == u.PrimaryEmailAddressID {
			return email.EmailAddress, true
		}
	}
	return "", false
}

func (h *WebhookHandler) handleEvent(c *gin.Context) {
	for _, header := range []string{"svix-id", "svix-timestamp", "svix-signature"} {
		if c.GetHeader(header) == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "missing svix headers"})
			return
		}
	}

	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBodyBytes))
	if err != nil {
		h.logger.WithError(err).Warn("webhook body read failed")
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}

	if err := h.webhook.Verify(body, c.Request.Header); err != nil {
		h.logger.WithError(err).Warn("webhook signature rejected")
		c.JSON(http.StatusBadRequest, gin.H{"error": "signature verification failed"})
		return
	}

	var event providerEvent
	if err := json.Unmarshal(body, &event); err != nil {
		h.logger.WithError(err).Warn("webhook payload unmarshal failed")
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}

	switch event.Type {
	case "user.created":
		email, ok := event.Data.primaryEmail()
		if !ok {
			c.JSON(http.StatusBadRequest, gin.H{"error": "no primary email found"})
			return
		}
		if _, err := h.provisioner.ProvisionUser(c.Request.Context(), event.Data.ID, email); err != nil {
			h.logger.WithError(err).WithField("user_id", event.Data.ID).Error("provision user failed")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create user"})
			return
		}
		h.logger.WithField("user_id", event.Data.ID).Info("provisioned user")
	default:
		// Other lifecycle events are acknowledged without action.
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

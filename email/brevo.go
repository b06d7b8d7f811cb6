// Package email sends transactional mail through the Brevo HTTP API.
package email

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"shop-svc/config"
	"shop-svc/middleware"
	"shop-svc/models"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

type Client struct {
	baseURL     string
	apiKey      string
	senderEmail string
	senderName  string
	httpClient  *http.Client
	logger      *zap.Logger
}

func NewClient(cfg config.BrevoConfig, logger *zap.Logger) *Client {
	if cfg.APIKey == "" {
		logger.Warn("BREVO_API_KEY not set, emails will be skipped")
	}
	return &Client{
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:      cfg.APIKey,
		senderEmail: cfg.SenderEmail,
		senderName:  cfg.SenderName,
		httpClient:  &http.Client{Timeout: cfg.Timeout},
		logger:      logger,
	}
}

type contact struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

type sendRequest struct {
	Sender      contact   `json:"sender"`
	To          []contact `json:"to"`
	Subject     string    `json:"subject"`
	HTMLContent string    `json:"htmlContent"`
}

// Notify renders and sends the message. It is the direct-delivery notifier
// and the sink behind the queue workers.
func (c *Client) Notify(ctx context.Context, msg models.NotificationMessage) error {
	switch msg.Kind {
	case models.NotificationOrderConfirmation:
		if msg.Order == nil {
			return fmt.Errorf("order confirmation for %s has no order", msg.Email)
		}
		return c.SendOrderConfirmation(ctx, msg.Email, msg.FirstName, *msg.Order)
	case models.NotificationWelcome:
		return c.SendWelcome(ctx, msg.Email, msg.FirstName)
	}
	return fmt.Errorf("unknown notification kind %q", msg.Kind)
}

func (c *Client) SendOrderConfirmation(ctx context.Context, to, firstName string, order models.OrderSummary) error {
	html, err := render(orderTmpl, templateData{
		Title: "Order Confirmation",
		Brand: strings.ToUpper(c.senderName),
		Name:  firstName,
		Order: &order,
	})
	if err != nil {
		return fmt.Errorf("failed to render order confirmation: %w", err)
	}
	return c.send(ctx, models.NotificationOrderConfirmation, contact{Email: to, Name: firstName},
		fmt.Sprintf("Order Confirmation - Order #%d", order.OrderID), html)
}

func (c *Client) SendWelcome(ctx context.Context, to, name string) error {
	html, err := render(welcomeTmpl, templateData{
		Title: "Welcome",
		Brand: strings.ToUpper(c.senderName),
		Name:  name,
	})
	if err != nil {
		return fmt.Errorf("failed to render welcome email: %w", err)
	}
	return c.send(ctx, models.NotificationWelcome, contact{Email: to, Name: name},
		fmt.Sprintf("Welcome to %s!", c.senderName), html)
}

func (c *Client) send(ctx context.Context, kind string, to contact, subject, html string) error {
	ctx, span := otel.Tracer("shop-service").Start(ctx, "email.Send")
	defer span.End()
	span.SetAttributes(attribute.String("email.kind", kind))

	if c.apiKey == "" {
		c.logger.Warn("Email service not configured, skipping", zap.String("kind", kind), zap.String("to", to.Email))
		middleware.RecordNotificationSent("email", "skipped")
		return nil
	}

	payload, err := json.Marshal(sendRequest{
		Sender:      contact{Email: c.senderEmail, Name: c.senderName},
		To:          []contact{to},
		Subject:     subject,
		HTMLContent: html,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal email: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/smtp/email", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to build email request: %w", err)
	}
	req.Header.Set("api-key", c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		span.RecordError(err)
		middleware.RecordNotificationSent("email", "failed")
		return fmt.Errorf("failed to send email: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		err := fmt.Errorf("email provider returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
		span.RecordError(err)
		middleware.RecordNotificationSent("email", "failed")
		return err
	}

	middleware.RecordNotificationSent("email", "sent")
	c.logger.Info("Email sent",
		zap.String("trace_id", middleware.GetTraceID(ctx)),
		zap.String("kind", kind),
		zap.String("to", to.Email),
	)
	return nil
}

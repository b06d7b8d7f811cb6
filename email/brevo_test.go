package email

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"shop-svc/config"
	"shop-svc/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func newTestClient(t *testing.T, apiKey string, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(config.BrevoConfig{
		BaseURL:     srv.URL,
		APIKey:      apiKey,
		SenderEmail: "noreply@bebrand.com",
		SenderName:  "BeBrand",
		Timeout:     time.Second,
	}, zaptest.NewLogger(t))
}

func sampleOrder() models.OrderSummary {
	return models.OrderSummary{
		OrderID: 17,
		Items: []models.OrderItem{{
			ProductName: "Linen <Shirt>",
			Quantity:    3,
			UnitPrice:   decimal.NewFromInt(10),
			Subtotal:    decimal.NewFromInt(30),
		}},
		TotalAmount: decimal.NewFromInt(30),
		ShippingAddress: &models.ShippingAddress{
			Street: "1 Main St", City: "Lagos", State: "LA", ZipCode: "100001", Country: "NG",
		},
	}
}

func TestSendOrderConfirmation(t *testing.T) {
	var got sendRequest
	client := newTestClient(t, "key-123", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/smtp/email", r.URL.Path)
		assert.Equal(t, "key-123", r.Header.Get("api-key"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"messageId":"<x@brevo>"}`))
	})

	err := client.Notify(context.Background(), models.NotificationMessage{
		Kind:      models.NotificationOrderConfirmation,
		Email:     "a@x.com",
		FirstName: "Ada",
		Order:     func() *models.OrderSummary { o := sampleOrder(); return &o }(),
	})
	require.NoError(t, err)

	assert.Equal(t, "Order Confirmation - Order #17", got.Subject)
	require.Len(t, got.To, 1)
	assert.Equal(t, "a@x.com", got.To[0].Email)
	assert.Contains(t, got.HTMLContent, "30.00")
	assert.Contains(t, got.HTMLContent, "Lagos")
	assert.Contains(t, got.HTMLContent, "Linen &lt;Shirt&gt;")
}

func TestSendWelcome(t *testing.T) {
	var got sendRequest
	client := newTestClient(t, "key-123", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusCreated)
	})

	require.NoError(t, client.SendWelcome(context.Background(), "b@x.com", "Bola"))
	assert.Equal(t, "Welcome to BeBrand!", got.Subject)
	assert.True(t, strings.Contains(got.HTMLContent, "Welcome, Bola!"))
}

func TestSend_ProviderErrorIsReturned(t *testing.T) {
	client := newTestClient(t, "key-123", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"code":"unauthorized"}`))
	})

	err := client.SendWelcome(context.Background(), "b@x.com", "Bola")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
}

func TestSend_SkippedWithoutAPIKey(t *testing.T) {
	called := false
	client := newTestClient(t, "", func(w http.ResponseWriter, r *http.Request) {
		called = true
	})

	assert.NoError(t, client.SendWelcome(context.Background(), "b@x.com", "Bola"))
	assert.False(t, called)
}

func TestNotify_RejectsUnknownKind(t *testing.T) {
	client := newTestClient(t, "key-123", func(w http.ResponseWriter, r *http.Request) {})
	assert.Error(t, client.Notify(context.Background(), models.NotificationMessage{Kind: "sms"}))
	assert.Error(t, client.Notify(context.Background(), models.NotificationMessage{Kind: models.NotificationOrderConfirmation}))
}

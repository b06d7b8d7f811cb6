package workflow

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"shop-svc/middleware"
	"shop-svc/models"
	"shop-svc/money"
	"shop-svc/paystack"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

type InitializePaymentInput struct {
	OrderID int
	// Email overrides the order's contact email when set.
	Email   string
	UserID  *int
	IsAdmin bool
}

type PaymentSession struct {
	OrderID          int             `json:"order_id"`
	Reference        string          `json:"reference"`
	AuthorizationURL string          `json:"authorization_url"`
	AccessCode       string          `json:"access_code"`
	AmountMinor      int64           `json:"amount_minor"`
	Amount           decimal.Decimal `json:"amount"`
	Currency         string          `json:"currency"`
}

func sessionFrom(p *models.Payment) *PaymentSession {
	s := &PaymentSession{
		Reference:        p.Reference,
		AuthorizationURL: p.AuthorizationURL,
		AccessCode:       p.AccessCode,
		AmountMinor:      p.AmountMinor,
		Amount:           money.FromMinor(p.AmountMinor),
		Currency:         p.Currency,
	}
	if p.OrderID != nil {
		s.OrderID = *p.OrderID
	}
	return s
}

// InitializePayment opens a gateway transaction for a pending order and
// records the attempt. Asking again while the current attempt is pending
// returns the same session. After a failed or abandoned attempt a new
// reference replaces the old one; the old attempt row is kept.
func (w *Workflow) InitializePayment(ctx context.Context, in InitializePaymentInput) (*PaymentSession, error) {
	ctx, span := otel.Tracer("shop-service").Start(ctx, "workflow.InitializePayment")
	defer span.End()
	span.SetAttributes(attribute.Int("order.id", in.OrderID))

	order, err := w.orders.GetOrder(ctx, in.OrderID)
	if err != nil {
		return nil, err
	}
	if !in.IsAdmin && order.UserID != nil && (in.UserID == nil || *in.UserID != *order.UserID) {
		return nil, models.ErrOrderNotFound
	}
	if order.Status != models.OrderStatusPending {
		return nil, fmt.Errorf("%w: order %d is %s", ErrOrderNotPayable, order.ID, order.Status)
	}
	var previous string
	if order.PaymentReference != nil {
		session, retry, err := w.existingSession(ctx, *order.PaymentReference)
		if !retry {
			return session, err
		}
		previous = *order.PaymentReference
	}

	amount := money.ToMinor(order.TotalAmount)
	if amount <= 0 {
		return nil, badRequest("order %d has nothing to pay", order.ID)
	}
	email := strings.TrimSpace(in.Email)
	if email == "" {
		email = order.Contact.Email
	}

	metadata := map[string]interface{}{"order_id": order.ID}
	if order.UserID != nil {
		metadata["user_id"] = *order.UserID
	}
	reference := paystack.NewReference(order.ID)
	result, err := w.gateway.Initialize(ctx, paystack.InitializeRequest{
		Email:       email,
		AmountMinor: amount,
		Reference:   reference,
		Currency:    w.gateway.Currency(),
		Metadata:    metadata,
	})
	if err != nil {
		span.RecordError(err)
		w.logger.Error("Failed to initialize payment",
			zap.String("trace_id", middleware.GetTraceID(ctx)),
			zap.Int("order_id", order.ID),
			zap.Error(err),
		)
		return nil, gatewayError(err, true)
	}
	if result.Reference != "" {
		reference = result.Reference
	}

	var created *models.Payment
	err = w.tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		if previous == "" {
			err = w.orders.SetPaymentReference(ctx, order.ID, reference)
		} else {
			err = w.orders.ReplacePaymentReference(ctx, order.ID, previous, reference)
		}
		if err != nil {
			return err
		}
		created, err = w.payments.CreatePayment(ctx, &models.Payment{
			OrderID:          &order.ID,
			UserID:           order.UserID,
			Email:            email,
			AmountMinor:      amount,
			Currency:         w.gateway.Currency(),
			Reference:        reference,
			Status:           models.PaymentStatusPending,
			AuthorizationURL: result.AuthorizationURL,
			AccessCode:       result.AccessCode,
		})
		return err
	})
	if errors.Is(err, models.ErrPaymentReferenceSet) {
		// A concurrent request for the same order got there first.
		current, gerr := w.orders.GetOrder(ctx, order.ID)
		if gerr != nil {
			return nil, gerr
		}
		if current.PaymentReference == nil {
			return nil, err
		}
		session, _, serr := w.existingSession(ctx, *current.PaymentReference)
		if session == nil && serr == nil {
			serr = err
		}
		return session, serr
	}
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	w.logger.Info("Payment initialized",
		zap.String("trace_id", middleware.GetTraceID(ctx)),
		zap.Int("order_id", order.ID),
		zap.String("reference", reference),
		zap.String("replaced_reference", previous),
		zap.Int64("amount_minor", amount),
	)
	return sessionFrom(created), nil
}

// existingSession resolves the order's current attempt. retry reports that
// the attempt ended without payment and a new one may replace it.
func (w *Workflow) existingSession(ctx context.Context, reference string) (session *PaymentSession, retry bool, err error) {
	p, err := w.payments.GetPaymentByReference(ctx, reference)
	if err != nil {
		if errors.Is(err, models.ErrPaymentNotFound) {
			return nil, false, models.ErrPaymentReferenceSet
		}
		return nil, false, err
	}
	switch p.Status {
	case models.PaymentStatusPending:
		return sessionFrom(p), false, nil
	case models.PaymentStatusFailed, models.PaymentStatusAbandoned:
		return nil, true, nil
	}
	return nil, false, fmt.Errorf("%w: payment %s is %s", models.ErrPaymentReferenceSet, reference, p.Status)
}

// gatewayError maps gateway client errors onto workflow errors. A rejected
// initialize is the caller's fault; a rejected verify is not.
func gatewayError(err error, initializing bool) error {
	switch {
	case errors.Is(err, paystack.ErrNotConfigured):
		return fmt.Errorf("%w: %v", ErrGatewayMisconfigured, err)
	case errors.Is(err, paystack.ErrUnavailable):
		return fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	case errors.Is(err, paystack.ErrRejected):
		if initializing {
			return fmt.Errorf("%w: %v", ErrBadRequest, err)
		}
		return fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}
	return err
}

type ReconcileOutcome string

const (
	OutcomeTransitioned     ReconcileOutcome = "transitioned"
	OutcomeAlreadyProcessed ReconcileOutcome = "already_processed"
	OutcomeNoOrder          ReconcileOutcome = "no_order"
	OutcomeOrderNotPayable  ReconcileOutcome = "order_not_payable"
)

// ReconcileResult is reported for every successful payment, whether or not
// this call was the one that moved the order.
type ReconcileResult struct {
	Reference   string           `json:"reference"`
	OrderID     *int             `json:"order_id,omitempty"`
	Outcome     ReconcileOutcome `json:"outcome"`
	AmountMinor int64            `json:"amount_minor"`
	Amount      decimal.Decimal  `json:"amount"`
	PaidAt      *time.Time       `json:"paid_at,omitempty"`
	Channel     string           `json:"channel,omitempty"`
}

// ReconcilePayment asks the gateway about reference and reflects a success
// on the order. Calling it any number of times, concurrently or not, moves
// the order from pending to processing at most once.
func (w *Workflow) ReconcilePayment(ctx context.Context, reference string) (*ReconcileResult, error) {
	reference = strings.TrimSpace(reference)
	if reference == "" {
		return nil, badRequest("payment reference is required")
	}

	// Callers racing on one reference share a single gateway round trip.
	// The shared call outlives any one caller's cancellation.
	ch := w.inflight.DoChan(reference, func() (interface{}, error) {
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), w.reconcileTimeout)
		defer cancel()
		return w.reconcile(rctx, reference)
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		out := *res.Val.(*ReconcileResult)
		return &out, nil
	}
}

func (w *Workflow) reconcile(ctx context.Context, reference string) (*ReconcileResult, error) {
	ctx, span := otel.Tracer("shop-service").Start(ctx, "workflow.ReconcilePayment")
	defer span.End()
	span.SetAttributes(attribute.String("payment.reference", reference))

	v, err := w.gateway.Verify(ctx, reference)
	if err != nil {
		span.RecordError(err)
		if errors.Is(err, paystack.ErrUnknownReference) {
			middleware.RecordPaymentReconciled("failed")
			return nil, &PaymentFailedError{Reference: reference, Status: "unknown_reference"}
		}
		middleware.RecordPaymentReconciled("gateway_unavailable")
		w.logger.Warn("Payment verification unavailable",
			zap.String("reference", reference),
			zap.Error(err),
		)
		return nil, gatewayError(err, false)
	}

	switch v.Status {
	case paystack.StatusPending:
		middleware.RecordPaymentReconciled("pending")
		return nil, fmt.Errorf("%w: %s is %s", ErrPaymentPending, reference, v.RawStatus)
	case paystack.StatusFailed:
		w.recordFailure(ctx, reference, v)
		middleware.RecordPaymentReconciled("failed")
		return nil, &PaymentFailedError{Reference: reference, Status: v.RawStatus}
	}

	attempt, err := w.payments.GetPaymentByReference(ctx, reference)
	if err != nil && !errors.Is(err, models.ErrPaymentNotFound) {
		return nil, err
	}
	if errors.Is(err, models.ErrPaymentNotFound) {
		attempt = nil
	}

	result := &ReconcileResult{
		Reference:   reference,
		AmountMinor: v.AmountMinor,
		Amount:      money.FromMinor(v.AmountMinor),
		PaidAt:      v.PaidAt,
		Channel:     v.Channel,
	}

	orderID, ok := v.OrderID()
	if !ok && attempt != nil && attempt.OrderID != nil {
		orderID, ok = *attempt.OrderID, true
	}
	if !ok {
		w.logger.Error("Successful payment carries no order id",
			zap.String("reference", reference),
			zap.Int64("amount_minor", v.AmountMinor),
		)
		result.Outcome = OutcomeNoOrder
		middleware.RecordPaymentReconciled(string(result.Outcome))
		return result, nil
	}
	result.OrderID = &orderID
	span.SetAttributes(attribute.Int("order.id", orderID))

	if attempt != nil && attempt.AmountMinor != v.AmountMinor {
		w.logger.Warn("Verified amount differs from initialized amount",
			zap.String("reference", reference),
			zap.Int("order_id", orderID),
			zap.Int64("expected_minor", attempt.AmountMinor),
			zap.Int64("verified_minor", v.AmountMinor),
		)
	}

	var (
		transitioned bool
		order        *models.Order
	)
	err = w.tx.WithinTx(ctx, func(ctx context.Context) error {
		completed := false
		if attempt != nil {
			var err error
			completed, err = w.payments.CompletePayment(ctx, reference, models.PaymentCompletion{
				Status:  models.PaymentStatusSuccess,
				PaidAt:  v.PaidAt,
				Channel: v.Channel,
			})
			if err != nil {
				return err
			}
		}

		var err error
		transitioned, err = w.orders.ConditionalUpdateStatus(ctx, orderID, models.OrderStatusPending, models.OrderStatusProcessing)
		if err != nil {
			return err
		}
		if transitioned || completed {
			if err := w.orders.UpdatePaymentStatus(ctx, orderID, models.PaymentStatusSuccess); err != nil {
				return err
			}
		}
		order, err = w.orders.GetOrder(ctx, orderID)
		return err
	})
	switch {
	case errors.Is(err, models.ErrOrderNotFound):
		w.logger.Error("Successful payment references a missing order",
			zap.String("reference", reference),
			zap.Int("order_id", orderID),
		)
		result.Outcome = OutcomeNoOrder
		middleware.RecordPaymentReconciled(string(result.Outcome))
		return result, nil
	case err != nil:
		span.RecordError(err)
		return nil, err
	}

	switch {
	case transitioned:
		result.Outcome = OutcomeTransitioned
	case order.Status == models.OrderStatusCancelled:
		result.Outcome = OutcomeOrderNotPayable
		w.logger.Warn("Payment succeeded for a cancelled order",
			zap.String("reference", reference),
			zap.Int("order_id", orderID),
		)
	default:
		result.Outcome = OutcomeAlreadyProcessed
	}
	middleware.RecordPaymentReconciled(string(result.Outcome))

	w.logger.Info("Payment reconciled",
		zap.String("trace_id", middleware.GetTraceID(ctx)),
		zap.String("reference", reference),
		zap.Int("order_id", orderID),
		zap.String("outcome", string(result.Outcome)),
	)

	if transitioned {
		w.publish(ctx, order, "order_paid")
	}
	return result, nil
}

// recordFailure closes a pending attempt the gateway reported as failed.
// The order itself is left untouched.
func (w *Workflow) recordFailure(ctx context.Context, reference string, v *paystack.Verification) {
	status := models.PaymentStatusFailed
	if v.RawStatus == string(models.PaymentStatusAbandoned) {
		status = models.PaymentStatusAbandoned
	}
	_, err := w.payments.CompletePayment(ctx, reference, models.PaymentCompletion{
		Status:  status,
		Channel: v.Channel,
	})
	if err != nil && !errors.Is(err, models.ErrPaymentNotFound) {
		w.logger.Error("Failed to record failed payment",
			zap.String("reference", reference),
			zap.Error(err),
		)
	}
}

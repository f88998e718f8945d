package devhub

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"marketplace/internal/logging"
	"marketplace/internal/notifications"
	"marketplace/internal/paypal"
	"marketplace/internal/services"
	"marketplace/internal/store"
)

const (
	msgRefundProcessed = "Refund already processed."
	msgRefundPrevious  = "Refund was previously issued; no action taken."
	msgRefundIssued    = "Refund issued."
	msgRefundDeclined  = "Refund declined."
)

// RefundContext is a purchase that may be refunded.
type RefundContext struct {
	Contribution *store.Contribution `json:"-"`
	Refund       *store.Refund       `json:"-"`
	Transaction  string              `json:"transaction_id"`
	Amount       string              `json:"amount"`
	Processed    bool                `json:"processed"`
	Message      string              `json:"message,omitempty"`
}

// RefundContext loads the purchase identified by txn.
func (s *Service) RefundContext(ctx context.Context, user *store.User, a *store.Addon, txn string) (*RefundContext, error) {
	if err := s.Authorize(ctx, user, a, AccessOwner); err != nil {
		return nil, err
	}
	return s.refundContext(ctx, a, txn)
}

func (s *Service) refundContext(ctx context.Context, a *store.Addon, txn string) (*RefundContext, error) {
	txn = strings.TrimSpace(txn)
	if txn == "" {
		return nil, notFound("refund", "no transaction given")
	}
	c, err := s.store.ContributionByTransaction(ctx, a.ID, txn)
	if errors.Is(err, store.ErrNotFound) {
		return nil, notFound("refund", "no transaction "+txn)
	}
	if err != nil {
		return nil, err
	}
	if c.Type != store.ContribPurchase {
		return nil, notFound("refund", "transaction "+txn+" is not a purchase")
	}
	r, err := s.store.GetRefund(ctx, c.ID)
	if err != nil {
		return nil, err
	}
	rc := &RefundContext{Contribution: c, Refund: r, Transaction: txn, Amount: paypal.FormatAmount(c.AmountCents)}
	if r != nil && r.Status != store.RefundPending {
		rc.Processed = true
		rc.Message = msgRefundProcessed
	}
	return rc, nil
}

// IssueRefund refunds the purchase through PayPal and mails the buyer.
func (s *Service) IssueRefund(ctx context.Context, user *store.User, a *store.Addon, txn string) (string, error) {
	if err := s.Authorize(ctx, user, a, AccessOwner); err != nil {
		return "", err
	}
	rc, err := s.refundContext(ctx, a, txn)
	if err != nil {
		return "", err
	}
	if rc.Processed {
		return "", services.Wrap(services.ErrConflict, "devhub", "refund", msgRefundProcessed, nil)
	}
	if s.paypal == nil {
		return "", services.Wrap(services.ErrConfiguration, "devhub", "refund", "paypal client not configured", nil)
	}
	results, err := s.paypal.Refund(ctx, rc.Contribution.Paykey)
	if err != nil {
		logging.ErrorWithContext(s.log(ctx), "paypal refund failed", "paypal_refund_failed",
			logging.Int64(logging.FieldAddonID, a.ID),
			logging.String("transaction", rc.Transaction),
			logging.Error(err),
		)
		return "", err
	}
	for _, r := range results {
		if r.Status == paypal.RefundAlreadyIssued {
			return msgRefundPrevious, nil
		}
	}
	if err := s.decideRefund(ctx, rc, store.RefundApproved, ""); err != nil {
		return "", err
	}
	if _, err := s.store.CreateContribution(ctx, &store.Contribution{
		AddonID:       a.ID,
		UserID:        rc.Contribution.UserID,
		Type:          store.ContribRefund,
		AmountCents:   -rc.Contribution.AmountCents,
		Currency:      rc.Contribution.Currency,
		TransactionID: rc.Transaction,
		RelatedID:     &rc.Contribution.ID,
	}); err != nil {
		return "", err
	}
	if err := s.logActivity(ctx, store.ActionRefundGranted, a, user, map[string]any{"transaction_id": rc.Transaction}); err != nil {
		return "", err
	}
	if buyer := s.buyer(ctx, rc.Contribution); buyer != nil {
		s.queueMail(ctx, notifications.RefundApproved(buyer.Email, a.Name, rc.Amount, rc.Transaction))
	}
	s.refundEvent(ctx, a, rc, "approved")
	return msgRefundIssued, nil
}

// DeclineRefund rejects the refund request without contacting PayPal.
func (s *Service) DeclineRefund(ctx context.Context, user *store.User, a *store.Addon, txn, reason string) (string, error) {
	if err := s.Authorize(ctx, user, a, AccessOwner); err != nil {
		return "", err
	}
	rc, err := s.refundContext(ctx, a, txn)
	if err != nil {
		return "", err
	}
	if rc.Processed {
		return "", services.Wrap(services.ErrConflict, "devhub", "refund", msgRefundProcessed, nil)
	}
	reason = strings.TrimSpace(reason)
	if err := s.decideRefund(ctx, rc, store.RefundDeclined, reason); err != nil {
		return "", err
	}
	if err := s.logActivity(ctx, store.ActionRefundDeclined, a, user, map[string]any{"transaction_id": rc.Transaction}); err != nil {
		return "", err
	}
	if buyer := s.buyer(ctx, rc.Contribution); buyer != nil {
		s.queueMail(ctx, notifications.RefundDeclined(buyer.Email, a.Name, reason, rc.Transaction))
	}
	s.refundEvent(ctx, a, rc, "declined")
	return msgRefundDeclined, nil
}

// decideRefund moves a pending refund, or records a decided one when the
// buyer never filed a request. Losing a race with another processor is a conflict.
func (s *Service) decideRefund(ctx context.Context, rc *RefundContext, status store.RefundStatus, rejection string) error {
	if rc.Refund == nil {
		now := s.now()
		refund := &store.Refund{ContributionID: rc.Contribution.ID, Status: status, RejectionReason: rejection, RequestedAt: now}
		if status == store.RefundDeclined {
			refund.DeclinedAt = &now
		} else {
			refund.ApprovedAt = &now
		}
		err := s.store.CreateRefund(ctx, refund)
		if errors.Is(err, store.ErrConflict) {
			return services.Wrap(services.ErrConflict, "devhub", "refund", msgRefundProcessed, nil)
		}
		return err
	}
	moved, err := s.store.TransitionRefund(ctx, rc.Contribution.ID, status, rejection)
	if err != nil {
		return err
	}
	if !moved {
		return services.Wrap(services.ErrConflict, "devhub", "refund", msgRefundProcessed, nil)
	}
	return nil
}

func (s *Service) buyer(ctx context.Context, c *store.Contribution) *store.User {
	if c.UserID == nil {
		return nil
	}
	u, err := s.store.GetUser(ctx, *c.UserID)
	if err != nil {
		logging.WarnWithContext(s.log(ctx), "refund buyer lookup failed", "refund_buyer_missing",
			logging.Int64(logging.FieldUserID, *c.UserID),
			logging.Error(err),
		)
		return nil
	}
	return u
}

func (s *Service) refundEvent(ctx context.Context, a *store.Addon, rc *RefundContext, status string) {
	s.log(ctx).Info("refund processed",
		logging.Int64(logging.FieldAddonID, a.ID),
		logging.String("transaction", rc.Transaction),
		logging.String("status", status),
	)
	s.publish(ctx, notifications.EventRefundRequest, notifications.Payload{
		"status":      status,
		"addon":       a.Name,
		"transaction": rc.Transaction,
	})
}

// RefundQueues groups an addon's refunds by status.
type RefundQueues struct {
	Pending  []store.RefundEntry
	Approved []store.RefundEntry
	Instant  []store.RefundEntry
	Declined []store.RefundEntry
}

// Refunds returns the refund queues of a.
func (s *Service) Refunds(ctx context.Context, user *store.User, a *store.Addon) (*RefundQueues, error) {
	if err := s.Authorize(ctx, user, a, AccessOwner); err != nil {
		return nil, err
	}
	entries, err := s.store.RefundsForAddon(ctx, a.ID)
	if err != nil {
		return nil, fmt.Errorf("refunds for %d: %w", a.ID, err)
	}
	q := &RefundQueues{
		Pending:  []store.RefundEntry{},
		Approved: []store.RefundEntry{},
		Instant:  []store.RefundEntry{},
		Declined: []store.RefundEntry{},
	}
	for _, e := range entries {
		switch e.Refund.Status {
		case store.RefundPending:
			q.Pending = append(q.Pending, e)
		case store.RefundApproved:
			q.Approved = append(q.Approved, e)
		case store.RefundApprovedInstant:
			q.Instant = append(q.Instant, e)
		case store.RefundDeclined:
			q.Declined = append(q.Declined, e)
		}
	}
	return q, nil
}

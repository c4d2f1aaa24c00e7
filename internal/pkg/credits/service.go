package credits

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/busbuskimki/tarotpay/app/models"
	"github.com/busbuskimki/tarotpay/internal/pkg/shopier"
)

// Outcome is the terminal state of an accepted delivery.
type Outcome string

const (
	// OutcomeGranted means credits were granted for a fresh payment.
	OutcomeGranted Outcome = "granted"
	// OutcomeDuplicate means the payment was already processed; nothing
	// changed and the provider gets the same success response again.
	OutcomeDuplicate Outcome = "duplicate"
	// OutcomeIgnored means the notification reported a non-success status;
	// acknowledged without mutation.
	OutcomeIgnored Outcome = "ignored"
)

// Receipt summarizes what a delivery did, for the HTTP response and the
// notification mail.
type Receipt struct {
	Outcome        Outcome
	OrderRef       string
	UserID         string
	AccountName    string
	AccountEmail   string
	PackageID      string
	PackageName    string
	CreditsGranted int64
	NewBalance     int64
}

// Notifier is the fire-and-forget collaborator invoked after processing.
// Failures must never affect the webhook response.
type Notifier interface {
	PaymentSucceeded(receipt *Receipt, notification *shopier.PaymentNotification)
	PaymentFailed(notification *shopier.PaymentNotification)
}

// Service converts validated payment notifications into credit grants.
type Service struct {
	repo     Repository
	notifier Notifier
	log      *logrus.Logger
}

// NewService creates a credits service from an injected repository.
func NewService(repo Repository, notifier Notifier, log *logrus.Logger) *Service {
	return &Service{repo: repo, notifier: notifier, log: log}
}

// NewServiceFromDB creates a credits service from a GORM DB handle.
func NewServiceFromDB(db *gorm.DB, notifier Notifier, log *logrus.Logger) *Service {
	return NewService(NewRepository(db), notifier, log)
}

// ProcessPayment drives one notification to a terminal state. Only genuine,
// first-seen successful payments mutate anything; every path that grants
// credit is recorded by the ledger's unique (ref_type, ref_id) key.
func (s *Service) ProcessPayment(ctx context.Context, n *shopier.PaymentNotification) (*Receipt, error) {
	if n.Status != shopier.StatusSuccess {
		s.log.WithFields(logrus.Fields{
			"order_ref": n.OrderRef,
			"status":    n.RawStatus,
		}).Info("payment not successful, acknowledging without mutation")
		s.notifyAsync(func() { s.notifier.PaymentFailed(n) })
		return &Receipt{Outcome: OutcomeIgnored, OrderRef: n.OrderRef}, nil
	}

	userID := n.UserID
	if userID == "" {
		var err error
		userID, err = ParseOrderRef(n.OrderRef)
		if err != nil {
			return nil, err
		}
	}

	// Idempotency pre-check. Cheap short-circuit for the common retry; the
	// unique constraint below covers the race it cannot.
	existing, err := s.repo.FindLedgerEntryByRef(ctx, models.RefTypeShopierPayment, n.OrderRef)
	if err == nil && existing != nil {
		s.log.WithField("order_ref", n.OrderRef).Info("duplicate payment delivery, already processed")
		return &Receipt{
			Outcome:        OutcomeDuplicate,
			OrderRef:       n.OrderRef,
			UserID:         existing.UserID,
			CreditsGranted: existing.DeltaCredits,
		}, nil
	}
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("idempotency check: %w", err)
	}

	pkg, err := LookupPackage(n.PackageID)
	if err != nil {
		return nil, err
	}
	bonus := BonusCredits(pkg.Credits)
	total := pkg.Credits + bonus

	account, err := s.repo.GetAccount(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrAccountNotFound, userID)
		}
		return nil, fmt.Errorf("account lookup: %w", err)
	}

	reason := fmt.Sprintf("%s satın alındı (%d kredi", pkg.Name, pkg.Credits)
	if bonus > 0 {
		reason += fmt.Sprintf(" + %d bonus", bonus)
	}
	reason += ")"

	entry := &models.LedgerEntry{
		UserID:       userID,
		Type:         models.LedgerTypePurchase,
		Amount:       n.Amount,
		DeltaCredits: total,
		RefType:      models.RefTypeShopierPayment,
		RefID:        n.OrderRef,
		Reason:       reason,
		Description:  fmt.Sprintf("%s - %d kredi - Shopier", pkg.Name, total),
	}

	created, err := s.repo.GrantCredits(ctx, entry)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrAccountNotFound, userID)
		}
		return nil, fmt.Errorf("%w: %v", ErrLedgerWrite, err)
	}
	if !created {
		// Lost the race against a concurrent delivery of the same payment.
		s.log.WithField("order_ref", n.OrderRef).Info("duplicate payment detected on insert")
		return &Receipt{
			Outcome:        OutcomeDuplicate,
			OrderRef:       n.OrderRef,
			UserID:         userID,
			CreditsGranted: total,
		}, nil
	}

	receipt := &Receipt{
		Outcome:        OutcomeGranted,
		OrderRef:       n.OrderRef,
		UserID:         userID,
		AccountName:    account.DisplayName,
		AccountEmail:   account.Email,
		PackageID:      pkg.ID,
		PackageName:    pkg.Name,
		CreditsGranted: total,
		NewBalance:     account.CreditBalance + total,
	}

	s.log.WithFields(logrus.Fields{
		"order_ref":       n.OrderRef,
		"user_id":         userID,
		"package_id":      pkg.ID,
		"credits_granted": total,
		"new_balance":     receipt.NewBalance,
	}).Info("payment processed, credits granted")

	s.notifyAsync(func() { s.notifier.PaymentSucceeded(receipt, n) })
	return receipt, nil
}

// notifyAsync runs a notifier call in the background. The HTTP response must
// not wait for, or fail because of, the mail collaborator.
func (s *Service) notifyAsync(fn func()) {
	if s.notifier == nil {
		return
	}
	go func() {
		defer func() {
			if r := recover(); r != nil {
				s.log.WithField("panic", r).Error("payment notifier panicked")
			}
		}()
		fn()
	}()
}

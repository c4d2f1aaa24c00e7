package credits

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"testing"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/busbuskimki/tarotpay/app/models"
	"github.com/busbuskimki/tarotpay/internal/pkg/shopier"
)

// fakeRepository is an in-memory Repository that mirrors the real one's
// contract, including the unique (ref_type, ref_id) semantics of GrantCredits.
type fakeRepository struct {
	mu       sync.Mutex
	accounts map[string]*models.Account
	ledger   map[string]*models.LedgerEntry

	grantErr error
}

func newFakeRepository() *fakeRepository {
	return &fakeRepository{
		accounts: make(map[string]*models.Account),
		ledger:   make(map[string]*models.LedgerEntry),
	}
}

func (r *fakeRepository) addAccount(a *models.Account) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.accounts[a.ID] = a
}

func (r *fakeRepository) balance(userID string) int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.accounts[userID].CreditBalance
}

func (r *fakeRepository) ledgerCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.ledger)
}

func ledgerKey(refType, refID string) string {
	return refType + "|" + refID
}

func (r *fakeRepository) FindLedgerEntryByRef(ctx context.Context, refType, refID string) (*models.LedgerEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.ledger[ledgerKey(refType, refID)]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *entry
	return &cp, nil
}

func (r *fakeRepository) GetAccount(ctx context.Context, id string) (*models.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	account, ok := r.accounts[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *account
	return &cp, nil
}

func (r *fakeRepository) GrantCredits(ctx context.Context, entry *models.LedgerEntry) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.grantErr != nil {
		return false, r.grantErr
	}
	key := ledgerKey(entry.RefType, entry.RefID)
	if _, exists := r.ledger[key]; exists {
		return false, nil
	}
	account, ok := r.accounts[entry.UserID]
	if !ok {
		return false, gorm.ErrRecordNotFound
	}
	cp := *entry
	r.ledger[key] = &cp
	account.CreditBalance += entry.DeltaCredits
	return true, nil
}

// recordingNotifier captures notifier calls so tests can assert on them.
type recordingNotifier struct {
	mu        sync.Mutex
	succeeded []*Receipt
	failed    []*shopier.PaymentNotification
	done      chan struct{}
}

func newRecordingNotifier() *recordingNotifier {
	return &recordingNotifier{done: make(chan struct{}, 16)}
}

func (n *recordingNotifier) PaymentSucceeded(receipt *Receipt, _ *shopier.PaymentNotification) {
	n.mu.Lock()
	n.succeeded = append(n.succeeded, receipt)
	n.mu.Unlock()
	n.done <- struct{}{}
}

func (n *recordingNotifier) PaymentFailed(notification *shopier.PaymentNotification) {
	n.mu.Lock()
	n.failed = append(n.failed, notification)
	n.mu.Unlock()
	n.done <- struct{}{}
}

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func successNotification(orderRef, packageID string) *shopier.PaymentNotification {
	return &shopier.PaymentNotification{
		OrderRef:              orderRef,
		Status:                shopier.StatusSuccess,
		RawStatus:             "success",
		Amount:                250.0,
		Currency:              "TRY",
		ProviderTransactionID: "SHP-9001",
		Timestamp:             "2024-04-01T12:00:00Z",
		PackageID:             packageID,
	}
}

func TestProcessPaymentGrantsCredits(t *testing.T) {
	repo := newFakeRepository()
	repo.addAccount(&models.Account{ID: "user-123", DisplayName: "Ayşe Yılmaz", Email: "ayse@example.com", CreditBalance: 25})
	notifier := newRecordingNotifier()
	svc := NewService(repo, notifier, testLogger())

	n := successNotification("ORDER_1712000000000_user-123", "premium")
	receipt, err := svc.ProcessPayment(context.Background(), n)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if receipt.Outcome != OutcomeGranted {
		t.Fatalf("unexpected outcome: %q", receipt.Outcome)
	}
	// Premium is 500 base credits plus the 10% tier bonus.
	if receipt.CreditsGranted != 550 {
		t.Fatalf("unexpected credits granted: %d", receipt.CreditsGranted)
	}
	if receipt.NewBalance != 575 {
		t.Fatalf("unexpected new balance: %d", receipt.NewBalance)
	}
	if receipt.PackageName != "Premium Paket" || receipt.AccountEmail != "ayse@example.com" {
		t.Fatalf("unexpected receipt: %+v", receipt)
	}
	if got := repo.balance("user-123"); got != 575 {
		t.Fatalf("stored balance = %d, want 575", got)
	}

	entry, err := repo.FindLedgerEntryByRef(context.Background(), models.RefTypeShopierPayment, n.OrderRef)
	if err != nil {
		t.Fatalf("ledger entry not written: %v", err)
	}
	if entry.Type != models.LedgerTypePurchase || entry.DeltaCredits != 550 {
		t.Fatalf("unexpected ledger entry: %+v", entry)
	}
	if entry.RefID != n.OrderRef {
		t.Fatalf("ledger ref id = %q, want the order ref", entry.RefID)
	}

	<-notifier.done
	notifier.mu.Lock()
	defer notifier.mu.Unlock()
	if len(notifier.succeeded) != 1 || len(notifier.failed) != 0 {
		t.Fatalf("unexpected notifications: %d succeeded, %d failed", len(notifier.succeeded), len(notifier.failed))
	}
}

func TestProcessPaymentResolvesUserFromOrderRef(t *testing.T) {
	repo := newFakeRepository()
	repo.addAccount(&models.Account{ID: "user-77", CreditBalance: 0})
	svc := NewService(repo, nil, testLogger())

	// No user_id in the payload; the order reference is the only source.
	n := successNotification("ORDER_1712000000000_user-77", "starter")
	receipt, err := svc.ProcessPayment(context.Background(), n)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if receipt.UserID != "user-77" || receipt.CreditsGranted != 100 {
		t.Fatalf("unexpected receipt: %+v", receipt)
	}
}

func TestProcessPaymentIdempotent(t *testing.T) {
	repo := newFakeRepository()
	repo.addAccount(&models.Account{ID: "user-123", CreditBalance: 0})
	svc := NewService(repo, nil, testLogger())

	n := successNotification("ORDER_1712000000000_user-123", "master")

	first, err := svc.ProcessPayment(context.Background(), n)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if first.Outcome != OutcomeGranted || first.CreditsGranted != 1200 {
		t.Fatalf("unexpected first receipt: %+v", first)
	}

	// Redeliveries must acknowledge without granting again.
	for i := 0; i < 5; i++ {
		receipt, err := svc.ProcessPayment(context.Background(), n)
		if err != nil {
			t.Fatalf("redelivery %d: unexpected error: %v", i, err)
		}
		if receipt.Outcome != OutcomeDuplicate {
			t.Fatalf("redelivery %d: outcome = %q, want duplicate", i, receipt.Outcome)
		}
		if receipt.CreditsGranted != 1200 {
			t.Fatalf("redelivery %d: credits = %d, want the original 1200", i, receipt.CreditsGranted)
		}
	}

	if got := repo.balance("user-123"); got != 1200 {
		t.Fatalf("balance = %d after redeliveries, want 1200", got)
	}
	if got := repo.ledgerCount(); got != 1 {
		t.Fatalf("ledger rows = %d, want 1", got)
	}
}

func TestProcessPaymentConcurrentDistinctOrders(t *testing.T) {
	repo := newFakeRepository()
	repo.addAccount(&models.Account{ID: "user-123", CreditBalance: 0})
	svc := NewService(repo, nil, testLogger())

	const workers = 8
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ref := fmt.Sprintf("ORDER_%d_user-123", 1712000000000+int64(i))
			n := successNotification(ref, "starter")
			receipt, err := svc.ProcessPayment(context.Background(), n)
			if err != nil {
				errs <- err
				return
			}
			if receipt.Outcome != OutcomeGranted {
				errs <- fmt.Errorf("order %s: outcome %q", ref, receipt.Outcome)
			}
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatal(err)
	}

	// Every distinct purchase lands, none lost to racing increments.
	if got := repo.balance("user-123"); got != workers*100 {
		t.Fatalf("balance = %d, want %d", got, workers*100)
	}
	if got := repo.ledgerCount(); got != workers {
		t.Fatalf("ledger rows = %d, want %d", got, workers)
	}
}

func TestProcessPaymentIgnoresNonSuccess(t *testing.T) {
	repo := newFakeRepository()
	repo.addAccount(&models.Account{ID: "user-123", CreditBalance: 10})
	notifier := newRecordingNotifier()
	svc := NewService(repo, notifier, testLogger())

	n := successNotification("ORDER_1712000000000_user-123", "premium")
	n.Status = shopier.StatusFailed
	n.RawStatus = "failed"

	receipt, err := svc.ProcessPayment(context.Background(), n)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if receipt.Outcome != OutcomeIgnored {
		t.Fatalf("outcome = %q, want ignored", receipt.Outcome)
	}
	if got := repo.balance("user-123"); got != 10 {
		t.Fatalf("balance mutated on failed payment: %d", got)
	}
	if got := repo.ledgerCount(); got != 0 {
		t.Fatalf("ledger written on failed payment: %d rows", got)
	}

	<-notifier.done
	notifier.mu.Lock()
	defer notifier.mu.Unlock()
	if len(notifier.failed) != 1 {
		t.Fatalf("expected one failure notification, got %d", len(notifier.failed))
	}
}

func TestProcessPaymentUnknownPackage(t *testing.T) {
	repo := newFakeRepository()
	repo.addAccount(&models.Account{ID: "user-123"})
	svc := NewService(repo, nil, testLogger())

	n := successNotification("ORDER_1712000000000_user-123", "mega")
	_, err := svc.ProcessPayment(context.Background(), n)
	if !errors.Is(err, ErrPackageNotFound) {
		t.Fatalf("expected ErrPackageNotFound, got %v", err)
	}
	if got := repo.ledgerCount(); got != 0 {
		t.Fatalf("ledger written for unknown package: %d rows", got)
	}
}

func TestProcessPaymentUnknownAccount(t *testing.T) {
	repo := newFakeRepository()
	svc := NewService(repo, nil, testLogger())

	n := successNotification("ORDER_1712000000000_ghost", "starter")
	_, err := svc.ProcessPayment(context.Background(), n)
	if !errors.Is(err, ErrAccountNotFound) {
		t.Fatalf("expected ErrAccountNotFound, got %v", err)
	}
}

func TestProcessPaymentBadOrderRef(t *testing.T) {
	repo := newFakeRepository()
	svc := NewService(repo, nil, testLogger())

	n := successNotification("FOO_123", "starter")
	_, err := svc.ProcessPayment(context.Background(), n)
	if !errors.Is(err, ErrOrderResolution) {
		t.Fatalf("expected ErrOrderResolution, got %v", err)
	}
}

func TestProcessPaymentLedgerWriteFailure(t *testing.T) {
	repo := newFakeRepository()
	repo.addAccount(&models.Account{ID: "user-123"})
	repo.grantErr = errors.New("deadlock found when trying to get lock")
	svc := NewService(repo, nil, testLogger())

	n := successNotification("ORDER_1712000000000_user-123", "starter")
	_, err := svc.ProcessPayment(context.Background(), n)
	if !errors.Is(err, ErrLedgerWrite) {
		t.Fatalf("expected ErrLedgerWrite, got %v", err)
	}
	if got := repo.balance("user-123"); got != 0 {
		t.Fatalf("balance mutated on failed grant: %d", got)
	}
}

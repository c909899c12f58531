package invoiceservice

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/quickvoicy/quickvoicy/internal/domain"
	"github.com/quickvoicy/quickvoicy/internal/wallet"
)

//go:generate mockgen -source=invoiceservice.go -destination=invoiceservice_mock.go -package=invoiceservice

const (
	// StatusPending means the invoice awaits settlement on the wallet.
	StatusPending string = "pending"
	// StatusPaid is terminal. There is no way back.
	StatusPaid string = "paid"
)

const DefaultListLimit = 10

var (
	ErrInvoiceNotFound    = errors.New("invoice not found")
	ErrInvoiceExists      = errors.New("invoice already exists")
	ErrInvalidAmount      = errors.New("amount must be positive")
	ErrWalletNotConnected = errors.New("wallet not connected")
)

type Repo interface {
	Save(ctx context.Context, inv *domain.Invoice) error
	FindByID(ctx context.Context, id string) (*domain.Invoice, error)
	FindByUserID(ctx context.Context, userID int, limit int) ([]domain.Invoice, error)
	MarkPaid(ctx context.Context, id string, paidAt time.Time) (bool, error)
	Delete(ctx context.Context, id string, userID int) error
	Stats(ctx context.Context, userID int) (*domain.UserStats, error)
}

type UserRepo interface {
	FindByID(ctx context.Context, id int) (*domain.User, error)
}

type Service struct {
	repo     Repo
	userRepo UserRepo
	dialer   wallet.Dialer
}

func New(repo Repo, userRepo UserRepo, dialer wallet.Dialer) *Service {
	return &Service{
		repo:     repo,
		userRepo: userRepo,
		dialer:   dialer,
	}
}

type CreateRequest struct {
	UserID      int
	Amount      int64
	Description string
	ClientName  string
	ClientEmail string
}

// Create asks the owner's wallet for a Lightning invoice and persists it as
// pending. The payment hash is stored only when the wallet reports one; an
// invoice without a hash stays out of automatic reconciliation.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*domain.Invoice, error) {
	if req.Amount <= 0 {
		return nil, ErrInvalidAmount
	}

	user, err := s.userRepo.FindByID(ctx, req.UserID)
	if err != nil {
		return nil, err
	}
	if !user.HasWallet() {
		return nil, ErrWalletNotConnected
	}

	client, err := s.dialer.Dial(*user.WalletURL)
	if err != nil {
		return nil, err
	}
	if err := client.Connect(ctx); err != nil {
		return nil, err
	}
	defer client.Disconnect()

	lightningInvoice, paymentHash, err := client.CreateInvoice(ctx, req.Amount, req.Description)
	if err != nil {
		zap.L().Error("wallet rejected invoice creation",
			zap.Int("userID", req.UserID), zap.Int64("amount", req.Amount), zap.Error(err))
		return nil, err
	}

	inv := &domain.Invoice{
		ID:               uuid.NewString(),
		UserID:           req.UserID,
		Amount:           req.Amount,
		Description:      req.Description,
		ClientName:       req.ClientName,
		ClientEmail:      req.ClientEmail,
		Status:           StatusPending,
		LightningInvoice: lightningInvoice,
		CreatedAt:        time.Now(),
	}
	if paymentHash != "" {
		inv.PaymentHash = &paymentHash
	}

	if err := s.repo.Save(ctx, inv); err != nil {
		zap.L().Error("can't save invoice", zap.Error(err))
		return nil, err
	}
	return inv, nil
}

// Get returns an invoice only to its owner.
func (s *Service) Get(ctx context.Context, userID int, id string) (*domain.Invoice, error) {
	inv, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if inv == nil || inv.UserID != userID {
		return nil, ErrInvoiceNotFound
	}
	return inv, nil
}

func (s *Service) List(ctx context.Context, userID int, limit int) ([]domain.Invoice, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	return s.repo.FindByUserID(ctx, userID, limit)
}

func (s *Service) Delete(ctx context.Context, userID int, id string) error {
	return s.repo.Delete(ctx, id, userID)
}

func (s *Service) Stats(ctx context.Context, userID int) (*domain.UserStats, error) {
	return s.repo.Stats(ctx, userID)
}

// MarkPaid records settlement. Reports false when the invoice had already
// been transitioned, so callers notify at most once.
func (s *Service) MarkPaid(ctx context.Context, id string, paidAt time.Time) (bool, error) {
	return s.repo.MarkPaid(ctx, id, paidAt)
}

// CheckPayment is the interactive settlement probe behind the bots'
// check-status action. Returns whether the invoice is paid now and whether
// this call performed the transition.
func (s *Service) CheckPayment(ctx context.Context, userID int, id string) (paid bool, transitioned bool, err error) {
	inv, err := s.Get(ctx, userID, id)
	if err != nil {
		return false, false, err
	}
	if inv.Status == StatusPaid {
		return true, false, nil
	}
	if inv.PaymentHash == nil || *inv.PaymentHash == "" {
		return false, false, nil
	}

	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return false, false, err
	}
	if !user.HasWallet() {
		return false, false, ErrWalletNotConnected
	}

	client, err := s.dialer.Dial(*user.WalletURL)
	if err != nil {
		return false, false, err
	}
	if err := client.Connect(ctx); err != nil {
		return false, false, err
	}
	defer client.Disconnect()

	if !client.CheckPaymentStatus(ctx, *inv.PaymentHash) {
		return false, false, nil
	}

	transitioned, err = s.repo.MarkPaid(ctx, inv.ID, time.Now())
	if err != nil {
		return false, false, err
	}
	return true, transitioned, nil
}

package monitor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/quickvoicy/quickvoicy/internal/config"
	"github.com/quickvoicy/quickvoicy/internal/domain"
	"github.com/quickvoicy/quickvoicy/internal/service/invoiceservice"
	"github.com/quickvoicy/quickvoicy/internal/wallet"
)

//go:generate mockgen -source=monitor.go -destination=monitor_mock.go -package=monitor

const workerCount = 10

type InvoiceRepo interface {
	FindPending(ctx context.Context) ([]domain.Invoice, error)
	MarkPaid(ctx context.Context, id string, paidAt time.Time) (bool, error)
}

type UserRepo interface {
	FindByID(ctx context.Context, id int) (*domain.User, error)
}

type Notifier interface {
	Notify(ctx context.Context, user *domain.User, text string) error
}

// Service polls pending invoices and settles them against each owner's
// wallet. Invoices are independent: one unreachable wallet never stalls the
// rest of a scan, and a failed check is simply retried on the next tick.
type Service struct {
	invoiceRepo  InvoiceRepo
	userRepo     UserRepo
	dialer       wallet.Dialer
	notifier     Notifier
	workerPool   WorkerPoolI
	interval     time.Duration
	checkTimeout time.Duration

	inFlight sync.Map
}

func New(cfg *config.Config, invoiceRepo InvoiceRepo, userRepo UserRepo, dialer wallet.Dialer, notifier Notifier) *Service {
	return &Service{
		invoiceRepo:  invoiceRepo,
		userRepo:     userRepo,
		dialer:       dialer,
		notifier:     notifier,
		workerPool:   NewWorkerPool(workerCount),
		interval:     cfg.PollInterval,
		checkTimeout: cfg.CheckTimeout,
	}
}

func (s *Service) Start(ctx context.Context) {
	zap.L().Info("Payment monitor started", zap.Duration("interval", s.interval))
	go s.run(ctx)
}

func (s *Service) run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			zap.L().Info("Context canceled, stopping payment monitor")
			s.workerPool.Close()
			return
		case <-ticker.C:
			s.checkPendingInvoices(ctx)
		}
	}
}

// checkPendingInvoices runs one scan. The pending set fetched here is the
// scan's consistency boundary: invoices created afterwards wait for the next
// tick. Only the fetch itself may abort the scan.
func (s *Service) checkPendingInvoices(ctx context.Context) {
	invoices, err := s.invoiceRepo.FindPending(ctx)
	if err != nil {
		zap.L().Error("Failed to fetch pending invoices", zap.Error(err))
		return
	}

	var g errgroup.Group
	for _, inv := range invoices {
		inv := inv

		if inv.PaymentHash == nil || *inv.PaymentHash == "" {
			// Never reconcilable until a hash shows up; not an error.
			zap.L().Debug("Invoice has no payment hash, skipping", zap.String("invoiceID", inv.ID))
			continue
		}
		if _, loaded := s.inFlight.LoadOrStore(inv.ID, struct{}{}); loaded {
			continue
		}

		g.Go(func() error {
			err := s.workerPool.AddTask(ctx, func() error {
				defer s.inFlight.Delete(inv.ID)
				return s.checkInvoice(ctx, inv)
			})
			if err != nil {
				s.inFlight.Delete(inv.ID)
				return err
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		zap.L().Error("Error dispatching invoice checks", zap.Error(err))
	}
}

// checkInvoice evaluates a single invoice under its own deadline. Every skip
// path returns nil: the invoice stays pending and gets another chance on the
// next tick.
func (s *Service) checkInvoice(ctx context.Context, inv domain.Invoice) error {
	ctx, cancel := context.WithTimeout(ctx, s.checkTimeout)
	defer cancel()

	user, err := s.userRepo.FindByID(ctx, inv.UserID)
	if err != nil {
		return fmt.Errorf("can't resolve owner of invoice %s: %w", inv.ID, err)
	}
	if !user.HasWallet() {
		zap.L().Warn("Invoice owner has no wallet credential, skipping",
			zap.String("invoiceID", inv.ID), zap.Int("userID", inv.UserID))
		return nil
	}

	client, err := s.dialer.Dial(*user.WalletURL)
	if err != nil {
		zap.L().Warn("Stored wallet credential is unusable, skipping",
			zap.String("invoiceID", inv.ID), zap.Error(err))
		return nil
	}
	if err := client.Connect(ctx); err != nil {
		zap.L().Warn("Wallet connect failed, will retry next tick",
			zap.String("invoiceID", inv.ID), zap.Error(err))
		return nil
	}
	defer client.Disconnect()

	if !client.CheckPaymentStatus(ctx, *inv.PaymentHash) {
		return nil
	}

	transitioned, err := s.invoiceRepo.MarkPaid(ctx, inv.ID, time.Now())
	if err != nil {
		if errors.Is(err, invoiceservice.ErrInvoiceNotFound) {
			// Deleted between the scan and now.
			zap.L().Info("Invoice vanished before settlement write", zap.String("invoiceID", inv.ID))
			return nil
		}
		return fmt.Errorf("can't mark invoice %s paid: %w", inv.ID, err)
	}
	if !transitioned {
		return nil
	}

	zap.L().Info("Invoice marked as paid",
		zap.String("invoiceID", inv.ID), zap.Int64("amount", inv.Amount))
	s.notifyOwner(ctx, user, &inv)
	return nil
}

// notifyOwner sends the one-time payment notification. The invoice is
// already paid in the store, so a delivery failure is logged and swallowed.
func (s *Service) notifyOwner(ctx context.Context, user *domain.User, inv *domain.Invoice) {
	text := fmt.Sprintf(
		"🎉 Payment received!\n\nInvoice #%s has been paid.\n\n💰 Amount: %d sats\n📋 %s",
		shortID(inv.ID), inv.Amount, inv.Description,
	)
	if err := s.notifier.Notify(ctx, user, text); err != nil {
		zap.L().Warn("Failed to deliver payment notification",
			zap.String("invoiceID", inv.ID), zap.Error(err))
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

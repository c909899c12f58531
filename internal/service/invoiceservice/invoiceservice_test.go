package invoiceservice

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	gomock "go.uber.org/mock/gomock"

	"github.com/quickvoicy/quickvoicy/internal/domain"
	"github.com/quickvoicy/quickvoicy/internal/wallet"
)

func NewMock(t *testing.T) (*Service, *MockRepo, *MockUserRepo, *wallet.MockDialer, *wallet.MockClient) {
	ctrl := gomock.NewController(t)
	repo := NewMockRepo(ctrl)
	userRepo := NewMockUserRepo(ctrl)
	dialer := wallet.NewMockDialer(ctrl)
	client := wallet.NewMockClient(ctrl)
	service := New(repo, userRepo, dialer)
	defer ctrl.Finish()
	return service, repo, userRepo, dialer, client
}

func strPtr(s string) *string { return &s }

func walletUser(id int) *domain.User {
	return &domain.User{
		ID:         id,
		Platform:   domain.PlatformTelegram,
		PlatformID: "42",
		WalletURL:  strPtr("nostr+walletconnect://pubkey?relay=wss://relay.example.com&secret=s"),
	}
}

func TestCreate(t *testing.T) {
	service, repo, userRepo, dialer, client := NewMock(t)
	req := CreateRequest{UserID: 1, Amount: 2500, Description: "logo design", ClientName: "ACME"}

	tests := []struct {
		name          string
		req           CreateRequest
		prepareMock   func()
		expectedError error
		checkInvoice  func(t *testing.T, inv *domain.Invoice)
	}{
		{
			name: "Invoice created with payment hash",
			req:  req,
			prepareMock: func() {
				userRepo.EXPECT().FindByID(gomock.Any(), 1).Return(walletUser(1), nil)
				dialer.EXPECT().Dial(gomock.Any()).Return(client, nil)
				client.EXPECT().Connect(gomock.Any()).Return(nil)
				client.EXPECT().CreateInvoice(gomock.Any(), int64(2500), "logo design").
					Return("lnbc25u1...", "a1b2c3", nil)
				client.EXPECT().Disconnect()
				repo.EXPECT().Save(gomock.Any(), gomock.Any()).Return(nil)
			},
			expectedError: nil,
			checkInvoice: func(t *testing.T, inv *domain.Invoice) {
				assert.NotEmpty(t, inv.ID)
				assert.Equal(t, int64(2500), inv.Amount)
				assert.Equal(t, StatusPending, inv.Status)
				assert.Equal(t, "lnbc25u1...", inv.LightningInvoice)
				assert.NotNil(t, inv.PaymentHash)
				assert.Equal(t, "a1b2c3", *inv.PaymentHash)
			},
		},
		{
			name: "Wallet returns no payment hash",
			req:  req,
			prepareMock: func() {
				userRepo.EXPECT().FindByID(gomock.Any(), 1).Return(walletUser(1), nil)
				dialer.EXPECT().Dial(gomock.Any()).Return(client, nil)
				client.EXPECT().Connect(gomock.Any()).Return(nil)
				client.EXPECT().CreateInvoice(gomock.Any(), int64(2500), "logo design").
					Return("lnbc25u1...", "", nil)
				client.EXPECT().Disconnect()
				repo.EXPECT().Save(gomock.Any(), gomock.Any()).Return(nil)
			},
			expectedError: nil,
			checkInvoice: func(t *testing.T, inv *domain.Invoice) {
				assert.Nil(t, inv.PaymentHash)
			},
		},
		{
			name:          "Zero amount rejected",
			req:           CreateRequest{UserID: 1, Amount: 0},
			prepareMock:   func() {},
			expectedError: ErrInvalidAmount,
		},
		{
			name:          "Negative amount rejected",
			req:           CreateRequest{UserID: 1, Amount: -5},
			prepareMock:   func() {},
			expectedError: ErrInvalidAmount,
		},
		{
			name: "Wallet not connected",
			req:  req,
			prepareMock: func() {
				userRepo.EXPECT().FindByID(gomock.Any(), 1).
					Return(&domain.User{ID: 1, Platform: domain.PlatformTelegram, PlatformID: "42"}, nil)
			},
			expectedError: ErrWalletNotConnected,
		},
		{
			name: "Wallet rejects creation",
			req:  req,
			prepareMock: func() {
				userRepo.EXPECT().FindByID(gomock.Any(), 1).Return(walletUser(1), nil)
				dialer.EXPECT().Dial(gomock.Any()).Return(client, nil)
				client.EXPECT().Connect(gomock.Any()).Return(nil)
				client.EXPECT().CreateInvoice(gomock.Any(), int64(2500), "logo design").
					Return("", "", errors.New("wallet error"))
				client.EXPECT().Disconnect()
			},
			expectedError: errors.New("wallet error"),
		},
		{
			name: "Relay unreachable",
			req:  req,
			prepareMock: func() {
				userRepo.EXPECT().FindByID(gomock.Any(), 1).Return(walletUser(1), nil)
				dialer.EXPECT().Dial(gomock.Any()).Return(client, nil)
				client.EXPECT().Connect(gomock.Any()).Return(wallet.ErrConnection)
			},
			expectedError: wallet.ErrConnection,
		},
		{
			name: "Save fails",
			req:  req,
			prepareMock: func() {
				userRepo.EXPECT().FindByID(gomock.Any(), 1).Return(walletUser(1), nil)
				dialer.EXPECT().Dial(gomock.Any()).Return(client, nil)
				client.EXPECT().Connect(gomock.Any()).Return(nil)
				client.EXPECT().CreateInvoice(gomock.Any(), int64(2500), "logo design").
					Return("lnbc25u1...", "a1b2c3", nil)
				client.EXPECT().Disconnect()
				repo.EXPECT().Save(gomock.Any(), gomock.Any()).Return(errors.New("database error"))
			},
			expectedError: errors.New("database error"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.prepareMock()
			inv, err := service.Create(context.Background(), tt.req)
			if tt.expectedError != nil {
				assert.Error(t, err)
				assert.Equal(t, tt.expectedError.Error(), err.Error())
				assert.Nil(t, inv)
				return
			}
			assert.NoError(t, err)
			assert.NotNil(t, inv)
			if tt.checkInvoice != nil {
				tt.checkInvoice(t, inv)
			}
		})
	}
}

func TestGet(t *testing.T) {
	service, repo, _, _, _ := NewMock(t)

	tests := []struct {
		name          string
		userID        int
		prepareMock   func()
		expectedError error
	}{
		{
			name:   "Owner sees own invoice",
			userID: 1,
			prepareMock: func() {
				repo.EXPECT().FindByID(gomock.Any(), "inv-1").
					Return(&domain.Invoice{ID: "inv-1", UserID: 1}, nil)
			},
			expectedError: nil,
		},
		{
			name:   "Foreign invoice is invisible",
			userID: 2,
			prepareMock: func() {
				repo.EXPECT().FindByID(gomock.Any(), "inv-1").
					Return(&domain.Invoice{ID: "inv-1", UserID: 1}, nil)
			},
			expectedError: ErrInvoiceNotFound,
		},
		{
			name:   "Missing invoice",
			userID: 1,
			prepareMock: func() {
				repo.EXPECT().FindByID(gomock.Any(), "inv-1").Return(nil, nil)
			},
			expectedError: ErrInvoiceNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.prepareMock()
			inv, err := service.Get(context.Background(), tt.userID, "inv-1")
			if tt.expectedError != nil {
				assert.ErrorIs(t, err, tt.expectedError)
				assert.Nil(t, inv)
			} else {
				assert.NoError(t, err)
				assert.NotNil(t, inv)
			}
		})
	}
}

func TestList(t *testing.T) {
	service, repo, _, _, _ := NewMock(t)

	t.Run("Defaults the limit", func(t *testing.T) {
		repo.EXPECT().FindByUserID(gomock.Any(), 1, DefaultListLimit).Return(nil, nil)
		_, err := service.List(context.Background(), 1, 0)
		assert.NoError(t, err)
	})

	t.Run("Honors an explicit limit", func(t *testing.T) {
		repo.EXPECT().FindByUserID(gomock.Any(), 1, 3).Return([]domain.Invoice{{ID: "inv-1"}}, nil)
		invoices, err := service.List(context.Background(), 1, 3)
		assert.NoError(t, err)
		assert.Len(t, invoices, 1)
	})
}

func TestCheckPayment(t *testing.T) {
	service, repo, userRepo, dialer, client := NewMock(t)

	pending := func() *domain.Invoice {
		return &domain.Invoice{
			ID:          "inv-1",
			UserID:      1,
			Amount:      2500,
			Status:      StatusPending,
			PaymentHash: strPtr("a1b2c3"),
		}
	}

	tests := []struct {
		name               string
		prepareMock        func()
		expectedPaid       bool
		expectedTransition bool
		expectedError      error
	}{
		{
			name: "Settled invoice transitions",
			prepareMock: func() {
				repo.EXPECT().FindByID(gomock.Any(), "inv-1").Return(pending(), nil)
				userRepo.EXPECT().FindByID(gomock.Any(), 1).Return(walletUser(1), nil)
				dialer.EXPECT().Dial(gomock.Any()).Return(client, nil)
				client.EXPECT().Connect(gomock.Any()).Return(nil)
				client.EXPECT().CheckPaymentStatus(gomock.Any(), "a1b2c3").Return(true)
				client.EXPECT().Disconnect()
				repo.EXPECT().MarkPaid(gomock.Any(), "inv-1", gomock.Any()).Return(true, nil)
			},
			expectedPaid:       true,
			expectedTransition: true,
		},
		{
			name: "Already paid reports without wallet roundtrip",
			prepareMock: func() {
				paid := pending()
				paid.Status = StatusPaid
				repo.EXPECT().FindByID(gomock.Any(), "inv-1").Return(paid, nil)
			},
			expectedPaid:       true,
			expectedTransition: false,
		},
		{
			name: "No payment hash means no probe",
			prepareMock: func() {
				inv := pending()
				inv.PaymentHash = nil
				repo.EXPECT().FindByID(gomock.Any(), "inv-1").Return(inv, nil)
			},
			expectedPaid:       false,
			expectedTransition: false,
		},
		{
			name: "Unsettled invoice stays pending",
			prepareMock: func() {
				repo.EXPECT().FindByID(gomock.Any(), "inv-1").Return(pending(), nil)
				userRepo.EXPECT().FindByID(gomock.Any(), 1).Return(walletUser(1), nil)
				dialer.EXPECT().Dial(gomock.Any()).Return(client, nil)
				client.EXPECT().Connect(gomock.Any()).Return(nil)
				client.EXPECT().CheckPaymentStatus(gomock.Any(), "a1b2c3").Return(false)
				client.EXPECT().Disconnect()
			},
			expectedPaid:       false,
			expectedTransition: false,
		},
		{
			name: "Monitor won the race",
			prepareMock: func() {
				repo.EXPECT().FindByID(gomock.Any(), "inv-1").Return(pending(), nil)
				userRepo.EXPECT().FindByID(gomock.Any(), 1).Return(walletUser(1), nil)
				dialer.EXPECT().Dial(gomock.Any()).Return(client, nil)
				client.EXPECT().Connect(gomock.Any()).Return(nil)
				client.EXPECT().CheckPaymentStatus(gomock.Any(), "a1b2c3").Return(true)
				client.EXPECT().Disconnect()
				repo.EXPECT().MarkPaid(gomock.Any(), "inv-1", gomock.Any()).Return(false, nil)
			},
			expectedPaid:       true,
			expectedTransition: false,
		},
		{
			name: "Wallet disconnected meanwhile",
			prepareMock: func() {
				repo.EXPECT().FindByID(gomock.Any(), "inv-1").Return(pending(), nil)
				userRepo.EXPECT().FindByID(gomock.Any(), 1).
					Return(&domain.User{ID: 1, Platform: domain.PlatformTelegram, PlatformID: "42"}, nil)
			},
			expectedError: ErrWalletNotConnected,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.prepareMock()
			paid, transitioned, err := service.CheckPayment(context.Background(), 1, "inv-1")
			if tt.expectedError != nil {
				assert.ErrorIs(t, err, tt.expectedError)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.expectedPaid, paid)
			assert.Equal(t, tt.expectedTransition, transitioned)
		})
	}
}

func TestDelete(t *testing.T) {
	service, repo, _, _, _ := NewMock(t)

	repo.EXPECT().Delete(gomock.Any(), "inv-1", 1).Return(nil)
	assert.NoError(t, service.Delete(context.Background(), 1, "inv-1"))

	repo.EXPECT().Delete(gomock.Any(), "inv-1", 2).Return(ErrInvoiceNotFound)
	assert.ErrorIs(t, service.Delete(context.Background(), 2, "inv-1"), ErrInvoiceNotFound)
}

func TestStats(t *testing.T) {
	service, repo, _, _, _ := NewMock(t)

	want := &domain.UserStats{TotalInvoices: 5, PaidInvoices: 3, TotalEarned: 7500}
	repo.EXPECT().Stats(gomock.Any(), 1).Return(want, nil)

	stats, err := service.Stats(context.Background(), 1)
	assert.NoError(t, err)
	assert.Equal(t, want, stats)
}

func TestMarkPaid(t *testing.T) {
	service, repo, _, _, _ := NewMock(t)
	now := time.Now()

	repo.EXPECT().MarkPaid(gomock.Any(), "inv-1", now).Return(true, nil)
	transitioned, err := service.MarkPaid(context.Background(), "inv-1", now)
	assert.NoError(t, err)
	assert.True(t, transitioned)
}

package userrepo

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"

	"github.com/quickvoicy/quickvoicy/internal/domain"
	"github.com/quickvoicy/quickvoicy/internal/service/userservice"
)

func NewMock(t *testing.T) (*Repository, pgxmock.PgxPoolIface) {
	mockDB, err := pgxmock.NewPool()
	assert.NoError(t, err)
	repo := New(mockDB)
	defer mockDB.Close()

	return repo, mockDB
}

func TestRepository_FindByPlatformID(t *testing.T) {
	repo, mock := NewMock(t)
	now := time.Now()
	wallet := "nostr+walletconnect://abc?relay=wss://relay.example.com&secret=s"

	tests := []struct {
		name       string
		platform   string
		platformID string
		mockSetup  func()
		expectErr  bool
		result     *domain.User
	}{
		{
			name:       "User exists",
			platform:   domain.PlatformTelegram,
			platformID: "42",
			mockSetup: func() {
				rows := pgxmock.NewRows([]string{"id", "platform", "platform_id", "wallet_url", "created_at"}).
					AddRow(1, domain.PlatformTelegram, "42", &wallet, now)
				mock.ExpectQuery(regexp.QuoteMeta("FROM users WHERE platform = $1 AND platform_id = $2")).
					WithArgs(domain.PlatformTelegram, "42").
					WillReturnRows(rows)
			},
			expectErr: false,
			result: &domain.User{
				ID:         1,
				Platform:   domain.PlatformTelegram,
				PlatformID: "42",
				WalletURL:  &wallet,
				CreatedAt:  now,
			},
		},
		{
			name:       "User does not exist",
			platform:   domain.PlatformDiscord,
			platformID: "999",
			mockSetup: func() {
				mock.ExpectQuery(regexp.QuoteMeta("FROM users WHERE platform = $1 AND platform_id = $2")).
					WithArgs(domain.PlatformDiscord, "999").
					WillReturnError(pgx.ErrNoRows)
			},
			expectErr: false,
			result:    nil,
		},
		{
			name:       "Database error",
			platform:   domain.PlatformTelegram,
			platformID: "42",
			mockSetup: func() {
				mock.ExpectQuery(regexp.QuoteMeta("FROM users WHERE platform = $1 AND platform_id = $2")).
					WithArgs(domain.PlatformTelegram, "42").
					WillReturnError(errors.New("database error"))
			},
			expectErr: true,
			result:    nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.mockSetup()
			result, err := repo.FindByPlatformID(context.Background(), tt.platform, tt.platformID)
			if tt.expectErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, tt.result, result)
		})
	}
}

func TestRepository_FindByID(t *testing.T) {
	repo, mock := NewMock(t)
	now := time.Now()

	tests := []struct {
		name      string
		userID    int
		mockSetup func()
		expectErr bool
		result    *domain.User
	}{
		{
			name:   "User exists",
			userID: 1,
			mockSetup: func() {
				rows := pgxmock.NewRows([]string{"id", "platform", "platform_id", "wallet_url", "created_at"}).
					AddRow(1, domain.PlatformTelegram, "42", (*string)(nil), now)
				mock.ExpectQuery(regexp.QuoteMeta("FROM users WHERE id = $1")).
					WithArgs(1).
					WillReturnRows(rows)
			},
			expectErr: false,
			result: &domain.User{
				ID:         1,
				Platform:   domain.PlatformTelegram,
				PlatformID: "42",
				WalletURL:  nil,
				CreatedAt:  now,
			},
		},
		{
			name:   "User does not exist",
			userID: 7,
			mockSetup: func() {
				mock.ExpectQuery(regexp.QuoteMeta("FROM users WHERE id = $1")).
					WithArgs(7).
					WillReturnError(pgx.ErrNoRows)
			},
			expectErr: false,
			result:    nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.mockSetup()
			result, err := repo.FindByID(context.Background(), tt.userID)
			if tt.expectErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, tt.result, result)
		})
	}
}

func TestRepository_Create(t *testing.T) {
	repo, mock := NewMock(t)
	now := time.Now()

	tests := []struct {
		name      string
		user      *domain.User
		mockSetup func()
		expectErr error
	}{
		{
			name: "User created",
			user: &domain.User{Platform: domain.PlatformTelegram, PlatformID: "42"},
			mockSetup: func() {
				rows := pgxmock.NewRows([]string{"id", "created_at"}).AddRow(1, now)
				mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO users (platform, platform_id)")).
					WithArgs(domain.PlatformTelegram, "42").
					WillReturnRows(rows)
			},
			expectErr: nil,
		},
		{
			name: "User already exists",
			user: &domain.User{Platform: domain.PlatformTelegram, PlatformID: "42"},
			mockSetup: func() {
				mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO users (platform, platform_id)")).
					WithArgs(domain.PlatformTelegram, "42").
					WillReturnError(&pgconn.PgError{Code: "23505"})
			},
			expectErr: userservice.ErrUserExists,
		},
		{
			name: "Database error",
			user: &domain.User{Platform: domain.PlatformDiscord, PlatformID: "7"},
			mockSetup: func() {
				mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO users (platform, platform_id)")).
					WithArgs(domain.PlatformDiscord, "7").
					WillReturnError(errors.New("database error"))
			},
			expectErr: errors.New("database error"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.mockSetup()
			result, err := repo.Create(context.Background(), tt.user)
			if tt.expectErr != nil {
				assert.Error(t, err)
				assert.Equal(t, tt.expectErr.Error(), err.Error())
				assert.Nil(t, result)
			} else {
				assert.NoError(t, err)
				assert.Equal(t, 1, result.ID)
				assert.Equal(t, now, result.CreatedAt)
			}
		})
	}
}

func TestRepository_UpdateWalletURL(t *testing.T) {
	repo, mock := NewMock(t)
	wallet := "nostr+walletconnect://abc?relay=wss://relay.example.com&secret=s"

	tests := []struct {
		name      string
		userID    int
		walletURL *string
		mockSetup func()
		expectErr error
	}{
		{
			name:      "Wallet connected",
			userID:    1,
			walletURL: &wallet,
			mockSetup: func() {
				mock.ExpectExec(regexp.QuoteMeta("UPDATE users SET wallet_url = $1 WHERE id = $2")).
					WithArgs(&wallet, 1).
					WillReturnResult(pgxmock.NewResult("UPDATE", 1))
			},
			expectErr: nil,
		},
		{
			name:      "Wallet disconnected",
			userID:    1,
			walletURL: nil,
			mockSetup: func() {
				mock.ExpectExec(regexp.QuoteMeta("UPDATE users SET wallet_url = $1 WHERE id = $2")).
					WithArgs((*string)(nil), 1).
					WillReturnResult(pgxmock.NewResult("UPDATE", 1))
			},
			expectErr: nil,
		},
		{
			name:      "User does not exist",
			userID:    99,
			walletURL: &wallet,
			mockSetup: func() {
				mock.ExpectExec(regexp.QuoteMeta("UPDATE users SET wallet_url = $1 WHERE id = $2")).
					WithArgs(&wallet, 99).
					WillReturnResult(pgxmock.NewResult("UPDATE", 0))
			},
			expectErr: userservice.ErrUserNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.mockSetup()
			err := repo.UpdateWalletURL(context.Background(), tt.userID, tt.walletURL)
			if tt.expectErr != nil {
				assert.ErrorIs(t, err, tt.expectErr)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

package userservice

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/quickvoicy/quickvoicy/internal/domain"
	"github.com/quickvoicy/quickvoicy/internal/wallet"
)

//go:generate mockgen -source=userservice.go -destination=userservice_mock.go -package=userservice

var (
	ErrUserNotFound = errors.New("user not found")
	ErrUserExists   = errors.New("user already exists")
)

type Repo interface {
	FindByPlatformID(ctx context.Context, platform, platformID string) (*domain.User, error)
	FindByID(ctx context.Context, id int) (*domain.User, error)
	Create(ctx context.Context, user *domain.User) (*domain.User, error)
	UpdateWalletURL(ctx context.Context, userID int, walletURL *string) error
}

type Service struct {
	repo   Repo
	dialer wallet.Dialer
}

func New(repo Repo, dialer wallet.Dialer) *Service {
	return &Service{
		repo:   repo,
		dialer: dialer,
	}
}

// GetOrCreate resolves the user behind a chat identity, registering a row on
// first contact. A create that loses a race to a concurrent first message
// falls back to the row the winner inserted.
func (s *Service) GetOrCreate(ctx context.Context, platform, platformID string) (*domain.User, error) {
	user, err := s.repo.FindByPlatformID(ctx, platform, platformID)
	if err != nil {
		return nil, err
	}
	if user != nil {
		return user, nil
	}

	user, err = s.repo.Create(ctx, &domain.User{Platform: platform, PlatformID: platformID})
	if errors.Is(err, ErrUserExists) {
		return s.repo.FindByPlatformID(ctx, platform, platformID)
	}
	if err != nil {
		zap.L().Error("can't create user", zap.Error(err))
		return nil, err
	}
	return user, nil
}

func (s *Service) GetByID(ctx context.Context, id int) (*domain.User, error) {
	return s.repo.FindByID(ctx, id)
}

// Get looks a user up without registering one.
func (s *Service) Get(ctx context.Context, platform, platformID string) (*domain.User, error) {
	user, err := s.repo.FindByPlatformID(ctx, platform, platformID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	return user, nil
}

// ConnectWallet validates the credential with a real connect before storing
// it, so a typo never ends up on file.
func (s *Service) ConnectWallet(ctx context.Context, userID int, uri string) error {
	client, err := s.dialer.Dial(uri)
	if err != nil {
		return err
	}
	if err := client.Connect(ctx); err != nil {
		return err
	}
	client.Disconnect()

	if err := s.repo.UpdateWalletURL(ctx, userID, &uri); err != nil {
		zap.L().Error("can't store wallet credential", zap.Int("userID", userID), zap.Error(err))
		return err
	}
	return nil
}

func (s *Service) DisconnectWallet(ctx context.Context, userID int) error {
	return s.repo.UpdateWalletURL(ctx, userID, nil)
}

package userrepo

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"

	"github.com/quickvoicy/quickvoicy/internal/domain"
	"github.com/quickvoicy/quickvoicy/internal/pg"
	"github.com/quickvoicy/quickvoicy/internal/service/userservice"
)

const uniqueViolationCode = "23505"

type Repository struct {
	db pg.Database
}

func New(db pg.Database) *Repository {
	return &Repository{
		db: db,
	}
}

func (repo *Repository) FindByPlatformID(ctx context.Context, platform, platformID string) (*domain.User, error) {
	query := `
        SELECT id, platform, platform_id, wallet_url, created_at
        FROM users
        WHERE platform = $1 AND platform_id = $2
    `
	var user domain.User
	err := repo.db.QueryRow(ctx, query, platform, platformID).
		Scan(&user.ID, &user.Platform, &user.PlatformID, &user.WalletURL, &user.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		zap.L().Error("can't find user by platform identity", zap.Error(err))
		return nil, err
	}
	return &user, nil
}

func (repo *Repository) FindByID(ctx context.Context, id int) (*domain.User, error) {
	query := `
        SELECT id, platform, platform_id, wallet_url, created_at
        FROM users
        WHERE id = $1
    `
	var user domain.User
	err := repo.db.QueryRow(ctx, query, id).
		Scan(&user.ID, &user.Platform, &user.PlatformID, &user.WalletURL, &user.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		zap.L().Error("can't find user by id", zap.Error(err))
		return nil, err
	}
	return &user, nil
}

func (repo *Repository) Create(ctx context.Context, user *domain.User) (*domain.User, error) {
	query := `
        INSERT INTO users (platform, platform_id)
        VALUES ($1, $2)
        RETURNING id, created_at
    `
	err := repo.db.QueryRow(ctx, query, user.Platform, user.PlatformID).
		Scan(&user.ID, &user.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode {
			return nil, userservice.ErrUserExists
		}
		zap.L().Error("can't save user", zap.Error(err))
		return nil, err
	}
	return user, nil
}

func (repo *Repository) UpdateWalletURL(ctx context.Context, userID int, walletURL *string) error {
	query := `
        UPDATE users
        SET wallet_url = $1
        WHERE id = $2
    `
	tag, err := repo.db.Exec(ctx, query, walletURL, userID)
	if err != nil {
		zap.L().Error("can't update wallet credential", zap.Error(err))
		return err
	}
	if tag.RowsAffected() == 0 {
		return userservice.ErrUserNotFound
	}
	return nil
}

package service

import (
	"github.com/quickvoicy/quickvoicy/internal/repo"
	"github.com/quickvoicy/quickvoicy/internal/service/invoiceservice"
	"github.com/quickvoicy/quickvoicy/internal/service/userservice"
	"github.com/quickvoicy/quickvoicy/internal/wallet"
)

type Services struct {
	UserService    *userservice.Service
	InvoiceService *invoiceservice.Service
}

func New(repo *repo.Repositories, dialer wallet.Dialer) *Services {
	return &Services{
		UserService:    userservice.New(repo.UserRepo, dialer),
		InvoiceService: invoiceservice.New(repo.InvoiceRepo, repo.UserRepo, dialer),
	}
}

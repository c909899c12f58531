package repo

import (
	"github.com/quickvoicy/quickvoicy/internal/pg"
	invoicerepo "github.com/quickvoicy/quickvoicy/internal/repo/invoice-repo"
	userrepo "github.com/quickvoicy/quickvoicy/internal/repo/user-repo"
)

type Repositories struct {
	UserRepo    *userrepo.Repository
	InvoiceRepo *invoicerepo.Repository
}

func New(conn pg.Database, txManager pg.TXManager) *Repositories {
	return &Repositories{
		UserRepo:    userrepo.New(conn),
		InvoiceRepo: invoicerepo.New(conn, txManager),
	}
}

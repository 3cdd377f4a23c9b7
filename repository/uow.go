package repository

import (
	"context"
	"database/sql"

	"github.com/uptrace/bun"
)

// UnitOfWork groups repository mutations into one database transaction.
// Repositories handed to fn are bound to the transaction; the whole unit
// commits together or rolls back on error.
type UnitOfWork struct {
	db *bun.DB
}

// NewUnitOfWork returns a UnitOfWork over db.
func NewUnitOfWork(db *bun.DB) *UnitOfWork {
	return &UnitOfWork{db: db}
}

// Repos bundles transaction-bound repositories for one unit of work.
type Repos struct {
	Students       *CRUD[Student]
	Staffs         *CRUD[Staff]
	Courses        *CRUD[Course]
	PaymentMethods *CRUD[PaymentMethod]
	Registrations  *CRUD[CourseRegistration]
}

// NewRepos builds the repository bundle over db, which may be a *bun.DB or
// an open transaction.
func NewRepos(db bun.IDB) *Repos {
	return &Repos{
		Students:       NewCRUD[Student](db),
		Staffs:         NewCRUD[Staff](db),
		Courses:        NewCRUD[Course](db),
		PaymentMethods: NewCRUD[PaymentMethod](db),
		Registrations:  NewCRUD[CourseRegistration](db),
	}
}

// Do runs fn inside a transaction, handing it repositories bound to that
// transaction.
func (u *UnitOfWork) Do(ctx context.Context, fn func(ctx context.Context, repos *Repos) error) error {
	return u.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		return fn(ctx, NewRepos(tx))
	})
}

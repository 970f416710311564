package repository

import (
	"context"

	"slotbook/pkg/config"
	mongotx "slotbook/pkg/db/mongo"

	"go.mongodb.org/mongo-driver/mongo"
)

// Transactor runs fn atomically. The mongo implementation uses a multi
// document transaction; the in-memory one a store-wide mutex. Repositories
// invoked with the ctx given to fn participate in the same transaction.
type Transactor interface {
	WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

type mongoTransactor struct {
	manager mongotx.TransactionManager
}

func NewMongoTransactor(cfg *config.Config) Transactor {
	return &mongoTransactor{manager: mongotx.NewTransactionManager(cfg.Client.Mongo)}
}

func (t *mongoTransactor) WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return t.manager.ExecuteTransaction(ctx, func(sessCtx mongo.SessionContext) error {
		return fn(sessCtx)
	})
}

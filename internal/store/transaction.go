package store

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

type txKey struct{}

var errNoTransaction = errors.New("no transaction in progress")

// Tx is a gorm transaction carried by a context. Stores pick it up through FromContext.
type Tx struct {
	id  int64
	db  *gorm.DB
	log *zap.SugaredLogger
}

func (t *Tx) finish(op string, fn func() *gorm.DB) error {
	if t.db == nil {
		return errNoTransaction
	}
	if err := fn().Error; err != nil {
		t.log.Errorw("transaction "+op+" failed", "tx_id", t.id, "error", err)
		return err
	}
	t.log.Debugw("transaction "+op, "tx_id", t.id)
	t.db = nil
	return nil
}

func (t *Tx) Commit() error {
	return t.finish("commit", func() *gorm.DB { return t.db.Commit() })
}

func (t *Tx) Rollback() error {
	return t.finish("rollback", func() *gorm.DB { return t.db.Rollback() })
}

// Commit commits the transaction held by ctx, if any, and returns a context without it.
func Commit(ctx context.Context) (context.Context, error) {
	tx, ok := ctx.Value(txKey{}).(*Tx)
	if !ok || tx == nil {
		return ctx, nil
	}
	return context.WithValue(ctx, txKey{}, (*Tx)(nil)), tx.Commit()
}

// Rollback aborts the transaction held by ctx, if any, and returns a context without it.
func Rollback(ctx context.Context) (context.Context, error) {
	tx, ok := ctx.Value(txKey{}).(*Tx)
	if !ok || tx == nil {
		return ctx, nil
	}
	return context.WithValue(ctx, txKey{}, (*Tx)(nil)), tx.Rollback()
}

// FromContext returns the open transaction of ctx or nil.
func FromContext(ctx context.Context) *gorm.DB {
	if tx, ok := ctx.Value(txKey{}).(*Tx); ok && tx != nil {
		return tx.db
	}
	return nil
}

func newTransactionContext(ctx context.Context, db *gorm.DB) (context.Context, error) {
	// nested calls join the outer transaction
	if FromContext(ctx) != nil {
		return ctx, nil
	}

	gtx := db.Session(&gorm.Session{Context: ctx}).Begin()
	if gtx.Error != nil {
		return ctx, fmt.Errorf("begin transaction: %w", gtx.Error)
	}

	// txid_current only exists on postgres
	var txid struct{ ID int64 }
	if db.Dialector.Name() == "postgres" {
		gtx.Raw("select txid_current() as id").Scan(&txid)
	}

	return context.WithValue(ctx, txKey{}, &Tx{id: txid.ID, db: gtx, log: zap.S().Named("store")}), nil
}

// withTransaction runs fn inside a transaction, rolling back when fn fails.
func withTransaction(ctx context.Context, db *gorm.DB, fn func(ctx context.Context) error) error {
	if FromContext(ctx) != nil {
		return fn(ctx)
	}

	txCtx, err := newTransactionContext(ctx, db)
	if err != nil {
		return err
	}
	if err := fn(txCtx); err != nil {
		_, _ = Rollback(txCtx)
		return err
	}
	_, err = Commit(txCtx)
	return err
}

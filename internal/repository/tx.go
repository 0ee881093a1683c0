package repository

import (
	"context"
	"database/sql"
	"fmt"
)

type txKey struct{}

// dbtx は*sql.DBと*sql.Txの共通部分。
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// conn はコンテキストにトランザクションがあればそれを、なければdbを返す。
func conn(ctx context.Context, db *sql.DB) dbtx {
	if tx, ok := ctx.Value(txKey{}).(*sql.Tx); ok {
		return tx
	}
	return db
}

// TxManager はPostgreSQLのトランザクション境界を管理する。
type TxManager struct {
	db TxBeginner
}

// NewTxManager はTxManagerを生成する。
func NewTxManager(db TxBeginner) *TxManager {
	return &TxManager{db: db}
}

// WithinTx はfnをトランザクション内で実行する。
// fnがnilを返せばコミットし、エラーを返せばロールバックする。
// 既にトランザクション内であればそのトランザクションに参加する。
func (m *TxManager) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(txKey{}).(*sql.Tx); ok {
		return fn(ctx)
	}

	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(context.WithValue(ctx, txKey{}, tx)); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// compile-time interface check
var _ Transactor = (*TxManager)(nil)

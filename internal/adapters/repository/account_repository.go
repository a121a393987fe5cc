package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/goban/core/internal/domain/entities"
	"github.com/goban/core/internal/infrastructure/database"
	"github.com/goban/core/internal/ports"
)

const accountColumns = `id, uid, uname, face, cookies, login, level, vip_type, vip_status,
	login_time, expire_time, created_at, updated_at`

// AccountRepositoryImpl implements the AccountRepository interface
type AccountRepositoryImpl struct {
	db *sqlx.DB
}

// NewAccountRepository creates a new account repository
func NewAccountRepository(db *sqlx.DB) ports.AccountRepository {
	return &AccountRepositoryImpl{db: db}
}

func (r *AccountRepositoryImpl) Create(ctx context.Context, account *entities.Account) error {
	query := r.db.Rebind(`
		INSERT INTO accounts (uid, uname, face, cookies, login, level, vip_type, vip_status,
			login_time, expire_time, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id`)

	now := time.Now().UTC()
	account.CreatedAt = now
	account.UpdatedAt = now

	err := r.db.QueryRowContext(ctx, query,
		account.UID, account.Uname, account.Face, account.Cookies, account.Login,
		account.Level, account.VipType, account.VipStatus,
		account.LoginTime.UTC(), account.ExpireTime.UTC(), account.CreatedAt, account.UpdatedAt,
	).Scan(&account.ID)
	if err != nil {
		return fmt.Errorf("create account: %w", err)
	}

	return nil
}

func (r *AccountRepositoryImpl) GetByID(ctx context.Context, id int64) (*entities.Account, error) {
	query := r.db.Rebind(`SELECT ` + accountColumns + ` FROM accounts WHERE id = ?`)

	var account entities.Account
	err := r.db.GetContext(ctx, &account, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, entities.ErrAccountNotFound
		}
		return nil, fmt.Errorf("get account by id: %w", err)
	}

	return &account, nil
}

func (r *AccountRepositoryImpl) GetByUID(ctx context.Context, uid int64) (*entities.Account, error) {
	query := r.db.Rebind(`SELECT ` + accountColumns + ` FROM accounts WHERE uid = ?`)

	var account entities.Account
	err := r.db.GetContext(ctx, &account, query, uid)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, entities.ErrAccountNotFound
		}
		return nil, fmt.Errorf("get account by uid: %w", err)
	}

	return &account, nil
}

func (r *AccountRepositoryImpl) Update(ctx context.Context, account *entities.Account) error {
	query := r.db.Rebind(`
		UPDATE accounts
		SET uname = ?, face = ?, cookies = ?, login = ?, level = ?, vip_type = ?, vip_status = ?,
			login_time = ?, expire_time = ?, updated_at = ?
		WHERE id = ?`)

	account.UpdatedAt = time.Now().UTC()

	result, err := r.db.ExecContext(ctx, query,
		account.Uname, account.Face, account.Cookies, account.Login, account.Level,
		account.VipType, account.VipStatus, account.LoginTime.UTC(), account.ExpireTime.UTC(),
		account.UpdatedAt, account.ID,
	)
	if err != nil {
		return fmt.Errorf("update account: %w", err)
	}

	return requireAffected(result, entities.ErrAccountNotFound)
}

// Delete removes the account together with its tasks and their history.
func (r *AccountRepositoryImpl) Delete(ctx context.Context, id int64) error {
	return database.WithTransaction(ctx, r.db, func(tx *sqlx.Tx) error {
		taskIDs := `SELECT id FROM monitor_tasks WHERE user_id = ?`
		statements := []string{
			`DELETE FROM report_records WHERE task_id IN (` + taskIDs + `)`,
			`DELETE FROM monitor_logs WHERE task_id IN (` + taskIDs + `)`,
			`DELETE FROM monitor_tasks WHERE user_id = ?`,
		}
		for _, stmt := range statements {
			if _, err := tx.ExecContext(ctx, tx.Rebind(stmt), id); err != nil {
				return fmt.Errorf("delete account dependents: %w", err)
			}
		}

		result, err := tx.ExecContext(ctx, tx.Rebind(`DELETE FROM accounts WHERE id = ?`), id)
		if err != nil {
			return fmt.Errorf("delete account: %w", err)
		}
		return requireAffected(result, entities.ErrAccountNotFound)
	})
}

func (r *AccountRepositoryImpl) List(ctx context.Context) ([]*entities.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts ORDER BY created_at DESC, id DESC`

	accounts := []*entities.Account{}
	if err := r.db.SelectContext(ctx, &accounts, query); err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}

	return accounts, nil
}

func requireAffected(result sql.Result, notFound error) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return notFound
	}

	return nil
}

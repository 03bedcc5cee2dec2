package sqlxrepos

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/masomo-portal/core/account"
	"github.com/trezcool/masomo-portal/core/session"
)

const accountColumns = `id, name, username, email, role, avatar, attributes, is_active, is_demo,
	password_hash, created_at, updated_at, last_login`

type (
	accountRepository struct {
		db *sqlx.DB
	}

	accountRow struct {
		ID           string      `db:"id"`
		Name         string      `db:"name"`
		Username     string      `db:"username"`
		Email        null.String `db:"email"`
		Role         string      `db:"role"`
		Avatar       string      `db:"avatar"`
		Attributes   null.String `db:"attributes"`
		IsActive     bool        `db:"is_active"`
		IsDemo       bool        `db:"is_demo"`
		PasswordHash string      `db:"password_hash"`
		CreatedAt    time.Time   `db:"created_at"`
		UpdatedAt    time.Time   `db:"updated_at"`
		LastLogin    null.Time   `db:"last_login"`
	}
)

func NewAccountRepository(db *sqlx.DB) account.Repository {
	return &accountRepository{db: db}
}

func toRow(acc account.Account) (accountRow, error) {
	row := accountRow{
		ID:           acc.ID,
		Name:         acc.Name,
		Username:     acc.Username,
		Email:        null.NewString(acc.Email, acc.Email != ""),
		Role:         string(acc.Role),
		Avatar:       acc.Avatar,
		IsActive:     acc.IsActive,
		IsDemo:       acc.IsDemo,
		PasswordHash: string(acc.PasswordHash),
		CreatedAt:    acc.CreatedAt,
		UpdatedAt:    acc.UpdatedAt,
		LastLogin:    null.NewTime(acc.LastLogin, !acc.LastLogin.IsZero()),
	}
	if acc.Attributes != nil {
		attrs, err := json.Marshal(acc.Attributes)
		if err != nil {
			return accountRow{}, errors.Wrap(err, "encoding attributes")
		}
		row.Attributes = null.StringFrom(string(attrs))
	}
	return row, nil
}

func (row accountRow) toAccount() (account.Account, error) {
	role, err := session.ParseRole(row.Role)
	if err != nil {
		return account.Account{}, err
	}
	acc := account.Account{
		ID:           row.ID,
		Name:         row.Name,
		Username:     row.Username,
		Email:        row.Email.String,
		Role:         role,
		Avatar:       row.Avatar,
		IsActive:     row.IsActive,
		IsDemo:       row.IsDemo,
		PasswordHash: []byte(row.PasswordHash),
		CreatedAt:    row.CreatedAt.UTC(),
		UpdatedAt:    row.UpdatedAt.UTC(),
	}
	if row.LastLogin.Valid {
		acc.LastLogin = row.LastLogin.Time.UTC()
	}
	if row.Attributes.Valid {
		acc.Attributes = new(session.Attributes)
		if err = json.Unmarshal([]byte(row.Attributes.String), acc.Attributes); err != nil {
			return account.Account{}, errors.Wrap(err, "decoding attributes")
		}
	}
	return acc, nil
}

func (repo *accountRepository) CheckUniqueness(ctx context.Context, username, email string, excludedIDs ...string) error {
	q := `SELECT username, email FROM account WHERE (username = ? OR (email IS NOT NULL AND email = ?))`
	args := []interface{}{username, email}
	if len(excludedIDs) > 0 {
		inQ, inArgs, err := sqlx.In(` AND id NOT IN (?)`, excludedIDs)
		if err != nil {
			return errors.Wrap(err, "checking uniqueness")
		}
		q += inQ
		args = append(args, inArgs...)
	}

	var rows []struct {
		Username string      `db:"username"`
		Email    null.String `db:"email"`
	}
	if err := repo.db.SelectContext(ctx, &rows, repo.db.Rebind(q), args...); err != nil {
		return errors.Wrap(err, "checking uniqueness")
	}
	for _, row := range rows {
		if row.Username == username {
			return account.ErrUsernameExists
		}
		if email != "" && row.Email.String == email {
			return account.ErrEmailExists
		}
	}
	return nil
}

func (repo *accountRepository) CreateAccount(ctx context.Context, acc account.Account) (account.Account, error) {
	row, err := toRow(acc)
	if err != nil {
		return account.Account{}, err
	}
	q := `INSERT INTO account (` + accountColumns + `) VALUES (
		:id, :name, :username, :email, :role, :avatar, :attributes, :is_active, :is_demo,
		:password_hash, :created_at, :updated_at, :last_login)`
	if _, err = repo.db.NamedExecContext(ctx, q, row); err != nil {
		return account.Account{}, errors.Wrap(err, "inserting account")
	}
	return acc, nil
}

func (repo *accountRepository) QueryAccounts(ctx context.Context) ([]account.Account, error) {
	var rows []accountRow
	q := `SELECT ` + accountColumns + ` FROM account ORDER BY created_at, username`
	if err := repo.db.SelectContext(ctx, &rows, q); err != nil {
		return nil, errors.Wrap(err, "querying accounts")
	}

	accs := make([]account.Account, 0, len(rows))
	for _, row := range rows {
		acc, err := row.toAccount()
		if err != nil {
			return nil, err
		}
		accs = append(accs, acc)
	}
	return accs, nil
}

func (repo *accountRepository) GetAccount(ctx context.Context, filter account.GetFilter) (account.Account, error) {
	if filter.IsEmpty() {
		return account.Account{}, account.ErrNotFound
	}

	q := `SELECT ` + accountColumns + ` FROM account WHERE 1 = 1`
	var args []interface{}
	if filter.ID != "" {
		q += ` AND id = ?`
		args = append(args, filter.ID)
	}
	if filter.UsernameOrEmail != "" {
		q += ` AND (username = ? OR email = ?)`
		args = append(args, filter.UsernameOrEmail, filter.UsernameOrEmail)
	}
	q += ` LIMIT 1`

	var row accountRow
	if err := repo.db.GetContext(ctx, &row, repo.db.Rebind(q), args...); err != nil {
		if err == sql.ErrNoRows {
			return account.Account{}, account.ErrNotFound
		}
		return account.Account{}, errors.Wrap(err, "getting account")
	}
	return row.toAccount()
}

func (repo *accountRepository) UpdateAccount(ctx context.Context, acc account.Account) (account.Account, error) {
	row, err := toRow(acc)
	if err != nil {
		return account.Account{}, err
	}
	q := `UPDATE account SET
		name = :name, username = :username, email = :email, role = :role, avatar = :avatar,
		attributes = :attributes, is_active = :is_active, is_demo = :is_demo,
		password_hash = :password_hash, updated_at = :updated_at, last_login = :last_login
		WHERE id = :id`
	res, err := repo.db.NamedExecContext(ctx, q, row)
	if err != nil {
		return account.Account{}, errors.Wrap(err, "updating account")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return account.Account{}, account.ErrNotFound
	}
	return acc, nil
}

package inmemdb

import (
	"context"

	"github.com/trezcool/masomo-portal/core/account"
)

type accountRepository struct {
	db *accountTable
}

func NewAccountRepository(db *DB) account.Repository {
	return &accountRepository{db: db.account}
}

// query returns copies of the stored accounts in insertion order. The caller must hold the lock.
func (repo *accountRepository) query() []account.Account {
	accs := make([]account.Account, 0, len(repo.db.order))
	for _, id := range repo.db.order {
		accs = append(accs, *repo.db.table[id])
	}
	return accs
}

func (repo *accountRepository) CheckUniqueness(_ context.Context, username, email string, excludedIDs ...string) error {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	for _, acc := range repo.query() {
		if isExcluded(acc.ID, excludedIDs) {
			continue
		}
		if acc.Username == username {
			return account.ErrUsernameExists
		}
		if email != "" && acc.Email == email {
			return account.ErrEmailExists
		}
	}
	return nil
}

func (repo *accountRepository) CreateAccount(_ context.Context, acc account.Account) (account.Account, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.table[acc.ID]; !ok {
		repo.db.order = append(repo.db.order, acc.ID)
	}
	repo.db.table[acc.ID] = &acc
	return acc, nil
}

func (repo *accountRepository) QueryAccounts(_ context.Context) ([]account.Account, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()
	return repo.query(), nil
}

func (repo *accountRepository) GetAccount(_ context.Context, filter account.GetFilter) (account.Account, error) {
	if filter.IsEmpty() {
		return account.Account{}, account.ErrNotFound
	}

	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	for _, acc := range repo.query() {
		if filter.ID != "" && acc.ID != filter.ID {
			continue
		}
		if filter.UsernameOrEmail != "" &&
			acc.Username != filter.UsernameOrEmail &&
			(acc.Email == "" || acc.Email != filter.UsernameOrEmail) {
			continue
		}
		return acc, nil
	}
	return account.Account{}, account.ErrNotFound
}

func (repo *accountRepository) UpdateAccount(_ context.Context, acc account.Account) (account.Account, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.table[acc.ID]; !ok {
		return account.Account{}, account.ErrNotFound
	}
	repo.db.table[acc.ID] = &acc
	return acc, nil
}

func isExcluded(id string, excludedIDs []string) bool {
	for _, exclID := range excludedIDs {
		if id == exclID {
			return true
		}
	}
	return false
}

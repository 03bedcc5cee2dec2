package inmemdb

import (
	"sync"

	"github.com/trezcool/masomo-portal/core/account"
)

type (
	DB struct {
		account *accountTable
	}

	accountTable struct {
		mutex sync.RWMutex
		table map[string]*account.Account
		order []string // insertion order
	}
)

func Open() *DB {
	return &DB{
		account: &accountTable{table: make(map[string]*account.Account)},
	}
}

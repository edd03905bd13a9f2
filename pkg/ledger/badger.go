package ledger

import (
	"math/big"

	badger "github.com/dgraph-io/badger/v3"
	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
)

var balancePrefix = []byte("ledger:balance:")

// BadgerStore persists balances in a badger database under
// "ledger:balance:<addr>" keys.
type BadgerStore struct {
	db *badger.DB
}

// NewBadgerStore opens (or creates) the database at path.
func NewBadgerStore(path string) (*BadgerStore, error) {
	db, err := badger.Open(badger.DefaultOptions(path).WithLogger(nil))
	if err != nil {
		return nil, errors.Wrap(err, "ledger: open badger")
	}
	return &BadgerStore{db: db}, nil
}

// NewBadgerStoreInMemory opens an ephemeral database, used by tests.
func NewBadgerStoreInMemory() (*BadgerStore, error) {
	db, err := badger.Open(badger.DefaultOptions("").WithInMemory(true).WithLogger(nil))
	if err != nil {
		return nil, errors.Wrap(err, "ledger: open badger")
	}
	return &BadgerStore{db: db}, nil
}

func balanceKey(addr common.Address) []byte {
	return append(append([]byte(nil), balancePrefix...), addr.Bytes()...)
}

func (s *BadgerStore) Put(addr common.Address, balance *big.Int) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(balanceKey(addr), balance.Bytes())
	})
}

func (s *BadgerStore) Load(fn func(addr common.Address, balance *big.Int)) error {
	return s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = balancePrefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			addr := common.BytesToAddress(item.Key()[len(balancePrefix):])
			if err := item.Value(func(val []byte) error {
				fn(addr, new(big.Int).SetBytes(val))
				return nil
			}); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *BadgerStore) Close() error {
	return s.db.Close()
}

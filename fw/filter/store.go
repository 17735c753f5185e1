package filter

import (
	"encoding/json"
	"fmt"
	"slices"
	"sync"

	"github.com/dgraph-io/badger/v4"
)

// Store persists the rule set across restarts.
type Store interface {
	// Load returns the saved rules in evaluation order.
	Load() ([]Rule, error)
	// Save replaces the saved rules.
	Save(rules []Rule) error
	Close() error
}

// MemoryStore keeps the rule set in memory only.
type MemoryStore struct {
	mutex sync.Mutex
	rules []Rule
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Load() ([]Rule, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return slices.Clone(s.rules), nil
}

func (s *MemoryStore) Save(rules []Rule) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.rules = slices.Clone(rules)
	return nil
}

func (s *MemoryStore) Close() error {
	return nil
}

// rulePrefix is the key prefix of rule entries in the badger database.
var rulePrefix = []byte("rule/")

// BadgerStore keeps the rule set in a badger database, one key per rule.
// Keys carry the rule position so iteration returns evaluation order.
type BadgerStore struct {
	db *badger.DB
}

func NewBadgerStore(path string) (*BadgerStore, error) {
	opts := badger.DefaultOptions(path).WithLoggingLevel(badger.WARNING)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}
	return &BadgerStore{db: db}, nil
}

func (s *BadgerStore) Close() error {
	return s.db.Close()
}

func (s *BadgerStore) Load() (rules []Rule, err error) {
	err = s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(rulePrefix); it.ValidForPrefix(rulePrefix); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				var rule Rule
				if err := json.Unmarshal(val, &rule); err != nil {
					return fmt.Errorf("corrupt rule %s: %w", it.Item().Key(), err)
				}
				rules = append(rules, rule)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	return
}

func (s *BadgerStore) Save(rules []Rule) error {
	return s.db.Update(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false // keys only
		it := txn.NewIterator(opts)
		for it.Seek(rulePrefix); it.ValidForPrefix(rulePrefix); it.Next() {
			if err := txn.Delete(it.Item().KeyCopy(nil)); err != nil {
				it.Close()
				return err
			}
		}
		it.Close()

		for i, rule := range rules {
			val, err := json.Marshal(rule)
			if err != nil {
				return err
			}
			key := fmt.Appendf(slices.Clone(rulePrefix), "%08d", i)
			if err := txn.Set(key, val); err != nil {
				return err
			}
		}
		return nil
	})
}

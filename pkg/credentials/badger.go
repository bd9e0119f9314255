package credentials

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	badger "github.com/dgraph-io/badger/v4"
)

// storeKeyPrefix namespaces authoritative records inside the shared badger DB,
// keeping them apart from cache keys.
const storeKeyPrefix = "mqtt:"

// BadgerStore is an embedded key-value credential store. It implements the same
// Store contract as PostgresStore so deployments without a relational database can
// run self-contained.
type BadgerStore struct {
	db *badger.DB
}

// NewBadgerStore opens (or creates) a badger database at path.
func NewBadgerStore(path string) (*BadgerStore, error) {
	opts := badger.DefaultOptions(path)
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger store: %w", err)
	}

	return &BadgerStore{db: db}, nil
}

// NewBadgerStoreInMemory opens a non-persistent store, used by tests.
func NewBadgerStoreInMemory() (*BadgerStore, error) {
	opts := badger.DefaultOptions("").WithInMemory(true)
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open in-memory badger store: %w", err)
	}

	return &BadgerStore{db: db}, nil
}

func storeKey(username string) []byte {
	return []byte(storeKeyPrefix + username)
}

// GetByUsername fetches a credential by username.
func (s *BadgerStore) GetByUsername(ctx context.Context, username string) (*Credential, error) {
	var cred Credential
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(storeKey(username))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &cred)
		})
	})

	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrNotFound
	} else if err != nil {
		return nil, fmt.Errorf("failed to get mqtt user: %w", err)
	}

	return &cred, nil
}

// Create inserts a new credential. The existence check and the write share one
// serializable transaction, so concurrent creates of the same username cannot both
// succeed.
func (s *BadgerStore) Create(ctx context.Context, username, secret string, isSuperuser bool) error {
	cred := Credential{
		Username:    username,
		Secret:      secret,
		IsSuperuser: isSuperuser,
	}

	value, err := json.Marshal(&cred)
	if err != nil {
		return fmt.Errorf("failed to encode mqtt user: %w", err)
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		_, err := txn.Get(storeKey(username))
		if err == nil {
			return ErrConflict
		}
		if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		return txn.Set(storeKey(username), value)
	})

	if errors.Is(err, ErrConflict) {
		return ErrConflict
	} else if err != nil {
		return fmt.Errorf("failed to create mqtt user: %w", err)
	}

	return nil
}

// Delete removes the credential for username.
func (s *BadgerStore) Delete(ctx context.Context, username string) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(storeKey(username)); err != nil {
			return err
		}
		return txn.Delete(storeKey(username))
	})

	if errors.Is(err, badger.ErrKeyNotFound) {
		return ErrNotFound
	} else if err != nil {
		return fmt.Errorf("failed to delete mqtt user: %w", err)
	}

	return nil
}

// List returns every credential under the store prefix.
func (s *BadgerStore) List(ctx context.Context) ([]*Credential, error) {
	var creds []*Credential
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(storeKeyPrefix)

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			var c Credential
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &c)
			})
			if err != nil {
				return err
			}
			creds = append(creds, &c)
		}
		return nil
	})

	if err != nil {
		return nil, fmt.Errorf("failed to list mqtt users: %w", err)
	}

	return creds, nil
}

// HealthCheck reports whether the database is still open.
func (s *BadgerStore) HealthCheck(ctx context.Context) error {
	if s.db.IsClosed() {
		return fmt.Errorf("badger store is closed")
	}
	return nil
}

// Close flushes and closes the database.
func (s *BadgerStore) Close() error {
	return s.db.Close()
}

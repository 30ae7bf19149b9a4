package multisig

import (
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/Charli3-Official/charli3-push-oracle-sdk/internal/core/tx"
)

var sessionsBucket = []byte("sessions")

// Store persists signing envelopes in a bbolt file, keyed by transaction
// hash.
type Store struct {
	db *bolt.DB
}

// OpenStore opens (or creates) the session database at path.
func OpenStore(path string) (*Store, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open session store: %w", err)
	}
	err = db.Update(func(btx *bolt.Tx) error {
		_, err := btx.CreateBucketIfNotExists(sessionsBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

// Close releases the database file.
func (s *Store) Close() error {
	return s.db.Close()
}

// Put writes the envelope for hash, replacing any previous version.
func (s *Store) Put(hash tx.TxHash, env *Envelope) error {
	data, err := env.Marshal()
	if err != nil {
		return err
	}
	return s.db.Update(func(btx *bolt.Tx) error {
		return btx.Bucket(sessionsBucket).Put(hash[:], data)
	})
}

// Get loads the envelope for hash. ErrSessionNotFound when absent.
func (s *Store) Get(hash tx.TxHash) (*Envelope, error) {
	var data []byte
	err := s.db.View(func(btx *bolt.Tx) error {
		raw := btx.Bucket(sessionsBucket).Get(hash[:])
		if raw != nil {
			data = append([]byte(nil), raw...)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if data == nil {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, hash)
	}
	return UnmarshalEnvelope(data)
}

// Delete removes the session for hash. Deleting a missing session is
// not an error.
func (s *Store) Delete(hash tx.TxHash) error {
	return s.db.Update(func(btx *bolt.Tx) error {
		return btx.Bucket(sessionsBucket).Delete(hash[:])
	})
}

// List returns the hashes of every open session.
func (s *Store) List() ([]tx.TxHash, error) {
	var out []tx.TxHash
	err := s.db.View(func(btx *bolt.Tx) error {
		return btx.Bucket(sessionsBucket).ForEach(func(k, _ []byte) error {
			if len(k) != tx.TxHashSize {
				return fmt.Errorf("%w: malformed session key", ErrEnvelope)
			}
			var h tx.TxHash
			copy(h[:], k)
			out = append(out, h)
			return nil
		})
	})
	return out, err
}

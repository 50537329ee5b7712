// Package contactsbolt persists peers we have been connected to so a
// restarted node can bootstrap without a seed.
package contactsbolt

import (
	"encoding/binary"
	"errors"
	"os"
	"path/filepath"
	"time"

	"github.com/fxamacker/cbor/v2"
	bolt "go.etcd.io/bbolt"

	"routing-node/internal/types"
)

const (
	bByEP = "contacts_by_ep"
	bByTS = "contacts_by_ts"

	defaultTO = 2 * time.Second
)

var ErrEmptyPath = errors.New("contactsbolt: empty db path")

// Contact is one remembered endpoint.
type Contact struct {
	_        struct{} `cbor:",toarray"`
	Endpoint types.Endpoint
	Name     types.Name
	LastSeen int64 // unix nanoseconds
	Failures int
}

// Store is a BoltDB-backed contact book ordered by recency.
type Store struct {
	db *bolt.DB
}

// Open opens (or creates) a BoltDB database at path.
func Open(path string) (*Store, error) {
	if path == "" {
		return nil, ErrEmptyPath
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: defaultTO})
	if err != nil {
		return nil, err
	}

	s := &Store{db: db}
	if err := s.db.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists([]byte(bByEP)); err != nil {
			return err
		}
		_, err := tx.CreateBucketIfNotExists([]byte(bByTS))
		return err
	}); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() error { return s.db.Close() }

// Record remembers that ep, owned by name, was reachable at seen. It resets
// the failure count.
func (s *Store) Record(ep types.Endpoint, name types.Name, seen time.Time) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		c := Contact{Endpoint: ep, Name: name, LastSeen: seen.UnixNano()}
		return put(tx, c)
	})
}

// MarkFailure counts a failed dial to ep. Unknown endpoints are ignored.
func (s *Store) MarkFailure(ep types.Endpoint) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		c, ok, err := get(tx, ep)
		if err != nil || !ok {
			return err
		}
		c.Failures++
		return put(tx, c)
	})
}

func (s *Store) Remove(ep types.Endpoint) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		c, ok, err := get(tx, ep)
		if err != nil || !ok {
			return err
		}
		if err := tx.Bucket([]byte(bByTS)).Delete(tsKey(c.LastSeen, ep)); err != nil {
			return err
		}
		return tx.Bucket([]byte(bByEP)).Delete([]byte(ep.String()))
	})
}

// Candidates returns up to limit contacts, most recently seen first,
// skipping those that failed more than maxFailures times.
func (s *Store) Candidates(maxFailures, limit int) ([]Contact, error) {
	if limit <= 0 {
		limit = 64
	}
	out := make([]Contact, 0, min(limit, 64))
	err := s.db.View(func(tx *bolt.Tx) error {
		byTS := tx.Bucket([]byte(bByTS))
		byEP := tx.Bucket([]byte(bByEP))
		cur := byTS.Cursor()
		for k, _ := cur.Last(); k != nil && len(out) < limit; k, _ = cur.Prev() {
			ep := splitTSKey(k)
			if ep == "" {
				continue
			}
			raw := byEP.Get([]byte(ep))
			if raw == nil {
				continue
			}
			var c Contact
			if err := cbor.Unmarshal(raw, &c); err != nil {
				// skip corrupt records rather than failing bootstrap
				continue
			}
			if c.Failures > maxFailures {
				continue
			}
			out = append(out, c)
		}
		return nil
	})
	return out, err
}

func (s *Store) Len() (int, error) {
	var n int
	err := s.db.View(func(tx *bolt.Tx) error {
		n = tx.Bucket([]byte(bByEP)).Stats().KeyN
		return nil
	})
	return n, err
}

func get(tx *bolt.Tx, ep types.Endpoint) (Contact, bool, error) {
	raw := tx.Bucket([]byte(bByEP)).Get([]byte(ep.String()))
	if raw == nil {
		return Contact{}, false, nil
	}
	var c Contact
	if err := cbor.Unmarshal(raw, &c); err != nil {
		return Contact{}, false, err
	}
	return c, true, nil
}

// put writes c and keeps the recency index pointing at its latest stamp.
func put(tx *bolt.Tx, c Contact) error {
	byEP := tx.Bucket([]byte(bByEP))
	byTS := tx.Bucket([]byte(bByTS))

	if old, ok, err := get(tx, c.Endpoint); err == nil && ok {
		if err := byTS.Delete(tsKey(old.LastSeen, c.Endpoint)); err != nil {
			return err
		}
		if c.LastSeen == 0 {
			c.LastSeen = old.LastSeen
		}
	}

	val, err := cbor.Marshal(c)
	if err != nil {
		return err
	}
	if err := byEP.Put([]byte(c.Endpoint.String()), val); err != nil {
		return err
	}
	return byTS.Put(tsKey(c.LastSeen, c.Endpoint), nil)
}

func tsKey(ts int64, ep types.Endpoint) []byte {
	// big-endian timestamp for ordering; 0x00 separates the endpoint.
	s := ep.String()
	b := make([]byte, 8+1+len(s))
	binary.BigEndian.PutUint64(b[:8], uint64(ts))
	b[8] = 0
	copy(b[9:], s)
	return b
}

func splitTSKey(k []byte) string {
	if len(k) < 9 {
		return ""
	}
	return string(k[9:])
}

// Package histstore persists line history in a bbolt database, so that it
// survives across sessions.
package histstore

import (
	"encoding/binary"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"
)

const bucketCmd = "cmd"

// Store is a command history backed by a database file.
type Store struct {
	db *bolt.DB
}

// Open opens the database at path, creating it if needed. It fails if another
// process holds the database for longer than a second.
func Open(path string) (*Store, error) {
	db, err := bolt.Open(path, 0644, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open history database: %w", err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(bucketCmd))
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize command history table: %w", err)
	}
	return &Store{db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// AddCmd adds a new command to the command history and returns its sequence
// number.
func (s *Store) AddCmd(cmd string) (int, error) {
	var (
		seq uint64
		err error
	)
	err = s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucketCmd))
		seq, err = b.NextSequence()
		if err != nil {
			return err
		}
		return b.Put(marshalSeq(seq), []byte(cmd))
	})
	return int(seq), err
}

// LastCmds returns the texts of the last n commands, oldest first.
func (s *Store) LastCmds(n int) ([]string, error) {
	var texts []string
	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket([]byte(bucketCmd)).Cursor()
		for k, v := c.Last(); k != nil && len(texts) < n; k, v = c.Prev() {
			texts = append(texts, string(v))
		}
		return nil
	})
	for i, j := 0, len(texts)-1; i < j; i, j = i+1, j-1 {
		texts[i], texts[j] = texts[j], texts[i]
	}
	return texts, err
}

// Trim deletes all but the last n commands. Sequence numbers are not reused.
func (s *Store) Trim(n int) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucketCmd))
		c := b.Cursor()
		var stale [][]byte
		kept := 0
		for k, _ := c.Last(); k != nil; k, _ = c.Prev() {
			if kept < n {
				kept++
			} else {
				stale = append(stale, k)
			}
		}
		for _, k := range stale {
			if err := b.Delete(k); err != nil {
				return err
			}
		}
		return nil
	})
}

func marshalSeq(seq uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, seq)
	return b
}

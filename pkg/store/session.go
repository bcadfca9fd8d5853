package store

import (
	"encoding/json"
	"fmt"

	"github.com/cockroachdb/pebble"
)

// Session is the mutation surface of one write transaction. It reads its own
// writes and must not be used after the transaction function returns.
type Session struct {
	queries
	db       *DB
	batch    *pebble.Batch
	changes  changeLog
	finished bool
}

func newSession(db *DB, batch *pebble.Batch) *Session {
	return &Session{
		queries: queries{r: batch, opts: &db.opts},
		db:      db,
		batch:   batch,
	}
}

func (s *Session) checkOpen() {
	if s.finished {
		panic("store: session used after its transaction finished")
	}
}

func (s *Session) put(entity EntityKind, id, key string, v any) error {
	s.checkOpen()
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	if err := s.batch.Set([]byte(key), b, nil); err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	if entity != "" {
		s.changes.record(entity, id, ChangeUpsert)
	}
	return nil
}

// putIndex writes an index key with an empty value.
func (s *Session) putIndex(key string) error {
	s.checkOpen()
	return s.batch.Set([]byte(key), nil, nil)
}

func (s *Session) del(entity EntityKind, id, key string) error {
	s.checkOpen()
	if err := s.batch.Delete([]byte(key), nil); err != nil {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	if entity != "" {
		s.changes.record(entity, id, ChangeDelete)
	}
	return nil
}

// keysWithPrefix collects keys first so deletes never race an open iterator.
func (s *Session) keysWithPrefix(prefix string) ([]string, error) {
	var out []string
	err := s.scan(prefix, func(key, _ []byte) error {
		out = append(out, string(key))
		return nil
	})
	return out, err
}

// touch marks an entity changed without writing it, for derived state such
// as a parent's reply list.
func (s *Session) touch(entity EntityKind, id string) {
	s.changes.record(entity, id, ChangeUpsert)
}

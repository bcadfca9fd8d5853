package store

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chatsync/pkg/models"
	"chatsync/pkg/payload"
)

var (
	general = models.NewChannelID(models.ChannelTypeMessaging, "general")
	t0      = time.Date(2020, 7, 16, 15, 39, 3, 10717000, time.UTC)
	localT  = t0.Add(time.Hour)
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := OpenInMemory(Options{Clock: func() time.Time { return localT }})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func write(t *testing.T, db *DB, fn func(*Session) error) {
	t.Helper()
	require.NoError(t, db.Write(context.Background(), fn))
}

func read(t *testing.T, db *DB, fn func(*ReadSession) error) {
	t.Helper()
	require.NoError(t, db.Read(fn))
}

func userPayload(id string) payload.UserPayload {
	return payload.UserPayload{ID: id, Name: "name-" + id, CreatedAt: t0, UpdatedAt: t0}
}

func seedChannel(t *testing.T, db *DB, cid models.ChannelID) {
	t.Helper()
	write(t, db, func(s *Session) error {
		_, err := s.SaveChannelDetail(payload.ChannelDetailPayload{CID: cid, CreatedAt: t0, UpdatedAt: t0})
		return err
	})
}

func seedCurrentUser(t *testing.T, db *DB, id string) {
	t.Helper()
	write(t, db, func(s *Session) error {
		_, err := s.SaveCurrentUser(payload.CurrentUserPayload{UserPayload: userPayload(id)})
		return err
	})
}

func messagePayload(id, userID string, createdAt time.Time) payload.MessagePayload {
	return payload.MessagePayload{
		ID:        id,
		Type:      models.MessageTypeRegular,
		User:      userPayload(userID),
		CreatedAt: createdAt,
		UpdatedAt: createdAt,
		Text:      "text of " + id,
	}
}

func saveMessage(t *testing.T, db *DB, p payload.MessagePayload) {
	t.Helper()
	write(t, db, func(s *Session) error {
		_, err := s.SaveMessage(p, general)
		return err
	})
}

// dump returns every committed key and value.
func dump(t *testing.T, db *DB) map[string]string {
	t.Helper()
	out := map[string]string{}
	iter, err := db.pdb.NewIter(nil)
	require.NoError(t, err)
	defer iter.Close()
	for iter.First(); iter.Valid(); iter.Next() {
		out[string(iter.Key())] = string(iter.Value())
	}
	require.NoError(t, iter.Error())
	return out
}

func TestOpenOnDiskReopen(t *testing.T) {
	dir := t.TempDir()
	db, err := Open(dir, Options{})
	require.NoError(t, err)
	write(t, db, func(s *Session) error {
		_, err := s.SaveUser(userPayload("u1"))
		return err
	})
	require.NoError(t, db.Close())
	require.NoError(t, db.Close(), "close is idempotent")

	db, err = Open(dir, Options{})
	require.NoError(t, err)
	defer db.Close()
	read(t, db, func(r *ReadSession) error {
		u, err := r.User("u1")
		require.NoError(t, err)
		assert.Equal(t, "name-u1", u.Name)
		return nil
	})
}

func TestFailedTransactionLeavesNoTrace(t *testing.T) {
	db := newTestDB(t)
	seedChannel(t, db, general)
	saveMessage(t, db, messagePayload("m1", "u1", t0))
	before := dump(t, db)

	boom := errors.New("boom")
	cases := []struct {
		name    string
		fn      func(*Session) error
		wantErr error
	}{
		{
			name: "error after writes",
			fn: func(s *Session) error {
				if _, err := s.SaveUser(userPayload("u2")); err != nil {
					return err
				}
				if err := s.DeleteMessage("m1"); err != nil {
					return err
				}
				return boom
			},
			wantErr: boom,
		},
		{
			name: "panic after writes",
			fn: func(s *Session) error {
				if _, err := s.SaveMessage(messagePayload("m2", "u3", t0), general); err != nil {
					return err
				}
				panic("unexpected")
			},
			wantErr: ErrTransactionPanicked,
		},
		{
			name: "precondition failure after writes",
			fn: func(s *Session) error {
				if _, err := s.SaveUser(userPayload("u4")); err != nil {
					return err
				}
				_, err := s.CreateNewMessage(general, NewMessage{Text: "hi"})
				return err
			},
			wantErr: ErrCurrentUserDoesNotExist,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := db.Write(context.Background(), tc.fn)
			require.ErrorIs(t, err, tc.wantErr)
			assert.Equal(t, before, dump(t, db))
		})
	}
}

func TestSessionReadsItsOwnWrites(t *testing.T) {
	db := newTestDB(t)
	write(t, db, func(s *Session) error {
		if _, err := s.SaveChannelDetail(payload.ChannelDetailPayload{CID: general}); err != nil {
			return err
		}
		_, err := s.Channel(general)
		assert.NoError(t, err)
		return nil
	})
}

func TestWriteAsyncRunsInSubmissionOrder(t *testing.T) {
	db := newTestDB(t)
	seedChannel(t, db, general)

	var (
		mu    sync.Mutex
		order []int
		wg    sync.WaitGroup
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		db.WriteAsync(func(s *Session) error {
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
			_, err := s.SaveUser(userPayload("u"))
			return err
		}, func(err error) {
			assert.NoError(t, err)
			wg.Done()
		})
	}
	wg.Wait()
	for i, got := range order {
		assert.Equal(t, i, got)
	}

	failed := make(chan error, 1)
	db.WriteAsync(func(*Session) error { return errors.New("nope") }, func(err error) { failed <- err })
	assert.EqualError(t, <-failed, "nope")
}

func TestWriteAfterClose(t *testing.T) {
	db, err := OpenInMemory(Options{})
	require.NoError(t, err)
	require.NoError(t, db.Close())

	assert.ErrorIs(t, db.Write(context.Background(), func(*Session) error { return nil }), ErrClosed)
	assert.ErrorIs(t, db.Read(func(*ReadSession) error { return nil }), ErrClosed)

	got := make(chan error, 1)
	db.WriteAsync(func(*Session) error { return nil }, func(err error) { got <- err })
	assert.ErrorIs(t, <-got, ErrClosed)
}

func TestWriteCancelledBeforeSubmission(t *testing.T) {
	db := newTestDB(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	ran := false
	err := db.Write(ctx, func(*Session) error { ran = true; return nil })
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, ran)
}

func TestObserversSeeCommitsInOrder(t *testing.T) {
	db := newTestDB(t)
	sets := make(chan ChangeSet, 10)
	cancel := db.Observe(func(cs ChangeSet) { sets <- cs })

	seedChannel(t, db, general)
	require.Error(t, db.Write(context.Background(), func(s *Session) error {
		s.SaveUser(userPayload("ghost"))
		return errors.New("rolled back")
	}))
	saveMessage(t, db, messagePayload("m1", "u1", t0))

	next := func() ChangeSet {
		select {
		case cs := <-sets:
			return cs
		case <-time.After(5 * time.Second):
			t.Fatal("no change set delivered")
			return ChangeSet{}
		}
	}
	first := next()
	assert.Equal(t, uint64(1), first.Seq)
	assert.True(t, first.Has(EntityChannel, general.String()))

	second := next()
	assert.Equal(t, uint64(2), second.Seq)
	assert.True(t, second.Has(EntityMessage, "m1"))
	assert.True(t, second.Has(EntityUser, "u1"))
	assert.False(t, second.Has(EntityUser, "ghost"))

	cancel()
	cancel()
	seedChannel(t, db, models.NewChannelID(models.ChannelTypeTeam, "later"))
	require.NoError(t, db.Close())
	select {
	case cs := <-sets:
		t.Fatalf("cancelled observer got %+v", cs)
	default:
	}
}

func TestSessionUseAfterTransactionPanics(t *testing.T) {
	db := newTestDB(t)
	var leaked *Session
	write(t, db, func(s *Session) error {
		leaked = s
		return nil
	})
	assert.Panics(t, func() { leaked.SaveUser(userPayload("late")) })
}

func TestReadersNeverSeeInFlightTransaction(t *testing.T) {
	db := newTestDB(t)
	seedChannel(t, db, general)

	inside := make(chan struct{})
	release := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- db.Write(context.Background(), func(s *Session) error {
			if _, err := s.SaveMessage(messagePayload("m1", "u1", t0), general); err != nil {
				return err
			}
			close(inside)
			<-release
			return nil
		})
	}()

	<-inside
	read(t, db, func(r *ReadSession) error {
		_, err := r.Message("m1")
		assert.True(t, IsNotFound(err))
		_, err = r.User("u1")
		assert.True(t, IsNotFound(err))
		ids, err := r.ChannelMessageIDs(general, 0)
		require.NoError(t, err)
		assert.Empty(t, ids)
		return nil
	})
	close(release)
	require.NoError(t, <-done)

	read(t, db, func(r *ReadSession) error {
		_, err := r.Message("m1")
		return err
	})
}

func TestConcurrentWritesAreSerialized(t *testing.T) {
	db := newTestDB(t)
	seedChannel(t, db, general)
	saveMessage(t, db, messagePayload("m1", "u1", t0))

	const writers = 50
	var wg sync.WaitGroup
	errs := make(chan error, writers)
	for range writers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- db.Write(context.Background(), func(s *Session) error {
				_, err := s.UpdateMessage("m1", func(r *MessageRow) { r.ReplyCount++ })
				return err
			})
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		assert.NoError(t, err)
	}

	read(t, db, func(r *ReadSession) error {
		row, err := r.Message("m1")
		require.NoError(t, err)
		assert.Equal(t, writers, row.ReplyCount)
		return nil
	})
}

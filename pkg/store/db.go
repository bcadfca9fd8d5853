package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cockroachdb/pebble"
	"github.com/cockroachdb/pebble/vfs"

	"chatsync/pkg/logger"
	"chatsync/pkg/store/keys"
	"chatsync/pkg/telemetry"
)

// SchemaVersion is written under keys.SystemVersionKey on first open.
const SchemaVersion = "1"

const (
	defaultLatestReactionsLimit = 10
	defaultCacheSize            = 8 << 20
	defaultQueueSize            = 256
)

type Options struct {
	// LatestReactionsLimit caps ChatMessage.LatestReactions. Defaults to 10.
	LatestReactionsLimit int
	// CacheSize is the pebble block cache size in bytes.
	CacheSize int64
	// SyncWrites fsyncs every committed transaction.
	SyncWrites bool
	// QueueSize bounds the pending write transactions.
	QueueSize int
	Metrics   *telemetry.Metrics
	// Clock stamps locally created rows. Defaults to time.Now.
	Clock func() time.Time
}

func (o Options) withDefaults() Options {
	if o.LatestReactionsLimit <= 0 {
		o.LatestReactionsLimit = defaultLatestReactionsLimit
	}
	if o.CacheSize <= 0 {
		o.CacheSize = defaultCacheSize
	}
	if o.QueueSize <= 0 {
		o.QueueSize = defaultQueueSize
	}
	if o.Clock == nil {
		o.Clock = time.Now
	}
	return o
}

// DB is a handle to the local replica. All writes go through one writer
// goroutine in submission order; reads run concurrently on snapshots.
type DB struct {
	pdb       *pebble.DB
	path      string
	opts      Options
	writeOpts *pebble.WriteOptions

	// closeMu is held shared by submitters and readers, exclusively by Close.
	closeMu sync.RWMutex
	closed  bool

	writes   chan *writeRequest
	quit     chan struct{}
	done     chan struct{}
	notifier *notifier
	seq      uint64
}

type writeRequest struct {
	fn   func(*Session) error
	done func(error)
}

// Open opens or creates a replica at path.
func Open(path string, opts Options) (*DB, error) {
	return open(path, opts, nil)
}

// OpenInMemory opens a replica backed by an in-memory filesystem.
func OpenInMemory(opts Options) (*DB, error) {
	return open("", opts, vfs.NewMem())
}

func open(path string, opts Options, fs vfs.FS) (*DB, error) {
	opts = opts.withDefaults()

	cache := pebble.NewCache(opts.CacheSize)
	defer cache.Unref()
	po := &pebble.Options{Cache: cache}
	if fs != nil {
		po.FS = fs
	}
	pdb, err := pebble.Open(path, po)
	if err != nil {
		logger.Error("pebble_open_failed", "path", path, "error", err)
		return nil, fmt.Errorf("open replica %q: %w", path, err)
	}
	if err := ensureSchemaVersion(pdb); err != nil {
		pdb.Close()
		return nil, err
	}

	writeOpts := pebble.NoSync
	if opts.SyncWrites {
		writeOpts = pebble.Sync
	}
	db := &DB{
		pdb:       pdb,
		path:      path,
		opts:      opts,
		writeOpts: writeOpts,
		writes:    make(chan *writeRequest, opts.QueueSize),
		quit:      make(chan struct{}),
		done:      make(chan struct{}),
		notifier:  newNotifier(),
	}
	go db.writerLoop()
	go db.notifier.run()
	logger.Debug("replica_opened", "path", path, "in_memory", fs != nil)
	return db, nil
}

func ensureSchemaVersion(pdb *pebble.DB) error {
	val, closer, err := pdb.Get([]byte(keys.SystemVersionKey))
	if errors.Is(err, pebble.ErrNotFound) {
		return pdb.Set([]byte(keys.SystemVersionKey), []byte(SchemaVersion), pebble.Sync)
	}
	if err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	defer closer.Close()
	if got := string(val); got != SchemaVersion {
		return fmt.Errorf("replica schema version %q, want %q", got, SchemaVersion)
	}
	return nil
}

// Close waits for submitted transactions and pending notifications, then
// closes the underlying pebble DB. Close is idempotent.
func (db *DB) Close() error {
	db.closeMu.Lock()
	if db.closed {
		db.closeMu.Unlock()
		return nil
	}
	db.closed = true
	db.closeMu.Unlock()

	close(db.quit)
	<-db.done
	db.notifier.close()
	if err := db.pdb.Close(); err != nil {
		logger.Error("pebble_close_failed", "path", db.path, "error", err)
		return err
	}
	return nil
}

// Write runs fn in a write transaction and waits for it to commit or roll
// back. ctx only bounds submission; a submitted transaction always completes.
func (db *DB) Write(ctx context.Context, fn func(*Session) error) error {
	errCh := make(chan error, 1)
	if err := db.submit(ctx, fn, func(err error) { errCh <- err }); err != nil {
		return err
	}
	return <-errCh
}

// WriteAsync submits fn without waiting. done, if not nil, receives the
// outcome on the writer goroutine, or immediately if submission fails.
func (db *DB) WriteAsync(fn func(*Session) error, done func(error)) {
	if done == nil {
		done = func(error) {}
	}
	if err := db.submit(context.Background(), fn, done); err != nil {
		done(err)
	}
}

func (db *DB) submit(ctx context.Context, fn func(*Session) error, done func(error)) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	db.closeMu.RLock()
	defer db.closeMu.RUnlock()
	if db.closed {
		return ErrClosed
	}
	select {
	case db.writes <- &writeRequest{fn: fn, done: done}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (db *DB) writerLoop() {
	defer close(db.done)
	for {
		select {
		case req := <-db.writes:
			db.apply(req)
		case <-db.quit:
			// closed is set before quit, so nothing new can be queued
			for {
				select {
				case req := <-db.writes:
					db.apply(req)
				default:
					return
				}
			}
		}
	}
}

// apply runs one transaction against an indexed batch and commits it atomically.
func (db *DB) apply(req *writeRequest) {
	start := time.Now()
	batch := db.pdb.NewIndexedBatch()
	s := newSession(db, batch)

	err := runUnit(s, req.fn)
	s.finished = true
	if err == nil && !batch.Empty() {
		if aerr := db.pdb.Apply(batch, db.writeOpts); aerr != nil {
			logger.Error("pebble_apply_batch_failed", "error", aerr)
			err = fmt.Errorf("commit write transaction: %w", aerr)
		}
	}
	if cerr := batch.Close(); cerr != nil {
		logger.Warn("pebble_batch_close_failed", "error", cerr)
	}
	db.opts.Metrics.ObserveWrite(time.Since(start), err)

	if err != nil {
		logger.Debug("store_write_rolled_back", "error", err)
	} else if changes := s.changes.list(); len(changes) > 0 {
		db.seq++
		db.notifier.publish(ChangeSet{Seq: db.seq, Changes: changes})
	}
	req.done(err)
}

func runUnit(s *Session, fn func(*Session) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("store_write_panicked", "panic", r)
			err = fmt.Errorf("%w: %v", ErrTransactionPanicked, r)
		}
	}()
	return fn(s)
}

// Read runs fn against a consistent snapshot of committed state.
// fn must not call Write on the same DB.
func (db *DB) Read(fn func(*ReadSession) error) error {
	db.closeMu.RLock()
	defer db.closeMu.RUnlock()
	if db.closed {
		return ErrClosed
	}
	snap := db.pdb.NewSnapshot()
	defer snap.Close()
	return fn(&ReadSession{queries: queries{r: snap, opts: &db.opts}})
}

// Observe registers fn to receive a ChangeSet after every commit that
// touched at least one entity, in commit order. The returned func unregisters it.
func (db *DB) Observe(fn func(ChangeSet)) (cancel func()) {
	return db.notifier.subscribe(fn)
}

// Path returns the on-disk location, empty for in-memory replicas.
func (db *DB) Path() string { return db.path }

// Metrics returns pebble's internal metrics.
func (db *DB) Metrics() *pebble.Metrics { return db.pdb.Metrics() }

func (db *DB) now() time.Time { return db.opts.Clock() }

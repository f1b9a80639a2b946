// Package badgerkv is the BadgerDB-backed key-value storage for the local store.
package badgerkv

import (
	"errors"
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
)

// Config holds configuration for a BadgerDB-backed KV.
type Config struct {
	// Path is the directory for BadgerDB files. Ignored when InMemory is true.
	Path string
	// InMemory keeps everything in RAM; used by tests.
	InMemory bool
	// SyncWrites fsyncs every write before Set returns.
	SyncWrites bool
	// Logger receives BadgerDB's internal messages. Nil disables them.
	Logger *log.Logger
	// GCInterval is how often value-log garbage collection runs. Zero disables it.
	GCInterval time.Duration
	// GCDiscardRatio is the minimum reclaimable fraction before a value log is rewritten.
	GCDiscardRatio float64
}

// DefaultConfig returns the on-device configuration rooted at path.
func DefaultConfig(path string) Config {
	return Config{
		Path:           path,
		SyncWrites:     true,
		GCInterval:     5 * time.Minute,
		GCDiscardRatio: 0.5,
	}
}

// InMemoryConfig returns a configuration for tests.
func InMemoryConfig() Config {
	return Config{InMemory: true}
}

// KV implements localstore.KV on top of BadgerDB.
type KV struct {
	db       *badger.DB
	stop     chan struct{}
	gcDone   sync.WaitGroup
	closeOne sync.Once
}

type badgerLogger struct {
	logger *log.Logger
}

func (l badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Printf("ERROR "+format, args...)
}

func (l badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Printf("WARN "+format, args...)
}

func (l badgerLogger) Infof(string, ...interface{})  {}
func (l badgerLogger) Debugf(string, ...interface{}) {}

// Open opens (or creates) the database described by cfg.
func Open(cfg Config) (*KV, error) {
	if !cfg.InMemory && cfg.Path == "" {
		return nil, errors.New("path is required for persistent database")
	}

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(cfg.Path, 0o750); err != nil {
			return nil, fmt.Errorf("create database directory %s: %w", cfg.Path, err)
		}
		opts = badger.DefaultOptions(cfg.Path)
	}
	opts = opts.WithSyncWrites(cfg.SyncWrites).WithNumVersionsToKeep(1)
	if cfg.Logger != nil {
		opts = opts.WithLogger(badgerLogger{logger: cfg.Logger})
	} else {
		opts = opts.WithLogger(nil)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger database: %w", err)
	}

	kv := &KV{db: db, stop: make(chan struct{})}
	if cfg.GCInterval > 0 && !cfg.InMemory {
		ratio := cfg.GCDiscardRatio
		if ratio <= 0 || ratio >= 1 {
			ratio = 0.5
		}
		kv.gcDone.Add(1)
		go kv.runGC(cfg.GCInterval, ratio)
	}
	return kv, nil
}

func (k *KV) runGC(interval time.Duration, ratio float64) {
	defer k.gcDone.Done()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-k.stop:
			return
		case <-ticker.C:
			// Rewrite value logs until there is nothing left worth reclaiming.
			for k.db.RunValueLogGC(ratio) == nil {
			}
		}
	}
}

// Get implements localstore.KV.
func (k *KV) Get(key string) (string, bool, error) {
	var value []byte
	err := k.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		value, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("badger get %s: %w", key, err)
	}
	return string(value), true, nil
}

// Set implements localstore.KV. The write is a single transaction, so readers
// observe either the old or the new value.
func (k *KV) Set(key, value string) error {
	err := k.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), []byte(value))
	})
	if err != nil {
		return fmt.Errorf("badger set %s: %w", key, err)
	}
	return nil
}

// Close stops garbage collection and closes the database.
func (k *KV) Close() error {
	var err error
	k.closeOne.Do(func() {
		close(k.stop)
		k.gcDone.Wait()
		err = k.db.Close()
	})
	return err
}

// Package devstore persists discovered controllers and their service
// counters in badger.
package devstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/dgraph-io/badger"
	"github.com/puzpuzpuz/xsync/v3"
	"go.uber.org/zap"

	"github.com/neuroplastio/rmi4touch/rmi4/controller"
)

var ErrNotFound = errors.New("device not found")

const keyPrefix = "rmi4/devices/"

type Counters struct {
	Services uint64 `json:"services"`
	Reports  uint64 `json:"reports"`
	NoData   uint64 `json:"noData"`
	Errors   uint64 `json:"errors"`
	Overflow uint64 `json:"overflow"`
}

// Record is the persisted view of one controller.
type Record struct {
	Name        string                `json:"name"`
	Transport   string                `json:"transport"`
	Info        controller.DeviceInfo `json:"info"`
	Counters    Counters              `json:"counters"`
	FirstSeenAt time.Time             `json:"firstSeenAt"`
	LastSeenAt  time.Time             `json:"lastSeenAt"`
}

type Store struct {
	log   *zap.Logger
	db    *badger.DB
	now   func() time.Time
	cache *xsync.MapOf[string, Record]
}

// Open opens or creates the database in dir.
func Open(dir string, log *zap.Logger, now func() time.Time) (*Store, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create data dir: %w", err)
	}
	opts := badger.DefaultOptions(dir)
	opts.Logger = &badgerLogger{l: log.Named("badger")}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger db: %w", err)
	}
	return &Store{
		log:   log,
		db:    db,
		now:   now,
		cache: xsync.NewMapOf[string, Record](),
	}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func deviceKey(name string) []byte {
	return []byte(keyPrefix + name)
}

// SaveDevice records a discovery of name, keeping first-seen time and
// counters of an existing record.
func (s *Store) SaveDevice(name, transport string, info controller.DeviceInfo) (Record, error) {
	return s.update(name, func(rec *Record) {
		rec.Transport = transport
		rec.Info = info
	})
}

// SaveCounters replaces the counters and the latched device status.
func (s *Store) SaveCounters(name string, counters Counters, status controller.Status) (Record, error) {
	return s.update(name, func(rec *Record) {
		rec.Counters = counters
		rec.Info.Status = status
	})
}

func (s *Store) update(name string, fn func(rec *Record)) (Record, error) {
	var rec Record
	now := s.now()
	err := s.db.Update(func(txn *badger.Txn) error {
		key := deviceKey(name)
		item, err := txn.Get(key)
		switch {
		case errors.Is(err, badger.ErrKeyNotFound):
			rec = Record{Name: name}
		case err != nil:
			return err
		default:
			err = item.Value(func(val []byte) error {
				return json.Unmarshal(val, &rec)
			})
			if err != nil {
				return fmt.Errorf("failed to unmarshal device: %w", err)
			}
		}
		fn(&rec)
		if rec.FirstSeenAt.IsZero() {
			rec.FirstSeenAt = now
		}
		rec.LastSeenAt = now
		b, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("failed to marshal device: %w", err)
		}
		return txn.Set(key, b)
	})
	if err != nil {
		return Record{}, fmt.Errorf("failed to save device %s: %w", name, err)
	}
	s.cache.Store(name, rec)
	return rec, nil
}

func (s *Store) Get(name string) (Record, error) {
	if rec, ok := s.cache.Load(name); ok {
		return rec, nil
	}
	var rec Record
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(deviceKey(name))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &rec)
		})
	})
	switch {
	case errors.Is(err, badger.ErrKeyNotFound):
		return Record{}, fmt.Errorf("%s: %w", name, ErrNotFound)
	case err != nil:
		return Record{}, fmt.Errorf("failed to get device: %w", err)
	}
	s.cache.Store(name, rec)
	return rec, nil
}

func (s *Store) List() ([]Record, error) {
	var records []Record
	err := s.db.View(func(txn *badger.Txn) error {
		iter := txn.NewIterator(badger.DefaultIteratorOptions)
		defer iter.Close()
		prefix := []byte(keyPrefix)
		for iter.Seek(prefix); iter.ValidForPrefix(prefix); iter.Next() {
			var rec Record
			err := iter.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &rec)
			})
			if err != nil {
				return err
			}
			records = append(records, rec)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list devices: %w", err)
	}
	return records, nil
}

type badgerLogger struct {
	l *zap.Logger
}

func (l badgerLogger) Errorf(msg string, args ...any) {
	l.l.Error(fmt.Sprintf(msg, args...))
}

func (l badgerLogger) Warningf(msg string, args ...any) {
	l.l.Warn(fmt.Sprintf(msg, args...))
}

func (l badgerLogger) Infof(msg string, args ...any) {
	l.l.Info(fmt.Sprintf(msg, args...))
}

func (l badgerLogger) Debugf(msg string, args ...any) {
	l.l.Debug(fmt.Sprintf(msg, args...))
}

// Package store keeps encrypted images addressed to users until their view
// budget runs out.
package store

import (
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/rs/zerolog"
	"github.com/zeebo/blake3"
)

const (
	keyPrefix = "inbox/"

	// imageIDBytes is the number of hash bytes kept in a derived image ID.
	imageIDBytes = 16

	// maxViewAttempts bounds re-checks when an image is replaced mid-view.
	maxViewAttempts = 3
)

var (
	ErrImageNotFound    = errors.New("image not found")
	ErrNoViewsRemaining = errors.New("no views remaining")
	ErrInvalidName      = errors.New("invalid name")
	ErrNoRecipients     = errors.New("no recipients")

	errImageReplaced = errors.New("image replaced during view")
)

// Record is one stored image as seen by one recipient.
type Record struct {
	ImageID        string `cbor:"image_id"`
	From           string `cbor:"from"`
	RemainingViews uint32 `cbor:"remaining_views"`
	MaxViews       uint32 `cbor:"max_views"`
	Timestamp      int64  `cbor:"timestamp"`
	Image          []byte `cbor:"image"`
}

// Inbox is a badger-backed map of recipient -> image ID -> Record.
type Inbox struct {
	db     *badger.DB
	viewMu sync.Mutex
	logger zerolog.Logger
}

// Open opens the inbox at path. With inMemory set, path is ignored and
// nothing touches disk.
func Open(path string, inMemory bool, logger zerolog.Logger) (*Inbox, error) {
	logger = logger.With().Str("com", "inbox").Logger()

	opts := badger.DefaultOptions(path)
	if inMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	}
	opts = opts.WithLogger(badgerLogger{logger})

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open inbox: %w", err)
	}
	logger.Debug().Str("path", path).Bool("in_memory", inMemory).Msg("inbox opened")
	return &Inbox{db: db, logger: logger}, nil
}

// Close flushes and closes the database.
func (i *Inbox) Close() error {
	return i.db.Close()
}

// ImageID derives a stable identifier from image content.
func ImageID(image []byte) string {
	sum := blake3.Sum256(image)
	return hex.EncodeToString(sum[:imageIDBytes])
}

func recipientPrefix(recipient string) []byte {
	return []byte(keyPrefix + recipient + "/")
}

func recordKey(recipient, imageID string) []byte {
	return []byte(keyPrefix + recipient + "/" + imageID)
}

func validName(s string) error {
	if s == "" || strings.ContainsRune(s, '/') {
		return fmt.Errorf("%w: %q", ErrInvalidName, s)
	}
	return nil
}

// Put stores rec once per recipient. An empty ImageID is derived from the
// image, a zero Timestamp becomes now, and RemainingViews starts at MaxViews.
// The stored ID is returned.
func (i *Inbox) Put(recipients []string, rec Record) (string, error) {
	if len(recipients) == 0 {
		return "", ErrNoRecipients
	}
	for _, r := range recipients {
		if err := validName(r); err != nil {
			return "", err
		}
	}
	if rec.ImageID == "" {
		rec.ImageID = ImageID(rec.Image)
	}
	if err := validName(rec.ImageID); err != nil {
		return "", err
	}
	if rec.Timestamp == 0 {
		rec.Timestamp = time.Now().Unix()
	}
	rec.RemainingViews = rec.MaxViews

	value, err := marshal(rec)
	if err != nil {
		return "", fmt.Errorf("encode record: %w", err)
	}

	err = i.db.Update(func(txn *badger.Txn) error {
		for _, r := range recipients {
			if err := txn.Set(recordKey(r, rec.ImageID), value); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("store image %s: %w", rec.ImageID, err)
	}

	i.logger.Info().
		Str("image_id", rec.ImageID).
		Str("from", rec.From).
		Strs("to", recipients).
		Uint32("max_views", rec.MaxViews).
		Msg("image stored")
	return rec.ImageID, nil
}

// List returns the recipient's images that still have views left, without
// their image bytes, in key order.
func (i *Inbox) List(recipient string) ([]Record, error) {
	if err := validName(recipient); err != nil {
		return nil, err
	}

	var out []Record
	err := i.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefix := recipientPrefix(recipient)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var rec Record
			err := it.Item().Value(func(val []byte) error {
				return unmarshal(val, &rec)
			})
			if err != nil {
				return fmt.Errorf("decode %s: %w", it.Item().Key(), err)
			}
			if rec.RemainingViews == 0 {
				continue
			}
			rec.Image = nil
			out = append(out, rec)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// View consumes one view of an image. check runs on a snapshot of the
// record outside any lock; an error from it aborts the view and is returned
// as is. The decrement is then committed only if views remain and the image
// is unchanged, so concurrent viewers never overspend the budget. The
// returned record carries the image and the views left after this one.
func (i *Inbox) View(recipient, imageID string, check func(Record) error) (Record, error) {
	if err := validName(recipient); err != nil {
		return Record{}, err
	}
	key := recordKey(recipient, imageID)

	for attempt := 0; attempt < maxViewAttempts; attempt++ {
		rec, err := i.load(key)
		if err != nil {
			return Record{}, err
		}
		if rec.RemainingViews == 0 {
			return Record{}, ErrNoViewsRemaining
		}
		if check != nil {
			if err := check(rec); err != nil {
				return Record{}, err
			}
		}

		committed, err := i.chargeView(key, rec.Image)
		if errors.Is(err, errImageReplaced) {
			continue
		}
		if err != nil {
			return Record{}, err
		}

		i.logger.Info().
			Str("image_id", imageID).
			Str("user", recipient).
			Uint32("remaining", committed.RemainingViews).
			Msg("image viewed")
		return committed, nil
	}
	return Record{}, fmt.Errorf("view %s: %w", imageID, errImageReplaced)
}

func (i *Inbox) load(key []byte) (Record, error) {
	var rec Record
	err := i.db.View(func(txn *badger.Txn) error {
		var err error
		rec, err = getRecord(txn, key)
		return err
	})
	return rec, err
}

// chargeView decrements the views of key if its image still equals checked.
func (i *Inbox) chargeView(key, checked []byte) (Record, error) {
	// Commits on the same key would otherwise conflict.
	i.viewMu.Lock()
	defer i.viewMu.Unlock()

	var rec Record
	err := i.db.Update(func(txn *badger.Txn) error {
		var err error
		rec, err = getRecord(txn, key)
		if err != nil {
			return err
		}
		if rec.RemainingViews == 0 {
			return ErrNoViewsRemaining
		}
		if !bytes.Equal(rec.Image, checked) {
			return errImageReplaced
		}

		rec.RemainingViews--
		value, err := marshal(rec)
		if err != nil {
			return fmt.Errorf("encode record: %w", err)
		}
		return txn.Set(key, value)
	})
	if err != nil {
		return Record{}, err
	}
	return rec, nil
}

func getRecord(txn *badger.Txn, key []byte) (Record, error) {
	var rec Record
	item, err := txn.Get(key)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return rec, ErrImageNotFound
	}
	if err != nil {
		return rec, err
	}
	if err := item.Value(func(val []byte) error {
		return unmarshal(val, &rec)
	}); err != nil {
		return rec, fmt.Errorf("decode record: %w", err)
	}
	return rec, nil
}

// badgerLogger routes badger's internal logging through zerolog.
type badgerLogger struct {
	logger zerolog.Logger
}

func (l badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error().Msgf(strings.TrimSpace(format), args...)
}

func (l badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn().Msgf(strings.TrimSpace(format), args...)
}

func (l badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Debug().Msgf(strings.TrimSpace(format), args...)
}

func (l badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Trace().Msgf(strings.TrimSpace(format), args...)
}

// Package storage persists subscriber records.
//
// A record is one JSON object per subscriber, keyed by an HMAC of the email
// address. Two backends are supported: a Cloud Storage bucket (production)
// and a local directory (development). Each call is independently
// consistent; there are no transactions across calls.
package storage

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"github.com/codeGROOVE-dev/retry"
	"google.golang.org/api/iterator"

	"rss-notifier/pkg/notifier"
)

// ErrNotFound is returned when no record exists for an email address.
var ErrNotFound = errors.New("storage: subscriber not found")

// ErrDuplicate is returned by Create when the email address is already subscribed.
var ErrDuplicate = errors.New("storage: subscriber already exists")

// Store handles subscriber persistence.
type Store struct {
	client    *storage.Client
	logger    *slog.Logger
	localPath string
	bucket    string
	salt      []byte
}

// New creates a new store. When localPath is non-empty the local filesystem
// backend is used and client/bucket are ignored.
func New(client *storage.Client, bucket, localPath string, salt []byte, logger *slog.Logger) *Store {
	return &Store{
		client:    client,
		logger:    logger,
		salt:      salt,
		localPath: localPath,
		bucket:    bucket,
	}
}

// key derives the stable object name for an email address. HMAC-SHA256 with
// a secret salt keeps lookups O(1) without storing a plaintext index.
func (s *Store) key(email string) string {
	h := hmac.New(sha256.New, s.salt)
	h.Write([]byte(strings.ToLower(strings.TrimSpace(email))))
	return fmt.Sprintf("sub-%s.json", hex.EncodeToString(h.Sum(nil)))
}

// Create adds a new subscriber with the given subscription time. The email
// must not already be subscribed; callers should still check first to reject
// duplicates before any other side effect.
func (s *Store) Create(ctx context.Context, email string, subscribedAt int64) error {
	if _, err := s.FindByEmail(ctx, email); err == nil {
		return ErrDuplicate
	} else if !errors.Is(err, ErrNotFound) {
		return err
	}

	sub := &notifier.Subscriber{
		EmailAddress:   strings.ToLower(strings.TrimSpace(email)),
		SubscribedAt:   subscribedAt,
		LastNotifiedAt: 0,
	}

	if err := s.save(ctx, sub); err != nil {
		return err
	}

	s.logger.Info("Subscriber created", "email", sub.EmailAddress, "subscribed_at", subscribedAt)
	return nil
}

// FindByEmail loads a subscriber record, or ErrNotFound.
func (s *Store) FindByEmail(ctx context.Context, email string) (*notifier.Subscriber, error) {
	return s.load(ctx, s.key(email))
}

// Delete removes a subscriber record. Deleting an absent record is an error
// so the HTTP layer can distinguish "not subscribed".
func (s *Store) Delete(ctx context.Context, email string) error {
	key := s.key(email)

	if s.localPath != "" {
		filePath := filepath.Join(s.localPath, key)
		if err := os.Remove(filePath); err != nil {
			if os.IsNotExist(err) {
				return ErrNotFound
			}
			return fmt.Errorf("delete from local storage: %w", err)
		}
		s.logger.Info("Subscriber deleted from local storage", "path", filePath, "email", email)
		return nil
	}

	err := retry.Do(
		func() error {
			if deleteErr := s.client.Bucket(s.bucket).Object(key).Delete(ctx); deleteErr != nil {
				if errors.Is(deleteErr, storage.ErrObjectNotExist) {
					return retry.Unrecoverable(ErrNotFound)
				}
				return fmt.Errorf("delete from storage: %w", deleteErr)
			}
			return nil
		},
		retry.Attempts(3),
		retry.Delay(time.Second),
		retry.MaxDelay(2*time.Minute),
		retry.MaxJitter(10*time.Second),
		retry.Context(ctx),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, retryErr error) {
			s.logger.Info("Retrying delete operation after error", "attempt", n, "key", key, "error", retryErr)
		}),
	)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("delete after retries: %w", err)
	}

	s.logger.Info("Subscriber deleted", "key", key, "email", email)
	return nil
}

// SetLastNotified records when a subscriber was last notified.
func (s *Store) SetLastNotified(ctx context.Context, email string, ts int64) error {
	sub, err := s.FindByEmail(ctx, email)
	if err != nil {
		return err
	}

	sub.LastNotifiedAt = ts
	if err := s.save(ctx, sub); err != nil {
		return err
	}

	s.logger.Info("Subscriber last-notified time updated", "email", sub.EmailAddress, "last_notified_at", ts)
	return nil
}

// List returns all subscriber records in listing order. Records that fail to
// load are skipped with a warning so one bad object cannot block a run.
func (s *Store) List(ctx context.Context) ([]*notifier.Subscriber, error) {
	var subs []*notifier.Subscriber

	if s.localPath != "" {
		entries, err := os.ReadDir(s.localPath)
		if err != nil {
			return nil, fmt.Errorf("read local storage directory: %w", err)
		}

		for _, entry := range entries {
			if entry.IsDir() || !strings.HasPrefix(entry.Name(), "sub-") || !strings.HasSuffix(entry.Name(), ".json") {
				continue
			}

			sub, err := s.load(ctx, entry.Name())
			if err != nil {
				s.logger.Warn("Failed to load subscriber", "file", entry.Name(), "error", err)
				continue
			}

			subs = append(subs, sub)
		}

		return subs, nil
	}

	it := s.client.Bucket(s.bucket).Objects(ctx, &storage.Query{
		Prefix: "sub-",
	})

	for {
		attrs, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("iterate storage: %w", err)
		}

		sub, err := s.load(ctx, attrs.Name)
		if err != nil {
			s.logger.Warn("Failed to load subscriber", "key", attrs.Name, "error", err)
			continue
		}

		subs = append(subs, sub)
	}

	return subs, nil
}

func (s *Store) save(ctx context.Context, sub *notifier.Subscriber) error {
	key := s.key(sub.EmailAddress)

	data, err := json.MarshalIndent(sub, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal subscriber: %w", err)
	}

	if s.localPath != "" {
		filePath := filepath.Join(s.localPath, key)
		if err := os.WriteFile(filePath, data, 0o600); err != nil {
			return fmt.Errorf("write to local storage: %w", err)
		}
		return nil
	}

	err = retry.Do(
		func() error {
			w := s.client.Bucket(s.bucket).Object(key).NewWriter(ctx)
			if _, writeErr := w.Write(data); writeErr != nil {
				if closeErr := w.Close(); closeErr != nil {
					s.logger.Warn("Failed to close writer after error", "error", closeErr)
				}
				return fmt.Errorf("write to storage: %w", writeErr)
			}
			if closeErr := w.Close(); closeErr != nil {
				return fmt.Errorf("close storage writer: %w", closeErr)
			}
			return nil
		},
		retry.Attempts(3),
		retry.Delay(time.Second),
		retry.MaxDelay(2*time.Minute),
		retry.MaxJitter(10*time.Second),
		retry.Context(ctx),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, retryErr error) {
			s.logger.Info("Retrying save operation after error", "attempt", n, "key", key, "error", retryErr)
		}),
	)
	if err != nil {
		return fmt.Errorf("save after retries: %w", err)
	}

	return nil
}

func (s *Store) load(ctx context.Context, key string) (*notifier.Subscriber, error) {
	var data []byte

	if s.localPath != "" {
		var err error
		data, err = os.ReadFile(filepath.Join(s.localPath, key))
		if err != nil {
			if os.IsNotExist(err) {
				return nil, ErrNotFound
			}
			return nil, fmt.Errorf("read from local storage: %w", err)
		}
	} else {
		var readData []byte
		err := retry.Do(
			func() error {
				r, openErr := s.client.Bucket(s.bucket).Object(key).NewReader(ctx)
				if openErr != nil {
					if errors.Is(openErr, storage.ErrObjectNotExist) {
						return retry.Unrecoverable(ErrNotFound)
					}
					return fmt.Errorf("open storage reader: %w", openErr)
				}
				defer func() {
					if closeErr := r.Close(); closeErr != nil {
						s.logger.Warn("Failed to close storage reader", "error", closeErr)
					}
				}()

				var readErr error
				readData, readErr = io.ReadAll(r)
				if readErr != nil {
					return fmt.Errorf("read from storage: %w", readErr)
				}
				return nil
			},
			retry.Attempts(3),
			retry.Delay(time.Second),
			retry.MaxDelay(2*time.Minute),
			retry.MaxJitter(10*time.Second),
			retry.Context(ctx),
			retry.LastErrorOnly(true),
			retry.OnRetry(func(n uint, retryErr error) {
				s.logger.Info("Retrying load operation after error", "attempt", n, "key", key, "error", retryErr)
			}),
		)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return nil, ErrNotFound
			}
			return nil, fmt.Errorf("load after retries: %w", err)
		}
		data = readData
	}

	var sub notifier.Subscriber
	if err := json.Unmarshal(data, &sub); err != nil {
		return nil, fmt.Errorf("unmarshal subscriber: %w", err)
	}

	return &sub, nil
}

// IsNotFound reports whether an error indicates a missing subscriber.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

package storage

import (
	"context"
	"fmt"
	"net/http"

	"github.com/go-kivik/kivik/v4"
)

// CouchStorage keeps one CouchDB document per key.
type CouchStorage struct {
	client *kivik.Client
	dbName string
}

type couchEntry struct {
	Rev   string `json:"_rev,omitempty"`
	Value string `json:"value"`
}

// NewCouchStorage opens dbName, creating it when it does not exist yet.
func NewCouchStorage(ctx context.Context, client *kivik.Client, dbName string) (*CouchStorage, error) {
	exists, err := client.DBExists(ctx, dbName)
	if err != nil {
		return nil, fmt.Errorf("failed to check database existence: %w", err)
	}

	if !exists {
		if err := client.CreateDB(ctx, dbName); err != nil {
			return nil, fmt.Errorf("failed to create database: %w", err)
		}
	}

	return &CouchStorage{
		client: client,
		dbName: dbName,
	}, nil
}

func (s *CouchStorage) Get(ctx context.Context, key string) (string, error) {
	db := s.client.DB(s.dbName)

	var entry couchEntry
	if err := db.Get(ctx, key).ScanDoc(&entry); err != nil {
		if kivik.HTTPStatus(err) == http.StatusNotFound {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("failed to get %q: %w", key, err)
	}

	return entry.Value, nil
}

func (s *CouchStorage) Set(ctx context.Context, key, value string) error {
	db := s.client.DB(s.dbName)

	rev, err := s.currentRev(ctx, db, key)
	if err != nil {
		return err
	}

	if _, err := db.Put(ctx, key, couchEntry{Rev: rev, Value: value}); err != nil {
		return fmt.Errorf("failed to put %q: %w", key, err)
	}

	return nil
}

func (s *CouchStorage) Delete(ctx context.Context, key string) error {
	db := s.client.DB(s.dbName)

	rev, err := s.currentRev(ctx, db, key)
	if err != nil {
		return err
	}
	if rev == "" {
		return nil
	}

	if _, err := db.Delete(ctx, key, rev); err != nil {
		if kivik.HTTPStatus(err) == http.StatusNotFound {
			return nil
		}
		return fmt.Errorf("failed to delete %q: %w", key, err)
	}

	return nil
}

// currentRev returns "" when the document does not exist.
func (s *CouchStorage) currentRev(ctx context.Context, db *kivik.DB, key string) (string, error) {
	rev, err := db.GetRev(ctx, key)
	if err != nil {
		if kivik.HTTPStatus(err) == http.StatusNotFound {
			return "", nil
		}
		return "", fmt.Errorf("failed to read revision of %q: %w", key, err)
	}
	return rev, nil
}

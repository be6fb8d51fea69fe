// Package pagecache is a file-backed cache for extracted page payloads.
// One file per key, each tagged with the schema version it was written
// with. Reads fail soft: corruption, version drift and io errors all
// look like a miss to the caller, so a bad cache file can never abort
// a run.
package pagecache

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("bookscout/pagecache")

type Entry struct {
	SchemaVersion int             `json:"schema_version"`
	FetchedAt     time.Time       `json:"fetched_at"`
	Payload       json.RawMessage `json:"payload"`
}

type Store struct {
	root    string
	version int
}

// NewStore opens (and creates if needed) a cache directory. version is
// the schema version written to new entries; entries carrying any other
// version are treated as misses and overwritten on the next put.
func NewStore(root string, version int) (Store, error) {
	err := os.MkdirAll(root, 0755)
	if err != nil {
		return Store{}, err
	}
	return Store{root: root, version: version}, nil
}

func (s Store) Root() string { return s.root }

// one file per key, the key itself made filesystem safe. PathEscape
// keeps the result reversible so `bookscout-cli cache info` can list keys.
func (s Store) path(key string) string {
	return filepath.Join(s.root, url.PathEscape(key)+".json")
}

// Get returns the payload stored for key, unmarshalled into out.
// The second return is false on any kind of miss: absent file,
// unreadable file, malformed json, schema version drift, payload that
// no longer unmarshals. None of these are errors to the caller.
func (s Store) Get(ctx context.Context, key string, out any) bool {
	_, span := tracer.Start(ctx, "pagecache:get")
	defer span.End()
	span.SetAttributes(attribute.String("cache_key", key))

	raw, err := os.ReadFile(s.path(key))
	if os.IsNotExist(err) {
		return false
	}
	if err != nil {
		span.RecordError(err)
		slog.Warn("cache read failed, treating as miss", "key", key, "err", err)
		return false
	}

	var entry Entry
	err = json.Unmarshal(raw, &entry)
	if err != nil {
		span.RecordError(err)
		slog.Warn("cache entry corrupted, treating as miss", "key", key, "err", err)
		return false
	}
	if entry.SchemaVersion != s.version {
		span.SetStatus(codes.Ok, "SCHEMA MISMATCH")
		slog.Debug(
			"cache entry schema mismatch, treating as miss",
			"key", key,
			"entry_version", entry.SchemaVersion,
			"store_version", s.version,
		)
		return false
	}
	err = json.Unmarshal(entry.Payload, out)
	if err != nil {
		span.RecordError(err)
		slog.Warn("cache payload unreadable, treating as miss", "key", key, "err", err)
		return false
	}

	span.SetStatus(codes.Ok, "CACHE HIT")
	return true
}

// Put serializes payload under key. The write goes to a temp file in
// the same directory first and is renamed into place, so a run killed
// mid-write never leaves a half entry that Get would accept.
func (s Store) Put(ctx context.Context, key string, payload any) error {
	_, span := tracer.Start(ctx, "pagecache:put")
	defer span.End()
	span.SetAttributes(attribute.String("cache_key", key))

	rawPayload, err := json.Marshal(payload)
	if err != nil {
		span.RecordError(err)
		return err
	}
	raw, err := json.Marshal(Entry{
		SchemaVersion: s.version,
		FetchedAt:     time.Now().UTC(),
		Payload:       rawPayload,
	})
	if err != nil {
		span.RecordError(err)
		return err
	}

	tmp, err := os.CreateTemp(s.root, ".put-*")
	if err != nil {
		span.RecordError(err)
		return err
	}
	_, err = tmp.Write(raw)
	if err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		span.RecordError(err)
		return err
	}
	err = tmp.Close()
	if err != nil {
		os.Remove(tmp.Name())
		span.RecordError(err)
		return err
	}
	err = os.Rename(tmp.Name(), s.path(key))
	if err != nil {
		os.Remove(tmp.Name())
		span.RecordError(err)
		return err
	}
	return nil
}

// Delete removes the entry for key, missing entries included.
func (s Store) Delete(key string) error {
	err := os.Remove(s.path(key))
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

// Keys lists every key with a cache file, whatever its schema version.
func (s Store) Keys() ([]string, error) {
	files, err := os.ReadDir(s.root)
	if err != nil {
		return nil, err
	}
	var keys []string
	for _, f := range files {
		if f.IsDir() {
			continue
		}
		name, found := strings.CutSuffix(f.Name(), ".json")
		if !found {
			continue
		}
		key, err := url.PathUnescape(name)
		if err != nil {
			continue
		}
		keys = append(keys, key)
	}
	return keys, nil
}

// Purge deletes every cache file, leaving the directory in place.
func (s Store) Purge() error {
	files, err := os.ReadDir(s.root)
	if err != nil {
		return err
	}
	for _, f := range files {
		if f.IsDir() {
			continue
		}
		err := os.Remove(filepath.Join(s.root, f.Name()))
		if err != nil {
			return err
		}
	}
	return nil
}

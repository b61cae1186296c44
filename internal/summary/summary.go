// Package summary publishes per-file ingest results to Redis so an external
// bulk-loading dashboard can poll them.
package summary

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/redis/go-redis/v9"

	"fwfr/internal/table"
)

const publishTimeout = 5 * time.Second

// Publisher writes ingest summaries under a key prefix. One hash per input
// file, plus a list of recently finished files for the dashboard to scan.
type Publisher struct {
	client *redis.Client
	prefix string
}

// NewPublisher connects to addr. The connection is verified lazily on the
// first publish, not here, so a dead dashboard never blocks ingestion.
func NewPublisher(addr, prefix string) *Publisher {
	return &Publisher{
		client: redis.NewClient(&redis.Options{Addr: addr}),
		prefix: prefix,
	}
}

// Publish records a successful read of path.
func (p *Publisher) Publish(path string, tbl *table.Table, elapsed time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()

	key := p.key(path)
	fields := map[string]interface{}{
		"status":      "ok",
		"rows":        tbl.NumRows(),
		"columns":     tbl.NumCols(),
		"schema":      schemaString(tbl),
		"duration_ms": elapsed.Milliseconds(),
		"finished_at": time.Now().UTC().Format(time.RFC3339),
	}
	if err := p.client.HSet(ctx, key, fields).Err(); err != nil {
		return fmt.Errorf("summary: hset %s: %w", key, err)
	}
	if err := p.client.RPush(ctx, p.prefix+":recent", filepath.Base(path)).Err(); err != nil {
		return fmt.Errorf("summary: rpush: %w", err)
	}
	return nil
}

// PublishFailure records a failed read of path. Errors are swallowed: a
// failing read is already being reported to the operator, and the dashboard
// write must not mask it.
func (p *Publisher) PublishFailure(path string, elapsed time.Duration, readErr error) {
	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()

	fields := map[string]interface{}{
		"status":      "error",
		"error":       readErr.Error(),
		"duration_ms": elapsed.Milliseconds(),
		"finished_at": time.Now().UTC().Format(time.RFC3339),
	}
	_ = p.client.HSet(ctx, p.key(path), fields).Err()
}

// Close releases the Redis connection.
func (p *Publisher) Close() error {
	return p.client.Close()
}

func (p *Publisher) key(path string) string {
	return p.prefix + ":" + filepath.Base(path)
}

func schemaString(tbl *table.Table) string {
	s := ""
	for i, f := range tbl.Schema.Fields {
		if i > 0 {
			s += ", "
		}
		s += fmt.Sprintf("%s:%s", f.Name, f.Type)
	}
	return s
}

// Package cache memoizes verification reports per ledger snapshot.
//
// Keys combine the ledger digest, the content length and a content digest,
// so a report is only reused for exactly the inputs it was computed from.
// InvalidateDocument drops every report for a document after new events are
// ingested.
package cache

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"golang.org/x/crypto/blake2b"

	"typeproof/internal/verify"
)

// ErrMiss is returned by Get when no report is cached for the key.
var ErrMiss = errors.New("cache: miss")

// DefaultTTL bounds how long a report stays cached.
const DefaultTTL = 24 * time.Hour

// ReportCache stores verification reports.
type ReportCache interface {
	Get(ctx context.Context, documentID, key string) (*verify.Report, error)
	Set(ctx context.Context, documentID, key string, report *verify.Report) error
	InvalidateDocument(ctx context.Context, documentID string) error
}

// Key builds the cache key for verifying content against the ledger with
// the given digest.
func Key(ledgerDigest, content string) string {
	sum := blake2b.Sum256([]byte(content))
	return fmt.Sprintf("%s:%d:%s", ledgerDigest, utf8.RuneCountInString(content), hex.EncodeToString(sum[:8]))
}

func encode(r *verify.Report) ([]byte, error) {
	data, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("encode report: %w", err)
	}
	return data, nil
}

func decode(data []byte) (*verify.Report, error) {
	var r verify.Report
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("decode report: %w", err)
	}
	return &r, nil
}

// Nop never stores anything.
type Nop struct{}

func (Nop) Get(context.Context, string, string) (*verify.Report, error) { return nil, ErrMiss }

func (Nop) Set(context.Context, string, string, *verify.Report) error { return nil }

func (Nop) InvalidateDocument(context.Context, string) error { return nil }

package blob

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	registrystore "github.com/forgeos/graph-service/internal/registry/store"
	"golang.org/x/sync/errgroup"
)

const refPrefix = "sha256:"

// batchWorkers bounds the fan-out of ResolveBatch.
const batchWorkers = 8

// Ref computes the content-addressed ref for content.
func Ref(content string) string {
	sum := sha256.Sum256([]byte(content))
	return refPrefix + hex.EncodeToString(sum[:])
}

// ParseRef validates a ref and returns the bare hash.
func ParseRef(ref string) (string, error) {
	if !strings.HasPrefix(ref, refPrefix) {
		return "", &registrystore.ValidationError{Field: "ref", Message: fmt.Sprintf("expected sha256: prefix, got %q", ref)}
	}
	h := strings.TrimPrefix(ref, refPrefix)
	if len(h) != 64 {
		return "", &registrystore.ValidationError{Field: "ref", Message: fmt.Sprintf("expected 64 hex chars, got %d", len(h))}
	}
	return h, nil
}

// ShardPath returns the two-level fan-out path elements for a hash.
func ShardPath(hash string) (string, string) {
	return hash[0:2], hash[2:4]
}

// ResolveBatch resolves many refs in parallel. Missing refs are omitted
// from the result; cancellation short-circuits and returns the error.
func ResolveBatch(ctx context.Context, s Store, refs []string) (map[string]string, error) {
	out := make(map[string]string, len(refs))
	var mu sync.Mutex

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(batchWorkers)
	for _, ref := range refs {
		g.Go(func() error {
			content, err := s.Resolve(ctx, ref)
			if err != nil {
				var nf *registrystore.NotFoundError
				if errors.As(err, &nf) {
					return nil
				}
				return err
			}
			mu.Lock()
			out[ref] = content
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return out, err
	}
	return out, nil
}

// StoreJSON marshals v and stores it.
func StoreJSON(ctx context.Context, s Store, v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return s.Store(ctx, string(data))
}

// ResolveJSON resolves a ref and unmarshals it into v.
func ResolveJSON(ctx context.Context, s Store, ref string, v any) error {
	content, err := s.Resolve(ctx, ref)
	if err != nil {
		return err
	}
	return json.Unmarshal([]byte(content), v)
}

// StoreIfLarge stores content only when it exceeds threshold chars,
// returning the ref or "" when the content should stay inline.
func StoreIfLarge(ctx context.Context, s Store, content string, threshold int) (string, error) {
	if s == nil || len(content) <= threshold {
		return "", nil
	}
	return s.Store(ctx, content)
}

// TextWithFallback returns the blob content when ref is set and
// resolvable, otherwise the inline value. This is the backward-compat
// read primitive for blob-backed fields.
func TextWithFallback(ctx context.Context, s Store, inline, ref string) string {
	if ref == "" || s == nil {
		return inline
	}
	content, err := s.Resolve(ctx, ref)
	if err != nil {
		return inline
	}
	return content
}

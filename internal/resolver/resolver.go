// Trailhound - Hash Event Aggregation and Catalog Reconciliation
// Copyright 2026 Harrier Pack Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/harrierpack/trailhound

// Package resolver maps free-text kennel tags from sources to canonical
// kennel identifiers.
//
// Resolution runs four stages in order, short-circuiting on the first hit:
// exact short-name match (source-scoped, then unscoped), alias match, and
// an ordered regex pattern table whose hits are re-run through the
// short-name and alias stages. Every stage result is cached per
// (normalized tag, source), so a tag seen a thousand times in one scrape
// costs one set of lookups.
//
// A Resolver is a run-scoped object: the merge engine and the reconciler
// construct a fresh one per pipeline run (or call ClearCache between
// runs), so concurrent runs for different sources never share cache
// state.
package resolver

import (
	"context"
	"fmt"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/harrierpack/trailhound/internal/metrics"
	"github.com/harrierpack/trailhound/internal/models"
)

// DefaultCacheSize bounds the per-run resolution cache. A single scrape
// rarely carries more than a few hundred distinct tags.
const DefaultCacheSize = 1024

// Resolution is the outcome of resolving one tag. KennelID is zero when
// Matched is false.
type Resolution struct {
	KennelID int64
	Matched  bool
}

// Store is the kennel registry lookup surface the resolver needs. All
// lookups are case-insensitive on the store side; methods return
// (nil, nil) when nothing matches.
type Store interface {
	// KennelByShortName matches the canonical short name, unscoped.
	KennelByShortName(ctx context.Context, shortName string) (*models.Kennel, error)

	// KennelByShortNameForSource matches the short name among kennels
	// linked to the given source, disambiguating collisions across
	// organizations.
	KennelByShortNameForSource(ctx context.Context, shortName string, sourceID int64) (*models.Kennel, error)

	// KennelByAlias matches the alias table.
	KennelByAlias(ctx context.Context, alias string) (*models.Kennel, error)
}

type cacheKey struct {
	tag      string
	sourceID int64
}

// Resolver resolves kennel tags against the registry with a bounded,
// purgeable per-run cache.
type Resolver struct {
	store    Store
	patterns *PatternTable
	cache    *lru.Cache[cacheKey, Resolution]
}

// New creates a run-scoped resolver. A nil patterns table disables the
// pattern fallback stage; cacheSize <= 0 uses DefaultCacheSize.
func New(store Store, patterns *PatternTable, cacheSize int) (*Resolver, error) {
	if cacheSize <= 0 {
		cacheSize = DefaultCacheSize
	}
	cache, err := lru.New[cacheKey, Resolution](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create resolver cache: %w", err)
	}
	return &Resolver{
		store:    store,
		patterns: patterns,
		cache:    cache,
	}, nil
}

// Resolve maps a tag to a kennel. sourceID scopes both the short-name
// disambiguation and the cache entry; pass 0 when no source context
// exists. An empty or whitespace tag is unmatched immediately, with no
// lookup and no cache write.
func (r *Resolver) Resolve(ctx context.Context, tag string, sourceID int64) (Resolution, error) {
	norm := strings.ToLower(strings.TrimSpace(tag))
	if norm == "" {
		return Resolution{}, nil
	}

	key := cacheKey{tag: norm, sourceID: sourceID}
	if res, ok := r.cache.Get(key); ok {
		metrics.RecordResolverLookup(true, res.Matched)
		return res, nil
	}

	res, err := r.lookup(ctx, norm, sourceID)
	if err != nil {
		return Resolution{}, err
	}

	// Negative results are cached too: an unknown tag repeated across a
	// batch must not hit the store once per occurrence.
	r.cache.Add(key, res)
	metrics.RecordResolverLookup(false, res.Matched)
	return res, nil
}

// ClearCache drops all cached resolutions. Call between runs when reusing
// a resolver instead of constructing a fresh one.
func (r *Resolver) ClearCache() {
	r.cache.Purge()
}

// CacheLen returns the number of cached resolutions, for diagnostics.
func (r *Resolver) CacheLen() int {
	return r.cache.Len()
}

// lookup runs the uncached stage sequence for a normalized tag.
func (r *Resolver) lookup(ctx context.Context, norm string, sourceID int64) (Resolution, error) {
	res, err := r.matchRegistry(ctx, norm, sourceID)
	if err != nil || res.Matched {
		return res, err
	}

	if r.patterns != nil {
		if canonical, ok := r.patterns.Match(norm); ok {
			return r.matchRegistry(ctx, strings.ToLower(canonical), sourceID)
		}
	}

	return Resolution{}, nil
}

// matchRegistry runs the short-name and alias stages for one candidate
// name.
func (r *Resolver) matchRegistry(ctx context.Context, name string, sourceID int64) (Resolution, error) {
	if sourceID != 0 {
		k, err := r.store.KennelByShortNameForSource(ctx, name, sourceID)
		if err != nil {
			return Resolution{}, fmt.Errorf("failed scoped short name lookup for %q: %w", name, err)
		}
		if k != nil {
			return Resolution{KennelID: k.ID, Matched: true}, nil
		}
	}

	k, err := r.store.KennelByShortName(ctx, name)
	if err != nil {
		return Resolution{}, fmt.Errorf("failed short name lookup for %q: %w", name, err)
	}
	if k != nil {
		return Resolution{KennelID: k.ID, Matched: true}, nil
	}

	k, err = r.store.KennelByAlias(ctx, name)
	if err != nil {
		return Resolution{}, fmt.Errorf("failed alias lookup for %q: %w", name, err)
	}
	if k != nil {
		return Resolution{KennelID: k.ID, Matched: true}, nil
	}

	return Resolution{}, nil
}

package retrieval

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"mercator-hq/saturn/pkg/config"
	"mercator-hq/saturn/pkg/governance"
	"mercator-hq/saturn/pkg/policy"
)

// Options configure a Retriever.
type Options struct {
	// DefaultTopK applies when the caller does not set top_k.
	DefaultTopK int

	// MaxTopK caps caller-supplied top_k. Zero means no cap.
	MaxTopK int

	// AllowedConnectors is the authorized set when a decision carries no
	// connector constraint.
	AllowedConnectors []string

	// AllowedSourcePrefixes restricts chunk source ids when the decision
	// carries none. Empty disables the prefix check.
	AllowedSourcePrefixes []string

	// ConnectorTimeout bounds each connector search.
	ConnectorTimeout time.Duration
}

// Retriever performs authorized retrieval across registered connectors.
type Retriever struct {
	registry *Registry
	opts     Options
	logger   *slog.Logger
}

// NewRetriever creates a retriever over a registry.
func NewRetriever(registry *Registry, opts Options) *Retriever {
	if opts.DefaultTopK <= 0 {
		opts.DefaultTopK = config.DefaultRetrievalTopK
	}
	if opts.ConnectorTimeout <= 0 {
		opts.ConnectorTimeout = config.DefaultConnectorTimeout
	}
	return &Retriever{
		registry: registry,
		opts:     opts,
		logger:   slog.Default().With("component", "retrieval"),
	}
}

// NewRetrieverFromConfig creates a retriever from configuration.
func NewRetrieverFromConfig(registry *Registry, cfg config.RetrievalConfig) *Retriever {
	return NewRetriever(registry, Options{
		DefaultTopK:           cfg.DefaultTopK,
		MaxTopK:               cfg.MaxTopK,
		AllowedConnectors:     cfg.AllowedConnectors,
		AllowedSourcePrefixes: cfg.AllowedSourcePrefixes,
		ConnectorTimeout:      cfg.ConnectorTimeout,
	})
}

// Retrieve runs the retrieval steps for a request:
//
//  1. authorize: requested connectors intersected with the allowed set
//  2. search each authorized connector under a per-call timeout
//  3. verify every returned chunk against the authorized scope
//  4. merge by score, connector priority and source id, then truncate
//
// Verification sees every chunk a connector returned, including ones that
// would not survive truncation.
//
// A request that asks for no connectors returns an empty result.
func (r *Retriever) Retrieve(ctx context.Context, rc governance.RequestContext, d policy.Decision, query string) (*Result, error) {
	if !rc.RetrievalRequested() {
		return &Result{}, nil
	}

	requested := dedupe(rc.Retrieval.Connectors)
	allowed, constrained := d.AllowedConnectors()
	if !constrained {
		allowed = r.opts.AllowedConnectors
	}

	res := &Result{TopK: r.topK(rc.Retrieval.TopK)}
	for _, name := range requested {
		if slices.Contains(allowed, name) {
			res.Authorized = append(res.Authorized, name)
		} else {
			res.Denied = append(res.Denied, name)
		}
	}
	if len(res.Authorized) == 0 {
		r.logger.Warn("retrieval denied",
			"request_id", rc.RequestID,
			"tenant_id", rc.TenantID,
			"requested", requested,
			"allowed", allowed,
		)
		return nil, &UnauthorizedError{Requested: requested, Allowed: append([]string(nil), allowed...)}
	}
	if len(res.Denied) > 0 {
		r.logger.Info("requested connectors removed by authorization",
			"request_id", rc.RequestID,
			"denied", res.Denied,
		)
	}

	connectors := make([]Connector, len(res.Authorized))
	for i, name := range res.Authorized {
		c, ok := r.registry.Get(name)
		if !ok {
			return nil, &ConnectorNotFoundError{Name: name}
		}
		connectors[i] = c
	}

	prefixes := d.AllowedSourcePrefixes()
	if len(prefixes) == 0 {
		prefixes = r.opts.AllowedSourcePrefixes
	}
	chunks, err := r.search(ctx, res.Authorized, connectors, query, rc.Retrieval.Filters, res.TopK, prefixes)
	if err != nil {
		if errors.Is(err, ErrCitationIntegrity) {
			r.logger.Error("citation integrity violation",
				"request_id", rc.RequestID,
				"error", err,
			)
		}
		return nil, err
	}

	r.rank(chunks)
	if len(chunks) > res.TopK {
		chunks = chunks[:res.TopK]
	}

	res.Chunks = chunks
	r.logger.Debug("retrieval complete",
		"request_id", rc.RequestID,
		"connectors", res.Authorized,
		"chunks", len(chunks),
	)
	return res, nil
}

func (r *Retriever) topK(requested int) int {
	k := requested
	if k <= 0 {
		k = r.opts.DefaultTopK
	}
	if r.opts.MaxTopK > 0 && k > r.opts.MaxTopK {
		k = r.opts.MaxTopK
	}
	return k
}

func (r *Retriever) search(ctx context.Context, names []string, connectors []Connector, query string, filters map[string]string, k int, prefixes []string) ([]Chunk, error) {
	results := make([][]Chunk, len(connectors))
	errs := make([]error, len(connectors))

	var wg sync.WaitGroup
	for i := range connectors {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			callCtx, cancel := context.WithTimeout(ctx, r.opts.ConnectorTimeout)
			defer cancel()

			start := time.Now()
			chunks, err := connectors[i].Search(callCtx, query, filters, k)
			if err == nil && callCtx.Err() != nil {
				err = callCtx.Err()
			}
			if err != nil {
				errs[i] = &ConnectorError{Connector: names[i], Err: err}
				return
			}
			if err := verify(chunks, names[i], prefixes); err != nil {
				errs[i] = err
				return
			}
			r.logger.Debug("connector search",
				"connector", names[i],
				"chunks", len(chunks),
				"duration", time.Since(start),
			)
			results[i] = chunks
		}(i)
	}
	wg.Wait()

	var merged []Chunk
	for i := range results {
		if errs[i] != nil {
			return nil, errs[i]
		}
		merged = append(merged, results[i]...)
	}
	return merged, nil
}

func (r *Retriever) rank(chunks []Chunk) {
	sort.SliceStable(chunks, func(i, j int) bool {
		a, b := chunks[i], chunks[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		pa, pb := r.registry.Priority(a.ConnectorID), r.registry.Priority(b.ConnectorID)
		if pa != pb {
			return pa < pb
		}
		if a.SourceID != b.SourceID {
			return a.SourceID < b.SourceID
		}
		return a.ChunkID < b.ChunkID
	})
}

// verify checks chunks returned by one authorized connector. A chunk must
// name that connector and, when prefixes are set, a source under one of them.
func verify(chunks []Chunk, connector string, prefixes []string) error {
	for _, c := range chunks {
		if c.ConnectorID != connector {
			return &CitationIntegrityError{
				ConnectorID: c.ConnectorID,
				SourceID:    c.SourceID,
				ChunkID:     c.ChunkID,
				Message:     "chunk does not belong to the authorized connector " + connector,
			}
		}
		if len(prefixes) > 0 && !hasAnyPrefix(c.SourceID, prefixes) {
			return &CitationIntegrityError{
				ConnectorID: c.ConnectorID,
				SourceID:    c.SourceID,
				ChunkID:     c.ChunkID,
				Message:     "source id is outside the allowed prefixes",
			}
		}
	}
	return nil
}

func hasAnyPrefix(s string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(s, p) {
			return true
		}
	}
	return false
}

func dedupe(names []string) []string {
	out := make([]string, 0, len(names))
	for _, n := range names {
		if n != "" && !slices.Contains(out, n) {
			out = append(out, n)
		}
	}
	return out
}

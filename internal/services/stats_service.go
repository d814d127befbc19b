package services

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"fintrack/internal/cache"
	"fintrack/internal/core"
	"fintrack/internal/metrics"
	"fintrack/internal/ports"
	"fintrack/internal/settings"
	"fintrack/internal/stats"
)

// StatsQuery selects the transactions a statistic is computed over. From
// is inclusive, To exclusive; zero bounds are open. An empty Currency
// means the default currency preference.
type StatsQuery struct {
	From     time.Time
	To       time.Time
	Currency string
	Type     core.CategoryType
	Bucket   stats.Bucket
}

func (q StatsQuery) key(kind, currency string) string {
	return strings.Join([]string{
		kind,
		q.From.UTC().Format(time.RFC3339),
		q.To.UTC().Format(time.RFC3339),
		currency,
		string(q.Type),
		string(q.Bucket),
	}, "|")
}

// StatsService computes statistics for a single currency and caches the
// results until the next ledger write.
type StatsService struct {
	store   ports.Store
	cache   cache.Cache[any]
	metrics *metrics.Collector

	// generation counts invalidations. A result computed across one is
	// not cached.
	mu         sync.Mutex
	generation uint64
}

type dataset struct {
	prefs        settings.Preferences
	currency     string
	transactions []core.Transaction
	categories   []core.Category
	tags         []core.Tag
}

func NewStatsService(store ports.Store, c cache.Cache[any], m *metrics.Collector) *StatsService {
	return &StatsService{store: store, cache: c, metrics: m}
}

// Invalidate drops every cached result.
func (s *StatsService) Invalidate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.generation++
	if s.cache != nil {
		s.cache.Purge()
	}
}

func (s *StatsService) currentGeneration() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.generation
}

// storeResult caches v unless the ledger changed since gen was read.
func (s *StatsService) storeResult(gen uint64, key string, v any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cache != nil && s.generation == gen {
		s.cache.Set(key, v)
	}
}

func (s *StatsService) resolveCurrency(ctx context.Context, q StatsQuery) (settings.Preferences, string, error) {
	prefs, err := settings.Load(ctx, s.store)
	if err != nil {
		return prefs, "", err
	}
	currency := strings.ToUpper(strings.TrimSpace(q.Currency))
	if currency == "" {
		currency = prefs.DefaultCurrency
	}
	if err := core.ValidateCurrency(currency); err != nil {
		return prefs, "", err
	}
	return prefs, currency, nil
}

// load fetches the inputs concurrently and keeps only transactions on
// accounts in the requested currency.
func (s *StatsService) load(ctx context.Context, q StatsQuery, prefs settings.Preferences, currency string) (dataset, error) {
	ds := dataset{prefs: prefs, currency: currency}
	var (
		accounts []core.BalanceAccount
		txs      []core.Transaction
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		accounts, err = s.store.ListAccounts(gctx)
		return err
	})
	g.Go(func() (err error) {
		txs, err = s.store.ListTransactions(gctx, core.TransactionQuery{From: q.From, To: q.To})
		return err
	})
	g.Go(func() (err error) {
		ds.categories, err = s.store.ListCategories(gctx, "")
		return err
	})
	g.Go(func() (err error) {
		ds.tags, err = s.store.ListTags(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return ds, fmt.Errorf("load statistics inputs: %w", err)
	}

	inCurrency := make(map[uuid.UUID]bool, len(accounts))
	for _, a := range accounts {
		if a.Currency == currency {
			inCurrency[a.ID] = true
		}
	}
	ds.transactions = make([]core.Transaction, 0, len(txs))
	for _, t := range txs {
		if inCurrency[t.AccountID] {
			ds.transactions = append(ds.transactions, t)
		}
	}
	return ds, nil
}

// cached runs compute on a cache miss and stores its result.
func cached[T any](ctx context.Context, s *StatsService, kind string, q StatsQuery, compute func(dataset) (T, error)) (T, error) {
	var zero T
	prefs, currency, err := s.resolveCurrency(ctx, q)
	if err != nil {
		return zero, err
	}
	key := q.key(kind, currency)
	gen := s.currentGeneration()
	if s.cache != nil {
		if v, ok := s.cache.Get(key); ok {
			if out, ok := v.(T); ok {
				s.metrics.RecordCacheLookup("stats", true)
				return out, nil
			}
		}
		s.metrics.RecordCacheLookup("stats", false)
	}

	ds, err := s.load(ctx, q, prefs, currency)
	if err != nil {
		return zero, err
	}
	out, err := compute(ds)
	if err != nil {
		return zero, err
	}
	s.storeResult(gen, key, out)
	return out, nil
}

func (s *StatsService) Summary(ctx context.Context, q StatsQuery) (stats.Summary, error) {
	return cached(ctx, s, "summary", q, func(ds dataset) (stats.Summary, error) {
		return stats.Summarize(ds.transactions), nil
	})
}

// Categories returns the pie series for q.Type, spending by default.
func (s *StatsService) Categories(ctx context.Context, q StatsQuery) ([]stats.CategorySlice, error) {
	if q.Type == "" {
		q.Type = core.Spending
	}
	if !q.Type.Valid() {
		return nil, core.ErrInvalidType
	}
	return cached(ctx, s, "categories", q, func(ds dataset) ([]stats.CategorySlice, error) {
		return stats.ByCategory(ds.transactions, q.Type, ds.categories), nil
	})
}

// Timeline needs both bounds.
func (s *StatsService) Timeline(ctx context.Context, q StatsQuery) ([]stats.Bar, error) {
	if q.From.IsZero() || q.To.IsZero() {
		return nil, fmt.Errorf("%w: timeline requires from and to", core.ErrInvalidDate)
	}
	if q.Bucket == "" {
		q.Bucket = stats.BucketMonth
	}
	return cached(ctx, s, "timeline", q, func(ds dataset) ([]stats.Bar, error) {
		return stats.Timeline(ds.transactions, q.Bucket, q.From, q.To, ds.prefs.WeekStart)
	})
}

func (s *StatsService) Tags(ctx context.Context, q StatsQuery) ([]stats.TagTotal, error) {
	return cached(ctx, s, "tags", q, func(ds dataset) ([]stats.TagTotal, error) {
		return stats.ByTag(ds.transactions, ds.tags), nil
	})
}

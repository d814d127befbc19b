package services

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"fintrack/assets"
	"fintrack/internal/amqp"
	"fintrack/internal/core"
	applog "fintrack/internal/log"
	"fintrack/internal/metrics"
	"fintrack/internal/ports"
	"fintrack/internal/settings"
)

// Entity names used in ledger events and metrics.
const (
	EntityAccount     = "account"
	EntityCategory    = "category"
	EntityTag         = "tag"
	EntityTransaction = "transaction"
	EntityTransfer    = "transfer"
	EntityBudget      = "budget"
	EntitySettings    = "settings"
	EntityLedger      = "ledger"
)

// LedgerService validates and writes ledger entities, then announces every
// committed write to the event publisher and the registered write hooks.
type LedgerService struct {
	store     ports.Store
	publisher ports.EventPublisher
	metrics   *metrics.Collector
	now       func() time.Time
	loc       *time.Location

	mu      sync.Mutex
	onWrite []func()
}

// NewLedgerService wires the service. publisher and m may be nil.
func NewLedgerService(store ports.Store, publisher ports.EventPublisher, m *metrics.Collector) *LedgerService {
	return &LedgerService{
		store:     store,
		publisher: publisher,
		metrics:   m,
		now:       time.Now,
		loc:       time.Local,
	}
}

// SetLocation sets the zone used for calendar computations.
func (s *LedgerService) SetLocation(loc *time.Location) {
	if loc != nil {
		s.loc = loc
	}
}

func (s *LedgerService) Location() *time.Location {
	return s.loc
}

// OnWrite registers fn to run after every committed write.
func (s *LedgerService) OnWrite(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onWrite = append(s.onWrite, fn)
}

// Store exposes the underlying store for read-only pipelines.
func (s *LedgerService) Store() ports.Store {
	return s.store
}

func (s *LedgerService) committed(ctx context.Context, kind, entity string, id uuid.UUID) {
	s.metrics.RecordLedgerWrite(entity, kind)

	s.mu.Lock()
	hooks := slices.Clone(s.onWrite)
	s.mu.Unlock()
	for _, fn := range hooks {
		fn()
	}

	if s.publisher == nil {
		slog.DebugContext(ctx, "No event publisher configured, skipping ledger event", "entity", entity)
		return
	}
	if err := s.publisher.PublishLedgerEvent(ctx, kind, entity, id); err != nil {
		applog.LogError(ctx, "Failed to publish ledger event", err, applog.ComponentLedger, kind,
			applog.NewFields().WithEntity(entity, id.String()))
	}
}

// Seed creates the default categories when none exist and fills in
// missing preferences.
func (s *LedgerService) Seed(ctx context.Context) error {
	existing, err := s.store.ListCategories(ctx, "")
	if err != nil {
		return fmt.Errorf("list categories: %w", err)
	}
	if len(existing) == 0 {
		for _, c := range assets.DefaultCategories() {
			if err := s.store.CreateCategory(ctx, c); err != nil {
				return fmt.Errorf("seed category %q: %w", c.Name, err)
			}
		}
		slog.InfoContext(ctx, "Seeded default categories")
	}
	if err := settings.SeedDefaults(ctx, s.store); err != nil {
		return err
	}
	return nil
}

// Accounts

func (s *LedgerService) prepareAccount(a *core.BalanceAccount) error {
	a.Name = strings.TrimSpace(a.Name)
	a.Currency = strings.ToUpper(strings.TrimSpace(a.Currency))
	a.Icon = assets.IconFor(a.Icon)
	color, err := assets.ResolveColor(a.Color)
	if err != nil {
		return err
	}
	a.Color = color
	a.StartingBalance = core.RoundMoney(a.StartingBalance)
	return a.Validate()
}

func (s *LedgerService) CreateAccount(ctx context.Context, a core.BalanceAccount) (core.BalanceAccount, error) {
	a.ID = core.NewID()
	a.CreatedAt = s.now().UTC()
	if err := s.prepareAccount(&a); err != nil {
		return core.BalanceAccount{}, err
	}
	a.Balance = a.StartingBalance
	if err := s.store.CreateAccount(ctx, a); err != nil {
		return core.BalanceAccount{}, fmt.Errorf("create account: %w", err)
	}
	s.committed(ctx, amqp.KindCreated, EntityAccount, a.ID)
	slog.InfoContext(ctx, "Account created", "account_id", a.ID, "currency", a.Currency)
	return a, nil
}

func (s *LedgerService) GetAccount(ctx context.Context, id uuid.UUID) (core.BalanceAccount, error) {
	return s.store.GetAccount(ctx, id)
}

func (s *LedgerService) ListAccounts(ctx context.Context) ([]core.BalanceAccount, error) {
	return s.store.ListAccounts(ctx)
}

// UpdateAccount changes the editable fields of an existing account and
// returns it with the recomputed balance.
func (s *LedgerService) UpdateAccount(ctx context.Context, a core.BalanceAccount) (core.BalanceAccount, error) {
	old, err := s.store.GetAccount(ctx, a.ID)
	if err != nil {
		return core.BalanceAccount{}, err
	}
	a.CreatedAt = old.CreatedAt
	if err := s.prepareAccount(&a); err != nil {
		return core.BalanceAccount{}, err
	}
	if err := s.store.UpdateAccount(ctx, a); err != nil {
		return core.BalanceAccount{}, fmt.Errorf("update account: %w", err)
	}
	s.committed(ctx, amqp.KindUpdated, EntityAccount, a.ID)
	return s.store.GetAccount(ctx, a.ID)
}

func (s *LedgerService) DeleteAccount(ctx context.Context, id uuid.UUID, policy core.DeletePolicy) error {
	if err := policy.Validate(id, false); err != nil {
		return err
	}
	if policy.Mode == core.Reassign {
		if _, err := s.store.GetAccount(ctx, policy.Target); err != nil {
			return fmt.Errorf("reassign target: %w", err)
		}
	}
	if err := s.store.DeleteAccount(ctx, id, policy); err != nil {
		return fmt.Errorf("delete account: %w", err)
	}
	s.committed(ctx, amqp.KindDeleted, EntityAccount, id)
	slog.InfoContext(ctx, "Account deleted", "account_id", id, "policy", policy.Mode)
	return nil
}

// Categories

func (s *LedgerService) prepareCategory(c *core.Category) error {
	c.Name = strings.TrimSpace(c.Name)
	c.Icon = assets.IconFor(c.Icon)
	color, err := assets.ResolveColor(c.Color)
	if err != nil {
		return err
	}
	c.Color = color
	return c.Validate()
}

// CreateCategory appends a category at the end of its type's display order.
func (s *LedgerService) CreateCategory(ctx context.Context, c core.Category) (core.Category, error) {
	c.ID = core.NewID()
	if !c.Type.Valid() {
		return core.Category{}, core.ErrInvalidType
	}
	siblings, err := s.store.ListCategories(ctx, c.Type)
	if err != nil {
		return core.Category{}, fmt.Errorf("list categories: %w", err)
	}
	c.Order = len(siblings)
	if err := s.prepareCategory(&c); err != nil {
		return core.Category{}, err
	}
	if err := s.store.CreateCategory(ctx, c); err != nil {
		return core.Category{}, fmt.Errorf("create category: %w", err)
	}
	s.committed(ctx, amqp.KindCreated, EntityCategory, c.ID)
	return c, nil
}

func (s *LedgerService) GetCategory(ctx context.Context, id uuid.UUID) (core.Category, error) {
	return s.store.GetCategory(ctx, id)
}

func (s *LedgerService) ListCategories(ctx context.Context, typ core.CategoryType) ([]core.Category, error) {
	if typ != "" && !typ.Valid() {
		return nil, core.ErrInvalidType
	}
	return s.store.ListCategories(ctx, typ)
}

// UpdateCategory edits name, icon and color. The type and display order
// cannot change here.
func (s *LedgerService) UpdateCategory(ctx context.Context, c core.Category) (core.Category, error) {
	old, err := s.store.GetCategory(ctx, c.ID)
	if err != nil {
		return core.Category{}, err
	}
	if c.Type != "" && c.Type != old.Type {
		return core.Category{}, fmt.Errorf("%w: category type cannot change", core.ErrTypeMismatch)
	}
	c.Type = old.Type
	c.Order = old.Order
	if err := s.prepareCategory(&c); err != nil {
		return core.Category{}, err
	}
	if err := s.store.UpdateCategory(ctx, c); err != nil {
		return core.Category{}, fmt.Errorf("update category: %w", err)
	}
	s.committed(ctx, amqp.KindUpdated, EntityCategory, c.ID)
	return c, nil
}

// ReorderCategories sets the display order of the given categories by
// position. Ids must be unique and exist.
func (s *LedgerService) ReorderCategories(ctx context.Context, ids []uuid.UUID) error {
	seen := make(map[uuid.UUID]bool, len(ids))
	for _, id := range ids {
		if seen[id] {
			return fmt.Errorf("duplicate category %s in order", id)
		}
		seen[id] = true
		if _, err := s.store.GetCategory(ctx, id); err != nil {
			return err
		}
	}
	if err := s.store.ReorderCategories(ctx, ids); err != nil {
		return fmt.Errorf("reorder categories: %w", err)
	}
	s.committed(ctx, amqp.KindUpdated, EntityCategory, uuid.Nil)
	return nil
}

func (s *LedgerService) DeleteCategory(ctx context.Context, id uuid.UUID, policy core.DeletePolicy) error {
	if err := policy.Validate(id, false); err != nil {
		return err
	}
	if policy.Mode == core.Reassign {
		cur, err := s.store.GetCategory(ctx, id)
		if err != nil {
			return err
		}
		target, err := s.store.GetCategory(ctx, policy.Target)
		if err != nil {
			return fmt.Errorf("reassign target: %w", err)
		}
		if cur.Type != target.Type {
			return fmt.Errorf("%w: reassign target has type %s", core.ErrTypeMismatch, target.Type)
		}
	}
	if err := s.store.DeleteCategory(ctx, id, policy); err != nil {
		return fmt.Errorf("delete category: %w", err)
	}
	s.committed(ctx, amqp.KindDeleted, EntityCategory, id)
	return nil
}

// Tags

func (s *LedgerService) prepareTag(t *core.Tag) error {
	t.Name = strings.TrimSpace(t.Name)
	color, err := assets.ResolveColor(t.Color)
	if err != nil {
		return err
	}
	t.Color = color
	return t.Validate()
}

func (s *LedgerService) CreateTag(ctx context.Context, t core.Tag) (core.Tag, error) {
	t.ID = core.NewID()
	if err := s.prepareTag(&t); err != nil {
		return core.Tag{}, err
	}
	if err := s.store.CreateTag(ctx, t); err != nil {
		return core.Tag{}, fmt.Errorf("create tag: %w", err)
	}
	s.committed(ctx, amqp.KindCreated, EntityTag, t.ID)
	return t, nil
}

func (s *LedgerService) GetTag(ctx context.Context, id uuid.UUID) (core.Tag, error) {
	return s.store.GetTag(ctx, id)
}

func (s *LedgerService) ListTags(ctx context.Context) ([]core.Tag, error) {
	return s.store.ListTags(ctx)
}

func (s *LedgerService) UpdateTag(ctx context.Context, t core.Tag) (core.Tag, error) {
	if _, err := s.store.GetTag(ctx, t.ID); err != nil {
		return core.Tag{}, err
	}
	if err := s.prepareTag(&t); err != nil {
		return core.Tag{}, err
	}
	if err := s.store.UpdateTag(ctx, t); err != nil {
		return core.Tag{}, fmt.Errorf("update tag: %w", err)
	}
	s.committed(ctx, amqp.KindUpdated, EntityTag, t.ID)
	return t, nil
}

// DeleteTag removes a tag. Cascade deletes every transaction carrying it,
// detach only drops the links.
func (s *LedgerService) DeleteTag(ctx context.Context, id uuid.UUID, policy core.DeletePolicy) error {
	if err := policy.Validate(id, true); err != nil {
		return err
	}
	if policy.Mode == core.Reassign {
		if _, err := s.store.GetTag(ctx, policy.Target); err != nil {
			return fmt.Errorf("reassign target: %w", err)
		}
	}
	if err := s.store.DeleteTag(ctx, id, policy); err != nil {
		return fmt.Errorf("delete tag: %w", err)
	}
	s.committed(ctx, amqp.KindDeleted, EntityTag, id)
	return nil
}

package orgcache_test

import (
	"context"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/lodgehub/lodgehub/business/domain/orgbus"
	"github.com/lodgehub/lodgehub/business/domain/orgbus/stores/orgcache"
	"github.com/lodgehub/lodgehub/business/sdk/order"
	"github.com/lodgehub/lodgehub/business/sdk/page"
	"github.com/lodgehub/lodgehub/business/sdk/sqldb"
	"github.com/lodgehub/lodgehub/business/types/datacategory"
	"github.com/lodgehub/lodgehub/foundation/logger"
)

// countingStorer serves canned subtree and tenant answers while counting
// how many reads actually reach it. A non-nil hold channel parks subtree
// reads until it closes, so a test can pile up concurrent misses.
type countingStorer struct {
	subtree []orgbus.Organization
	tenants []uuid.UUID
	hold    chan struct{}

	mu           sync.Mutex
	subtreeReads int
	tenantReads  int
}

func (cs *countingStorer) subtreeReadCount() int {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	return cs.subtreeReads
}

func (cs *countingStorer) NewWithTx(tx sqldb.CommitRollbacker) (orgbus.Storer, error) {
	return cs, nil
}

func (cs *countingStorer) Create(ctx context.Context, org orgbus.Organization) error { return nil }
func (cs *countingStorer) Update(ctx context.Context, org orgbus.Organization) error { return nil }
func (cs *countingStorer) Delete(ctx context.Context, org orgbus.Organization) error { return nil }

func (cs *countingStorer) QueryByID(ctx context.Context, orgID uuid.UUID) (orgbus.Organization, error) {
	return orgbus.Organization{}, orgbus.ErrNotFound
}

func (cs *countingStorer) QueryByParentAndCode(ctx context.Context, parentID uuid.UUID, code string) (orgbus.Organization, error) {
	return orgbus.Organization{}, orgbus.ErrNotFound
}

func (cs *countingStorer) QuerySubtree(ctx context.Context, rootID uuid.UUID, maxDepth int) ([]orgbus.Organization, error) {
	cs.mu.Lock()
	cs.subtreeReads++
	cs.mu.Unlock()

	if cs.hold != nil {
		<-cs.hold
	}

	return cs.subtree, nil
}

func (cs *countingStorer) Query(ctx context.Context, filter orgbus.QueryFilter, orderBy order.By, pg page.Page) ([]orgbus.Organization, error) {
	return nil, nil
}

func (cs *countingStorer) Count(ctx context.Context, filter orgbus.QueryFilter) (int, error) {
	return 0, nil
}

func (cs *countingStorer) CountActiveChildren(ctx context.Context, orgID uuid.UUID) (int, error) {
	return 0, nil
}

func (cs *countingStorer) CountTenantLinks(ctx context.Context, orgID uuid.UUID) (int, error) {
	return 0, nil
}

func (cs *countingStorer) UpsertPolicy(ctx context.Context, p orgbus.DataSharingPolicy) error {
	return nil
}

func (cs *countingStorer) QueryPolicy(ctx context.Context, orgID uuid.UUID, category datacategory.DataCategory) (orgbus.DataSharingPolicy, error) {
	return orgbus.DataSharingPolicy{}, orgbus.ErrPolicyNotFound
}

func (cs *countingStorer) QueryPolicies(ctx context.Context, orgID uuid.UUID) ([]orgbus.DataSharingPolicy, error) {
	return nil, nil
}

func (cs *countingStorer) CreateTenantLink(ctx context.Context, link orgbus.TenantLink) error {
	return nil
}

func (cs *countingStorer) QueryTenantLinks(ctx context.Context, orgID uuid.UUID) ([]orgbus.TenantLink, error) {
	return nil, nil
}

func (cs *countingStorer) QueryAccessibleTenants(ctx context.Context, orgID uuid.UUID) ([]uuid.UUID, error) {
	cs.mu.Lock()
	cs.tenantReads++
	cs.mu.Unlock()

	return cs.tenants, nil
}

func (cs *countingStorer) QueryPrimaryLink(ctx context.Context, tenantID uuid.UUID) (orgbus.TenantLink, error) {
	return orgbus.TenantLink{}, orgbus.ErrNotFound
}

func newTestStore(cs *countingStorer) *orgcache.Store {
	log := logger.New(io.Discard, logger.LevelInfo, "TEST", nil)
	return orgcache.NewStore(log, cs, time.Minute)
}

func Test_QuerySubtree_ServesCachedSnapshot(t *testing.T) {
	ctx := context.Background()
	rootID := uuid.New()

	cs := &countingStorer{
		subtree: []orgbus.Organization{{ID: rootID, Path: "acme", Level: 1}},
	}
	store := newTestStore(cs)

	for range 3 {
		subtree, err := store.QuerySubtree(ctx, rootID, orgbus.MaxDepth)
		if err != nil {
			t.Fatalf("querying subtree: %s", err)
		}
		if len(subtree) != 1 || subtree[0].ID != rootID {
			t.Fatalf("got subtree %+v, want the canned root", subtree)
		}
	}

	if cs.subtreeReads != 1 {
		t.Errorf("got %d database reads, want 1", cs.subtreeReads)
	}
}

func Test_QuerySubtree_CollapsesConcurrentMisses(t *testing.T) {
	ctx := context.Background()
	rootID := uuid.New()

	cs := &countingStorer{
		subtree: []orgbus.Organization{{ID: rootID, Path: "acme", Level: 1}},
		hold:    make(chan struct{}),
	}
	store := newTestStore(cs)

	const readers = 8

	var wg sync.WaitGroup
	readErrs := make(chan error, readers)

	for range readers {
		wg.Add(1)
		go func() {
			defer wg.Done()

			subtree, err := store.QuerySubtree(ctx, rootID, orgbus.MaxDepth)
			if err != nil {
				readErrs <- err
				return
			}
			if len(subtree) != 1 || subtree[0].ID != rootID {
				readErrs <- fmt.Errorf("got subtree %+v, want the canned root", subtree)
			}
		}()
	}

	// Let every reader reach the in-flight fetch before releasing it.
	time.Sleep(50 * time.Millisecond)
	close(cs.hold)
	wg.Wait()
	close(readErrs)

	for err := range readErrs {
		t.Errorf("concurrent read: %s", err)
	}

	if got := cs.subtreeReadCount(); got != 1 {
		t.Errorf("got %d database reads for %d concurrent readers, want 1", got, readers)
	}
}

func Test_QuerySubtree_KeysOnDepth(t *testing.T) {
	ctx := context.Background()
	rootID := uuid.New()

	cs := &countingStorer{subtree: []orgbus.Organization{{ID: rootID}}}
	store := newTestStore(cs)

	if _, err := store.QuerySubtree(ctx, rootID, 1); err != nil {
		t.Fatalf("querying subtree: %s", err)
	}
	if _, err := store.QuerySubtree(ctx, rootID, orgbus.MaxDepth); err != nil {
		t.Fatalf("querying subtree: %s", err)
	}

	if cs.subtreeReads != 2 {
		t.Errorf("got %d database reads, want 2: depth variants never share an entry", cs.subtreeReads)
	}
}

func Test_QueryAccessibleTenants_ServesCachedSnapshot(t *testing.T) {
	ctx := context.Background()
	orgID := uuid.New()

	cs := &countingStorer{tenants: []uuid.UUID{uuid.New(), uuid.New()}}
	store := newTestStore(cs)

	for range 3 {
		tenants, err := store.QueryAccessibleTenants(ctx, orgID)
		if err != nil {
			t.Fatalf("querying accessible tenants: %s", err)
		}
		if len(tenants) != 2 {
			t.Fatalf("got %d tenants, want 2", len(tenants))
		}
	}

	if cs.tenantReads != 1 {
		t.Errorf("got %d database reads, want 1", cs.tenantReads)
	}
}

func Test_Invalidate_DropsNodeSnapshots(t *testing.T) {
	ctx := context.Background()
	rootID := uuid.New()
	otherID := uuid.New()

	cs := &countingStorer{
		subtree: []orgbus.Organization{{ID: rootID}},
		tenants: []uuid.UUID{uuid.New()},
	}
	store := newTestStore(cs)

	prime := func(id uuid.UUID) {
		if _, err := store.QuerySubtree(ctx, id, orgbus.MaxDepth); err != nil {
			t.Fatalf("querying subtree: %s", err)
		}
		if _, err := store.QueryAccessibleTenants(ctx, id); err != nil {
			t.Fatalf("querying accessible tenants: %s", err)
		}
	}

	prime(rootID)
	prime(otherID)

	store.Invalidate(rootID)

	prime(rootID)
	prime(otherID)

	// The invalidated node re-reads both snapshots; the untouched node
	// keeps serving from cache.
	if cs.subtreeReads != 3 {
		t.Errorf("got %d subtree reads, want 3", cs.subtreeReads)
	}
	if cs.tenantReads != 3 {
		t.Errorf("got %d tenant reads, want 3", cs.tenantReads)
	}
}

func Test_NewWithTx_BypassesCache(t *testing.T) {
	ctx := context.Background()
	rootID := uuid.New()

	cs := &countingStorer{subtree: []orgbus.Organization{{ID: rootID}}}
	store := newTestStore(cs)

	// Prime the shared cache.
	if _, err := store.QuerySubtree(ctx, rootID, orgbus.MaxDepth); err != nil {
		t.Fatalf("querying subtree: %s", err)
	}

	txStore, err := store.NewWithTx(nil)
	if err != nil {
		t.Fatalf("creating tx store: %s", err)
	}

	for range 2 {
		if _, err := txStore.QuerySubtree(ctx, rootID, orgbus.MaxDepth); err != nil {
			t.Fatalf("querying subtree under tx: %s", err)
		}
	}

	// 1 priming read + 2 bypass reads.
	if cs.subtreeReads != 3 {
		t.Errorf("got %d database reads, want 3: transactional reads never serve the cache", cs.subtreeReads)
	}
}

package orgbus_test

import (
	"context"
	"errors"
	"io"
	"sort"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"
	"github.com/lodgehub/lodgehub/business/domain/orgbus"
	"github.com/lodgehub/lodgehub/business/sdk/order"
	"github.com/lodgehub/lodgehub/business/sdk/page"
	"github.com/lodgehub/lodgehub/business/sdk/sqldb"
	"github.com/lodgehub/lodgehub/business/types/accesslevel"
	"github.com/lodgehub/lodgehub/business/types/datacategory"
	"github.com/lodgehub/lodgehub/business/types/name"
	"github.com/lodgehub/lodgehub/business/types/orgcode"
	"github.com/lodgehub/lodgehub/business/types/orgtype"
	"github.com/lodgehub/lodgehub/business/types/sharingscope"
	"github.com/lodgehub/lodgehub/business/types/tenantrole"
	"github.com/lodgehub/lodgehub/foundation/logger"
)

// =============================================================================
// In-memory storer and event capture.

type fakeStorer struct {
	orgs        map[uuid.UUID]orgbus.Organization
	policies    map[uuid.UUID]map[datacategory.DataCategory]orgbus.DataSharingPolicy
	links       []orgbus.TenantLink
	invalidated []uuid.UUID
}

func newFakeStorer() *fakeStorer {
	return &fakeStorer{
		orgs:     make(map[uuid.UUID]orgbus.Organization),
		policies: make(map[uuid.UUID]map[datacategory.DataCategory]orgbus.DataSharingPolicy),
	}
}

func (s *fakeStorer) NewWithTx(tx sqldb.CommitRollbacker) (orgbus.Storer, error) {
	return s, nil
}

func (s *fakeStorer) Create(_ context.Context, org orgbus.Organization) error {
	s.orgs[org.ID] = org
	return nil
}

func (s *fakeStorer) Update(_ context.Context, org orgbus.Organization) error {
	if _, exists := s.orgs[org.ID]; !exists {
		return orgbus.ErrNotFound
	}
	s.orgs[org.ID] = org
	return nil
}

func (s *fakeStorer) Delete(_ context.Context, org orgbus.Organization) error {
	s.orgs[org.ID] = org
	return nil
}

func (s *fakeStorer) QueryByID(_ context.Context, orgID uuid.UUID) (orgbus.Organization, error) {
	org, exists := s.orgs[orgID]
	if !exists || org.DeletedAt != nil {
		return orgbus.Organization{}, orgbus.ErrNotFound
	}
	return org, nil
}

func (s *fakeStorer) QueryByParentAndCode(_ context.Context, parentID uuid.UUID, code string) (orgbus.Organization, error) {
	for _, org := range s.orgs {
		if org.DeletedAt == nil && org.ParentID == parentID && org.Code.String() == code {
			return org, nil
		}
	}
	return orgbus.Organization{}, orgbus.ErrNotFound
}

func (s *fakeStorer) QuerySubtree(_ context.Context, rootID uuid.UUID, maxDepth int) ([]orgbus.Organization, error) {
	root, exists := s.orgs[rootID]
	if !exists || root.DeletedAt != nil {
		return nil, orgbus.ErrNotFound
	}

	var subtree []orgbus.Organization
	for _, org := range s.orgs {
		if org.DeletedAt != nil {
			continue
		}
		inTree := org.ID == rootID || strings.HasPrefix(org.Path, root.Path+orgbus.PathSeparator)
		if inTree && org.Level <= root.Level+maxDepth {
			subtree = append(subtree, org)
		}
	}

	sort.Slice(subtree, func(i, j int) bool {
		return subtree[i].Path < subtree[j].Path
	})

	return subtree, nil
}

func (s *fakeStorer) Query(_ context.Context, _ orgbus.QueryFilter, _ order.By, _ page.Page) ([]orgbus.Organization, error) {
	var orgs []orgbus.Organization
	for _, org := range s.orgs {
		if org.DeletedAt == nil {
			orgs = append(orgs, org)
		}
	}
	return orgs, nil
}

func (s *fakeStorer) Count(_ context.Context, _ orgbus.QueryFilter) (int, error) {
	n := 0
	for _, org := range s.orgs {
		if org.DeletedAt == nil {
			n++
		}
	}
	return n, nil
}

func (s *fakeStorer) CountActiveChildren(_ context.Context, orgID uuid.UUID) (int, error) {
	n := 0
	for _, org := range s.orgs {
		if org.DeletedAt == nil && org.ParentID == orgID {
			n++
		}
	}
	return n, nil
}

func (s *fakeStorer) CountTenantLinks(_ context.Context, orgID uuid.UUID) (int, error) {
	n := 0
	for _, link := range s.links {
		if link.OrganizationID == orgID {
			n++
		}
	}
	return n, nil
}

func (s *fakeStorer) UpsertPolicy(_ context.Context, p orgbus.DataSharingPolicy) error {
	if s.policies[p.OrganizationID] == nil {
		s.policies[p.OrganizationID] = make(map[datacategory.DataCategory]orgbus.DataSharingPolicy)
	}
	s.policies[p.OrganizationID][p.Category] = p
	return nil
}

func (s *fakeStorer) QueryPolicy(_ context.Context, orgID uuid.UUID, category datacategory.DataCategory) (orgbus.DataSharingPolicy, error) {
	p, exists := s.policies[orgID][category]
	if !exists {
		return orgbus.DataSharingPolicy{}, orgbus.ErrPolicyNotFound
	}
	return p, nil
}

func (s *fakeStorer) QueryPolicies(_ context.Context, orgID uuid.UUID) ([]orgbus.DataSharingPolicy, error) {
	var rows []orgbus.DataSharingPolicy
	for _, p := range s.policies[orgID] {
		rows = append(rows, p)
	}
	return rows, nil
}

func (s *fakeStorer) CreateTenantLink(_ context.Context, link orgbus.TenantLink) error {
	s.links = append(s.links, link)
	return nil
}

func (s *fakeStorer) QueryTenantLinks(_ context.Context, orgID uuid.UUID) ([]orgbus.TenantLink, error) {
	var links []orgbus.TenantLink
	for _, link := range s.links {
		if link.OrganizationID == orgID {
			links = append(links, link)
		}
	}
	return links, nil
}

func (s *fakeStorer) QueryAccessibleTenants(_ context.Context, orgID uuid.UUID) ([]uuid.UUID, error) {
	root, exists := s.orgs[orgID]
	if !exists {
		return nil, orgbus.ErrNotFound
	}

	seen := make(map[uuid.UUID]bool)
	var tenants []uuid.UUID
	for _, link := range s.links {
		org, ok := s.orgs[link.OrganizationID]
		if !ok {
			continue
		}
		inTree := org.ID == root.ID || strings.HasPrefix(org.Path, root.Path+orgbus.PathSeparator)
		if inTree && !seen[link.TenantID] {
			seen[link.TenantID] = true
			tenants = append(tenants, link.TenantID)
		}
	}
	return tenants, nil
}

func (s *fakeStorer) QueryPrimaryLink(_ context.Context, tenantID uuid.UUID) (orgbus.TenantLink, error) {
	for _, link := range s.links {
		if link.TenantID == tenantID && link.Role.Equal(tenantrole.Primary) {
			return link, nil
		}
	}
	return orgbus.TenantLink{}, orgbus.ErrNotFound
}

func (s *fakeStorer) Invalidate(orgID uuid.UUID) {
	s.invalidated = append(s.invalidated, orgID)
}

type fakeTx struct {
	committed  bool
	rolledBack bool
}

func (tx *fakeTx) Commit() error {
	tx.committed = true
	return nil
}

func (tx *fakeTx) Rollback() error {
	tx.rolledBack = true
	return nil
}

type capturePublisher struct {
	events []orgbus.ChangeEvent
}

func (p *capturePublisher) Publish(_ context.Context, _ string, value any) error {
	event, ok := value.(orgbus.ChangeEvent)
	if !ok {
		return errors.New("unexpected event type")
	}
	p.events = append(p.events, event)
	return nil
}

func (p *capturePublisher) Close() error {
	return nil
}

// =============================================================================

func newTestCore(t *testing.T) (*orgbus.Core, *fakeStorer, *capturePublisher) {
	t.Helper()

	storer := newFakeStorer()
	publisher := &capturePublisher{}
	log := logger.New(io.Discard, logger.LevelInfo, "TEST", nil)

	return orgbus.NewCore(log, storer, publisher), storer, publisher
}

func mustCreate(t *testing.T, core *orgbus.Core, typ orgtype.OrgType, code string, parentID uuid.UUID) orgbus.Organization {
	t.Helper()

	org, err := core.Create(context.Background(), uuid.New(), orgbus.NewOrganization{
		Type:     typ,
		Name:     name.MustParse("Node " + code),
		Code:     orgcode.MustParse(code),
		ParentID: parentID,
	})
	if err != nil {
		t.Fatalf("creating node %q: %s", code, err)
	}

	return org
}

func Test_Create_DerivesLevelAndPath(t *testing.T) {
	core, _, _ := newTestCore(t)

	group := mustCreate(t, core, orgtype.Group, "acme", uuid.Nil)
	brand := mustCreate(t, core, orgtype.Brand, "luxe", group.ID)
	hotel := mustCreate(t, core, orgtype.Hotel, "paris-01", brand.ID)
	dept := mustCreate(t, core, orgtype.Department, "frontdesk", hotel.ID)

	checks := []struct {
		org   orgbus.Organization
		level int
		path  string
	}{
		{group, 1, "acme"},
		{brand, 2, "acme/luxe"},
		{hotel, 3, "acme/luxe/paris-01"},
		{dept, 4, "acme/luxe/paris-01/frontdesk"},
	}

	for _, check := range checks {
		if check.org.Level != check.level {
			t.Errorf("node %s: got level %d, want %d", check.org.Code, check.org.Level, check.level)
		}
		if check.org.Path != check.path {
			t.Errorf("node %s: got path %q, want %q", check.org.Code, check.org.Path, check.path)
		}
	}
}

func Test_Create_RejectsFifthLevel(t *testing.T) {
	core, _, _ := newTestCore(t)

	group := mustCreate(t, core, orgtype.Group, "acme", uuid.Nil)
	brand := mustCreate(t, core, orgtype.Brand, "luxe", group.ID)
	hotel := mustCreate(t, core, orgtype.Hotel, "paris-01", brand.ID)
	dept := mustCreate(t, core, orgtype.Department, "frontdesk", hotel.ID)

	_, err := core.Create(context.Background(), uuid.New(), orgbus.NewOrganization{
		Type:     orgtype.Department,
		Name:     name.MustParse("Too Deep"),
		Code:     orgcode.MustParse("sub"),
		ParentID: dept.ID,
	})
	if !errors.Is(err, orgbus.ErrLevelExceeded) {
		t.Fatalf("got error %v, want ErrLevelExceeded", err)
	}
}

func Test_Create_RejectsNonGroupRoot(t *testing.T) {
	core, _, _ := newTestCore(t)

	_, err := core.Create(context.Background(), uuid.New(), orgbus.NewOrganization{
		Type: orgtype.Hotel,
		Name: name.MustParse("Orphan Hotel"),
		Code: orgcode.MustParse("orphan"),
	})
	if !errors.Is(err, orgbus.ErrInvalidParent) {
		t.Fatalf("got error %v, want ErrInvalidParent", err)
	}
}

func Test_Create_RejectsDuplicateSiblingCode(t *testing.T) {
	core, _, _ := newTestCore(t)

	group := mustCreate(t, core, orgtype.Group, "acme", uuid.Nil)
	mustCreate(t, core, orgtype.Brand, "luxe", group.ID)

	_, err := core.Create(context.Background(), uuid.New(), orgbus.NewOrganization{
		Type:     orgtype.Brand,
		Name:     name.MustParse("Copy"),
		Code:     orgcode.MustParse("luxe"),
		ParentID: group.ID,
	})
	if !errors.Is(err, orgbus.ErrDuplicateCode) {
		t.Fatalf("got error %v, want ErrDuplicateCode", err)
	}

	// The same code under a different parent is fine.
	other := mustCreate(t, core, orgtype.Group, "other", uuid.Nil)
	mustCreate(t, core, orgtype.Brand, "luxe", other.ID)
}

func Test_Create_SeedsDefaultPolicies(t *testing.T) {
	core, storer, _ := newTestCore(t)

	brand := mustCreate(t, core, orgtype.Group, "acme", uuid.Nil)

	if got, want := len(storer.policies[brand.ID]), len(datacategory.All()); got != want {
		t.Fatalf("got %d seeded policies, want %d", got, want)
	}
}

func Test_Update_CodeChangeRewritesSubtreePaths(t *testing.T) {
	core, _, _ := newTestCore(t)
	ctx := context.Background()

	group := mustCreate(t, core, orgtype.Group, "acme", uuid.Nil)
	brand := mustCreate(t, core, orgtype.Brand, "luxe", group.ID)
	hotel := mustCreate(t, core, orgtype.Hotel, "paris-01", brand.ID)
	dept := mustCreate(t, core, orgtype.Department, "frontdesk", hotel.ID)

	newCode := orgcode.MustParse("prestige")
	updated, err := core.Update(ctx, uuid.New(), brand, orgbus.UpdateOrganization{Code: &newCode})
	if err != nil {
		t.Fatalf("updating brand code: %s", err)
	}

	if updated.Path != "acme/prestige" {
		t.Fatalf("got path %q, want %q", updated.Path, "acme/prestige")
	}

	wantPaths := map[uuid.UUID]string{
		hotel.ID: "acme/prestige/paris-01",
		dept.ID:  "acme/prestige/paris-01/frontdesk",
	}
	for id, want := range wantPaths {
		org, err := core.QueryByID(ctx, id)
		if err != nil {
			t.Fatalf("querying descendant: %s", err)
		}
		if org.Path != want {
			t.Errorf("descendant %s: got path %q, want %q", id, org.Path, want)
		}
	}
}

func Test_Update_RejectsReparentIntoOwnSubtree(t *testing.T) {
	core, _, _ := newTestCore(t)

	group := mustCreate(t, core, orgtype.Group, "acme", uuid.Nil)
	brand := mustCreate(t, core, orgtype.Brand, "luxe", group.ID)
	hotel := mustCreate(t, core, orgtype.Hotel, "paris-01", brand.ID)

	_, err := core.Update(context.Background(), uuid.New(), brand, orgbus.UpdateOrganization{
		ParentID: &hotel.ID,
	})
	if !errors.Is(err, orgbus.ErrInvalidParent) {
		t.Fatalf("got error %v, want ErrInvalidParent", err)
	}
}

func Test_Update_RejectsReparentBeyondMaxDepth(t *testing.T) {
	core, _, _ := newTestCore(t)

	group := mustCreate(t, core, orgtype.Group, "acme", uuid.Nil)
	brand := mustCreate(t, core, orgtype.Brand, "luxe", group.ID)
	hotel := mustCreate(t, core, orgtype.Hotel, "paris-01", brand.ID)
	mustCreate(t, core, orgtype.Department, "frontdesk", hotel.ID)

	// Moving the brand under the hotel would push the department to level 5.
	otherHotel := mustCreate(t, core, orgtype.Hotel, "rome-01", brand.ID)

	_, err := core.Update(context.Background(), uuid.New(), hotel, orgbus.UpdateOrganization{
		ParentID: &otherHotel.ID,
	})
	if !errors.Is(err, orgbus.ErrLevelExceeded) {
		t.Fatalf("got error %v, want ErrLevelExceeded", err)
	}
}

func Test_Delete_Guards(t *testing.T) {
	core, _, _ := newTestCore(t)
	ctx := context.Background()

	group := mustCreate(t, core, orgtype.Group, "acme", uuid.Nil)
	brand := mustCreate(t, core, orgtype.Brand, "luxe", group.ID)

	if err := core.Delete(ctx, uuid.New(), group); !errors.Is(err, orgbus.ErrHasChildren) {
		t.Fatalf("got error %v, want ErrHasChildren", err)
	}

	tenantID := uuid.New()
	if _, err := core.LinkTenant(ctx, uuid.New(), tenantID, brand.ID, tenantrole.Primary); err != nil {
		t.Fatalf("linking tenant: %s", err)
	}

	if err := core.Delete(ctx, uuid.New(), brand); !errors.Is(err, orgbus.ErrHasTenants) {
		t.Fatalf("got error %v, want ErrHasTenants", err)
	}
}

func Test_Delete_SoftDeletesLeaf(t *testing.T) {
	core, _, _ := newTestCore(t)
	ctx := context.Background()

	group := mustCreate(t, core, orgtype.Group, "acme", uuid.Nil)
	brand := mustCreate(t, core, orgtype.Brand, "luxe", group.ID)

	if err := core.Delete(ctx, uuid.New(), brand); err != nil {
		t.Fatalf("deleting leaf: %s", err)
	}

	if _, err := core.QueryByID(ctx, brand.ID); !errors.Is(err, orgbus.ErrNotFound) {
		t.Fatalf("got error %v, want ErrNotFound after delete", err)
	}

	// The code is free for reuse among the live siblings.
	mustCreate(t, core, orgtype.Brand, "luxe", group.ID)
}

func Test_SetPolicies_OverlaysDefaults(t *testing.T) {
	core, _, _ := newTestCore(t)
	ctx := context.Background()

	group := mustCreate(t, core, orgtype.Group, "acme", uuid.Nil)
	brand := mustCreate(t, core, orgtype.Brand, "luxe", group.ID)

	_, err := core.SetPolicies(ctx, uuid.New(), brand.ID, []orgbus.NewDataSharingPolicy{
		{Category: datacategory.Financial, Scope: sharingscope.None, Level: accesslevel.SummaryOnly},
	})
	if err != nil {
		t.Fatalf("setting policies: %s", err)
	}

	resolved, err := core.ResolvePolicies(ctx, brand.ID)
	if err != nil {
		t.Fatalf("resolving policies: %s", err)
	}

	got := resolved[datacategory.Financial]
	want := orgbus.EffectivePolicy{Scope: sharingscope.None, Level: accesslevel.SummaryOnly}
	if diff := cmp.Diff(want, got, cmp.AllowUnexported(sharingscope.SharingScope{}, accesslevel.AccessLevel{})); diff != "" {
		t.Fatalf("financial policy mismatch (-want +got):\n%s", diff)
	}

	// Untouched categories keep their explicit seeded defaults.
	gotAnalytics := resolved[datacategory.Analytics]
	wantAnalytics := orgbus.DefaultPolicy(orgtype.Brand, datacategory.Analytics)
	if diff := cmp.Diff(wantAnalytics, gotAnalytics, cmp.AllowUnexported(sharingscope.SharingScope{}, accesslevel.AccessLevel{})); diff != "" {
		t.Fatalf("analytics policy mismatch (-want +got):\n%s", diff)
	}
}

func Test_SetPolicies_IsIdempotentPerCategory(t *testing.T) {
	core, storer, _ := newTestCore(t)
	ctx := context.Background()

	group := mustCreate(t, core, orgtype.Group, "acme", uuid.Nil)

	np := []orgbus.NewDataSharingPolicy{
		{Category: datacategory.Customer, Scope: sharingscope.Group, Level: accesslevel.ReadOnly},
	}

	for range 3 {
		if _, err := core.SetPolicies(ctx, uuid.New(), group.ID, np); err != nil {
			t.Fatalf("setting policies: %s", err)
		}
	}

	if got, want := len(storer.policies[group.ID]), len(datacategory.All()); got != want {
		t.Fatalf("got %d policy rows, want %d", got, want)
	}
}

func Test_ApplyPreset(t *testing.T) {
	core, _, _ := newTestCore(t)
	ctx := context.Background()

	group := mustCreate(t, core, orgtype.Group, "acme", uuid.Nil)
	brand := mustCreate(t, core, orgtype.Brand, "luxe", group.ID)

	org, err := core.ApplyPreset(ctx, uuid.New(), brand.ID, orgbus.PresetHotelIndependence)
	if err != nil {
		t.Fatalf("applying preset: %s", err)
	}

	if org.AppliedPreset() != orgbus.PresetHotelIndependence {
		t.Fatalf("got applied preset %q, want %q", org.AppliedPreset(), orgbus.PresetHotelIndependence)
	}

	resolved, err := core.ResolvePolicies(ctx, brand.ID)
	if err != nil {
		t.Fatalf("resolving policies: %s", err)
	}

	for _, category := range datacategory.All() {
		p := resolved[category]
		if !p.Scope.Equal(sharingscope.Hotel) || !p.Level.Equal(accesslevel.Full) {
			t.Errorf("category %s: got (%s, %s), want (HOTEL, FULL)", category, p.Scope, p.Level)
		}
	}
}

func Test_ApplyPreset_UnknownPreset(t *testing.T) {
	core, _, _ := newTestCore(t)

	group := mustCreate(t, core, orgtype.Group, "acme", uuid.Nil)

	_, err := core.ApplyPreset(context.Background(), uuid.New(), group.ID, "does-not-exist")
	if !errors.Is(err, orgbus.ErrPresetNotFound) {
		t.Fatalf("got error %v, want ErrPresetNotFound", err)
	}
}

func Test_LinkTenant_SinglePrimary(t *testing.T) {
	core, _, _ := newTestCore(t)
	ctx := context.Background()

	group := mustCreate(t, core, orgtype.Group, "acme", uuid.Nil)
	brand := mustCreate(t, core, orgtype.Brand, "luxe", group.ID)

	tenantID := uuid.New()

	if _, err := core.LinkTenant(ctx, uuid.New(), tenantID, group.ID, tenantrole.Primary); err != nil {
		t.Fatalf("linking primary: %s", err)
	}

	_, err := core.LinkTenant(ctx, uuid.New(), tenantID, brand.ID, tenantrole.Primary)
	if !errors.Is(err, orgbus.ErrPrimaryLinkTaken) {
		t.Fatalf("got error %v, want ErrPrimaryLinkTaken", err)
	}

	// A secondary link elsewhere is allowed.
	if _, err := core.LinkTenant(ctx, uuid.New(), tenantID, brand.ID, tenantrole.Secondary); err != nil {
		t.Fatalf("linking secondary: %s", err)
	}
}

func Test_AccessibleTenants_CoversSubtree(t *testing.T) {
	core, _, _ := newTestCore(t)
	ctx := context.Background()

	group := mustCreate(t, core, orgtype.Group, "acme", uuid.Nil)
	brand := mustCreate(t, core, orgtype.Brand, "luxe", group.ID)
	hotel := mustCreate(t, core, orgtype.Hotel, "paris-01", brand.ID)
	otherGroup := mustCreate(t, core, orgtype.Group, "rival", uuid.Nil)

	brandTenant := uuid.New()
	hotelTenant := uuid.New()
	rivalTenant := uuid.New()

	mustLink := func(tenantID uuid.UUID, orgID uuid.UUID) {
		t.Helper()
		if _, err := core.LinkTenant(ctx, uuid.New(), tenantID, orgID, tenantrole.Primary); err != nil {
			t.Fatalf("linking tenant: %s", err)
		}
	}

	mustLink(brandTenant, brand.ID)
	mustLink(hotelTenant, hotel.ID)
	mustLink(rivalTenant, otherGroup.ID)

	tenants, err := core.AccessibleTenants(ctx, brand.ID)
	if err != nil {
		t.Fatalf("querying accessible tenants: %s", err)
	}

	seen := make(map[uuid.UUID]bool, len(tenants))
	for _, id := range tenants {
		seen[id] = true
	}

	if !seen[brandTenant] || !seen[hotelTenant] {
		t.Fatalf("subtree tenants missing from %v", tenants)
	}
	if seen[rivalTenant] {
		t.Fatalf("tenant of an unrelated tree leaked into %v", tenants)
	}
}

func Test_ChangeEvents(t *testing.T) {
	core, _, publisher := newTestCore(t)
	ctx := context.Background()

	group := mustCreate(t, core, orgtype.Group, "acme", uuid.Nil)
	brand := mustCreate(t, core, orgtype.Brand, "luxe", group.ID)

	newCode := orgcode.MustParse("prestige")
	if _, err := core.Update(ctx, uuid.New(), brand, orgbus.UpdateOrganization{Code: &newCode}); err != nil {
		t.Fatalf("updating: %s", err)
	}

	wantOps := []string{orgbus.OpCreate, orgbus.OpCreate, orgbus.OpUpdate}
	if len(publisher.events) != len(wantOps) {
		t.Fatalf("got %d events, want %d", len(publisher.events), len(wantOps))
	}

	for i, event := range publisher.events {
		if event.Operation != wantOps[i] {
			t.Errorf("event %d: got operation %q, want %q", i, event.Operation, wantOps[i])
		}
		if event.EventType != orgbus.EventTypeHierarchyChange {
			t.Errorf("event %d: got type %q, want %q", i, event.EventType, orgbus.EventTypeHierarchyChange)
		}
	}
}

func Test_Update_RejectsReparentOntoDuplicateSiblingCode(t *testing.T) {
	core, _, _ := newTestCore(t)
	ctx := context.Background()

	group := mustCreate(t, core, orgtype.Group, "acme", uuid.Nil)
	luxe := mustCreate(t, core, orgtype.Brand, "luxe", group.ID)
	budget := mustCreate(t, core, orgtype.Brand, "budget", group.ID)
	mustCreate(t, core, orgtype.Hotel, "paris-01", luxe.ID)
	mover := mustCreate(t, core, orgtype.Hotel, "paris-01", budget.ID)

	// Same code, different parents today. Moving under luxe would collide.
	_, err := core.Update(ctx, uuid.New(), mover, orgbus.UpdateOrganization{ParentID: &luxe.ID})
	if !errors.Is(err, orgbus.ErrDuplicateCode) {
		t.Fatalf("got error %v, want ErrDuplicateCode", err)
	}
}

func Test_SetPolicies_PreservesCreationTimeOnReupsert(t *testing.T) {
	core, storer, _ := newTestCore(t)
	ctx := context.Background()

	group := mustCreate(t, core, orgtype.Group, "acme", uuid.Nil)
	seeded := storer.policies[group.ID][datacategory.Customer]

	np := []orgbus.NewDataSharingPolicy{
		{Category: datacategory.Customer, Scope: sharingscope.Group, Level: accesslevel.ReadOnly},
	}

	first, err := core.SetPolicies(ctx, uuid.New(), group.ID, np)
	if err != nil {
		t.Fatalf("setting policies: %s", err)
	}
	if !first[0].CreatedAt.Equal(seeded.CreatedAt) {
		t.Errorf("first upsert: got created %v, want seeded %v", first[0].CreatedAt, seeded.CreatedAt)
	}

	second, err := core.SetPolicies(ctx, uuid.New(), group.ID, np)
	if err != nil {
		t.Fatalf("setting policies again: %s", err)
	}
	if !second[0].CreatedAt.Equal(seeded.CreatedAt) {
		t.Errorf("second upsert: got created %v, want seeded %v", second[0].CreatedAt, seeded.CreatedAt)
	}

	stored := storer.policies[group.ID][datacategory.Customer]
	if !stored.CreatedAt.Equal(seeded.CreatedAt) {
		t.Errorf("stored row: got created %v, want seeded %v", stored.CreatedAt, seeded.CreatedAt)
	}
}

func Test_Mutation_DefersEventsAndInvalidationToCommit(t *testing.T) {
	core, storer, publisher := newTestCore(t)
	ctx := context.Background()

	group := mustCreate(t, core, orgtype.Group, "acme", uuid.Nil)
	brand := mustCreate(t, core, orgtype.Brand, "luxe", group.ID)

	publisher.events = nil
	storer.invalidated = nil

	tx := sqldb.WithHooks(&fakeTx{})
	txCore, err := core.NewWithTx(tx)
	if err != nil {
		t.Fatalf("constructing tx core: %s", err)
	}

	newCode := orgcode.MustParse("prestige")
	if _, err := txCore.Update(ctx, uuid.New(), brand, orgbus.UpdateOrganization{Code: &newCode}); err != nil {
		t.Fatalf("updating: %s", err)
	}

	if len(publisher.events) != 0 {
		t.Fatalf("got %d events before commit, want 0", len(publisher.events))
	}
	if len(storer.invalidated) != 0 {
		t.Fatalf("cache invalidated before commit: %v", storer.invalidated)
	}

	if err := tx.Commit(); err != nil {
		t.Fatalf("committing: %s", err)
	}

	if len(publisher.events) != 1 {
		t.Fatalf("after commit got %d events, want 1", len(publisher.events))
	}
	if publisher.events[0].Operation != orgbus.OpUpdate {
		t.Errorf("after commit got operation %q, want %q", publisher.events[0].Operation, orgbus.OpUpdate)
	}

	dropped := false
	for _, id := range storer.invalidated {
		if id == brand.ID {
			dropped = true
		}
	}
	if !dropped {
		t.Errorf("after commit invalidations %v missing node %s", storer.invalidated, brand.ID)
	}
}

func Test_Mutation_RollbackEmitsNothing(t *testing.T) {
	core, storer, publisher := newTestCore(t)
	ctx := context.Background()

	group := mustCreate(t, core, orgtype.Group, "acme", uuid.Nil)
	brand := mustCreate(t, core, orgtype.Brand, "luxe", group.ID)

	publisher.events = nil
	storer.invalidated = nil

	inner := &fakeTx{}
	tx := sqldb.WithHooks(inner)
	txCore, err := core.NewWithTx(tx)
	if err != nil {
		t.Fatalf("constructing tx core: %s", err)
	}

	newCode := orgcode.MustParse("prestige")
	if _, err := txCore.Update(ctx, uuid.New(), brand, orgbus.UpdateOrganization{Code: &newCode}); err != nil {
		t.Fatalf("updating: %s", err)
	}

	if err := tx.Rollback(); err != nil {
		t.Fatalf("rolling back: %s", err)
	}
	if !inner.rolledBack {
		t.Fatal("inner transaction was not rolled back")
	}

	if len(publisher.events) != 0 {
		t.Fatalf("got %d events after rollback, want 0", len(publisher.events))
	}
	if len(storer.invalidated) != 0 {
		t.Fatalf("cache invalidated after rollback: %v", storer.invalidated)
	}
}

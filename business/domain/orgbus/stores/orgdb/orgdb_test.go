package orgdb_test

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"
	"github.com/lodgehub/lodgehub/business/domain/orgbus"
	"github.com/lodgehub/lodgehub/business/domain/orgbus/stores/orgdb"
	"github.com/lodgehub/lodgehub/business/types/name"
	"github.com/lodgehub/lodgehub/business/types/orgcode"
	"github.com/lodgehub/lodgehub/business/types/orgtype"
	"github.com/lodgehub/lodgehub/foundation/logger"
)

var orgColumns = []string{
	"org_id", "org_type", "name", "code", "parent_id", "level", "path",
	"settings", "created_at", "updated_at", "deleted_at",
}

func newTestStore(t *testing.T) (*orgdb.Store, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("creating sqlmock: %s", err)
	}
	t.Cleanup(func() { db.Close() })

	log := logger.New(io.Discard, logger.LevelError, "TEST", nil)

	return orgdb.NewStore(log, sqlx.NewDb(db, "postgres")), mock
}

func Test_QueryByID(t *testing.T) {
	ctx := context.Background()
	store, mock := newTestStore(t)

	orgID := uuid.New()
	now := time.Now().UTC().Truncate(time.Second)

	mock.ExpectQuery(`SELECT(.|\n)+FROM(.|\n)+"organizations"`).
		WillReturnRows(sqlmock.NewRows(orgColumns).
			AddRow(orgID.String(), "GROUP", "Acme Hotels", "acme", nil, 1, "acme",
				[]byte(`{"timezone":"UTC"}`), now, now, nil))

	org, err := store.QueryByID(ctx, orgID)
	if err != nil {
		t.Fatalf("querying by id: %s", err)
	}

	if org.ID != orgID {
		t.Errorf("got id %s, want %s", org.ID, orgID)
	}
	if !org.Type.Equal(orgtype.Group) {
		t.Errorf("got type %s, want GROUP", org.Type)
	}
	if org.ParentID != uuid.Nil {
		t.Errorf("got parent %s, want zero value for a root", org.ParentID)
	}
	if org.Settings["timezone"] != "UTC" {
		t.Errorf("got settings %v, want decoded timezone", org.Settings)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func Test_QueryByID_NotFound(t *testing.T) {
	ctx := context.Background()
	store, mock := newTestStore(t)

	mock.ExpectQuery(`SELECT(.|\n)+FROM(.|\n)+"organizations"`).
		WillReturnRows(sqlmock.NewRows(orgColumns))

	if _, err := store.QueryByID(ctx, uuid.New()); !errors.Is(err, orgbus.ErrNotFound) {
		t.Fatalf("got error %v, want ErrNotFound", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func Test_Create_MapsUniqueViolation(t *testing.T) {
	ctx := context.Background()
	store, mock := newTestStore(t)

	mock.ExpectExec(`INSERT INTO(.|\n)+"organizations"`).
		WillReturnError(&pgconn.PgError{
			Code:           "23505",
			ConstraintName: "uq_org_parent_code",
		})

	org := orgbus.Organization{
		ID:        uuid.New(),
		Type:      orgtype.Group,
		Name:      name.MustParse("Acme Hotels"),
		Code:      orgcode.MustParse("acme"),
		Level:     1,
		Path:      "acme",
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}

	if err := store.Create(ctx, org); !errors.Is(err, orgbus.ErrDuplicateCode) {
		t.Fatalf("got error %v, want ErrDuplicateCode", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func Test_QuerySubtree(t *testing.T) {
	ctx := context.Background()
	store, mock := newTestStore(t)

	rootID := uuid.New()
	childID := uuid.New()
	now := time.Now().UTC()

	mock.ExpectQuery(`SELECT(.|\n)+"organizations" AS o,(.|\n)+"organizations" AS r`).
		WillReturnRows(sqlmock.NewRows(orgColumns).
			AddRow(rootID.String(), "GROUP", "Acme Hotels", "acme", nil, 1, "acme",
				[]byte(`{}`), now, now, nil).
			AddRow(childID.String(), "BRAND", "Luxe Brand", "luxe", rootID.String(), 2, "acme/luxe",
				[]byte(`{}`), now, now, nil))

	subtree, err := store.QuerySubtree(ctx, rootID, orgbus.MaxDepth)
	if err != nil {
		t.Fatalf("querying subtree: %s", err)
	}

	if len(subtree) != 2 {
		t.Fatalf("got %d nodes, want 2", len(subtree))
	}
	if subtree[0].ID != rootID {
		t.Errorf("got first node %s, want the root first", subtree[0].ID)
	}
	if subtree[1].ParentID != rootID {
		t.Errorf("got child parent %s, want %s", subtree[1].ParentID, rootID)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func Test_QuerySubtree_MissingRoot(t *testing.T) {
	ctx := context.Background()
	store, mock := newTestStore(t)

	mock.ExpectQuery(`SELECT(.|\n)+"organizations"`).
		WillReturnRows(sqlmock.NewRows(orgColumns))

	if _, err := store.QuerySubtree(ctx, uuid.New(), orgbus.MaxDepth); !errors.Is(err, orgbus.ErrNotFound) {
		t.Fatalf("got error %v, want ErrNotFound", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func Test_QueryAccessibleTenants(t *testing.T) {
	ctx := context.Background()
	store, mock := newTestStore(t)

	t1 := uuid.New()
	t2 := uuid.New()

	mock.ExpectQuery(`SELECT DISTINCT(.|\n)+"organization_tenants"`).
		WillReturnRows(sqlmock.NewRows([]string{"tenant_id"}).
			AddRow(t1.String()).
			AddRow(t2.String()))

	tenants, err := store.QueryAccessibleTenants(ctx, uuid.New())
	if err != nil {
		t.Fatalf("querying accessible tenants: %s", err)
	}

	if len(tenants) != 2 {
		t.Fatalf("got %d tenants, want 2", len(tenants))
	}
	if tenants[0] != t1 || tenants[1] != t2 {
		t.Errorf("got tenants %v, want [%s %s]", tenants, t1, t2)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func Test_CreateTenantLink_MapsPrimaryViolation(t *testing.T) {
	ctx := context.Background()
	store, mock := newTestStore(t)

	mock.ExpectExec(`INSERT INTO(.|\n)+"organization_tenants"`).
		WillReturnError(&pgconn.PgError{
			Code:           "23505",
			ConstraintName: "uq_tenant_primary",
		})

	link := orgbus.TenantLink{
		TenantID:       uuid.New(),
		OrganizationID: uuid.New(),
		CreatedAt:      time.Now(),
	}

	if err := store.CreateTenantLink(ctx, link); !errors.Is(err, orgbus.ErrPrimaryLinkTaken) {
		t.Fatalf("got error %v, want ErrPrimaryLinkTaken", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

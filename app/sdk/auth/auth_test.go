package auth_test

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"io"
	"testing"

	"github.com/google/uuid"
	"github.com/lodgehub/lodgehub/app/sdk/auth"
	"github.com/lodgehub/lodgehub/business/domain/accessbus"
	"github.com/lodgehub/lodgehub/business/types/accesslevel"
	"github.com/lodgehub/lodgehub/business/types/datacategory"
	"github.com/lodgehub/lodgehub/business/types/operation"
	"github.com/lodgehub/lodgehub/business/types/role"
	"github.com/lodgehub/lodgehub/business/types/sharingscope"
	"github.com/lodgehub/lodgehub/foundation/logger"
)

const testKID = "54bb2165-71e1-41a6-af3e-7da4a0e1e2c1"

type keyStore struct {
	privatePEM string
	publicPEM  string
}

func newKeyStore(t *testing.T) *keyStore {
	t.Helper()

	privateKey, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generating key: %s", err)
	}

	privatePEM := pem.EncodeToMemory(&pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: x509.MarshalPKCS1PrivateKey(privateKey),
	})

	asn1Bytes, err := x509.MarshalPKIXPublicKey(&privateKey.PublicKey)
	if err != nil {
		t.Fatalf("marshaling public key: %s", err)
	}

	publicPEM := pem.EncodeToMemory(&pem.Block{
		Type:  "PUBLIC KEY",
		Bytes: asn1Bytes,
	})

	return &keyStore{
		privatePEM: string(privatePEM),
		publicPEM:  string(publicPEM),
	}
}

func (ks *keyStore) PrivateKey(kid string) (string, error) {
	if kid != testKID {
		return "", errors.New("no private key for kid")
	}
	return ks.privatePEM, nil
}

func (ks *keyStore) PublicKey(kid string) (string, error) {
	if kid != testKID {
		return "", errors.New("no public key for kid")
	}
	return ks.publicPEM, nil
}

func newTestAuth(t *testing.T) *auth.Auth {
	t.Helper()

	log := logger.New(io.Discard, logger.LevelInfo, "TEST", func(context.Context) string { return "" })

	return auth.New(auth.Config{
		Log:       log,
		KeyLookup: newKeyStore(t),
		ActiveKID: testKID,
		Issuer:    "lodgehub project",
	})
}

func testIdentity() auth.Identity {
	return auth.Identity{
		UserID:   uuid.MustParse("5cf37266-3473-4006-984f-9325122678b7"),
		TenantID: uuid.MustParse("9e979baa-61c9-4b50-81f2-f100d5c284ab"),
		Email:    "admin@example.com",
		Role:     role.Admin,
	}
}

func Test_IssueAndAuthenticate(t *testing.T) {
	ctx := context.Background()
	a := newTestAuth(t)
	identity := testIdentity()

	session, err := a.IssueSession(ctx, identity, uuid.Nil)
	if err != nil {
		t.Fatalf("issuing session: %s", err)
	}
	if session.AccessToken == "" || session.RefreshToken == "" {
		t.Fatal("issued session is missing tokens")
	}
	if session.ExpiresIn != 3600 {
		t.Errorf("got expires_in %d, want 3600", session.ExpiresIn)
	}

	claims, err := a.Authenticate(ctx, "Bearer "+session.AccessToken)
	if err != nil {
		t.Fatalf("authenticating: %s", err)
	}

	if claims.Subject != identity.UserID.String() {
		t.Errorf("got subject %q, want %q", claims.Subject, identity.UserID)
	}
	if claims.TenantID != identity.TenantID.String() {
		t.Errorf("got tenant %q, want %q", claims.TenantID, identity.TenantID)
	}
	if claims.TokenUse != auth.TokenUseAccess {
		t.Errorf("got token_use %q, want %q", claims.TokenUse, auth.TokenUseAccess)
	}
}

func Test_Authenticate_RejectsBadBearer(t *testing.T) {
	ctx := context.Background()
	a := newTestAuth(t)

	if _, err := a.Authenticate(ctx, "not-a-bearer-token"); err == nil {
		t.Fatal("expected an error for a malformed authorization header")
	}
}

func Test_Authenticate_RejectsTamperedToken(t *testing.T) {
	ctx := context.Background()
	a := newTestAuth(t)

	session, err := a.IssueSession(ctx, testIdentity(), uuid.Nil)
	if err != nil {
		t.Fatalf("issuing session: %s", err)
	}

	tampered := session.AccessToken[:len(session.AccessToken)-4] + "AAAA"
	if _, err := a.Authenticate(ctx, "Bearer "+tampered); err == nil {
		t.Fatal("expected an error for a tampered signature")
	}
}

func Test_RefreshSession_RejectsAccessToken(t *testing.T) {
	ctx := context.Background()
	a := newTestAuth(t)

	session, err := a.IssueSession(ctx, testIdentity(), uuid.Nil)
	if err != nil {
		t.Fatalf("issuing session: %s", err)
	}

	if _, err := a.RefreshSession(ctx, "Bearer "+session.AccessToken); !errors.Is(err, auth.ErrInvalidTokenUse) {
		t.Fatalf("got error %v, want ErrInvalidTokenUse", err)
	}
}

func Test_RefreshSession_MintsNewPair(t *testing.T) {
	ctx := context.Background()
	a := newTestAuth(t)
	identity := testIdentity()

	session, err := a.IssueSession(ctx, identity, uuid.Nil)
	if err != nil {
		t.Fatalf("issuing session: %s", err)
	}

	refreshed, err := a.RefreshSession(ctx, "Bearer "+session.RefreshToken)
	if err != nil {
		t.Fatalf("refreshing session: %s", err)
	}

	claims, err := a.Authenticate(ctx, "Bearer "+refreshed.AccessToken)
	if err != nil {
		t.Fatalf("authenticating refreshed token: %s", err)
	}
	if claims.Subject != identity.UserID.String() {
		t.Errorf("got subject %q, want %q", claims.Subject, identity.UserID)
	}
}

func Test_Authorize(t *testing.T) {
	ctx := context.Background()
	a := newTestAuth(t)

	claims := auth.Claims{Role: role.User.String()}

	if err := a.Authorize(ctx, claims, role.Admin, role.User); err != nil {
		t.Errorf("got %v, want USER accepted by [ADMIN USER]", err)
	}
	if err := a.Authorize(ctx, claims, role.Admin); !errors.Is(err, auth.ErrForbidden) {
		t.Errorf("got %v, want ErrForbidden for USER against [ADMIN]", err)
	}
	if err := a.Authorize(ctx, claims); !errors.Is(err, auth.ErrForbidden) {
		t.Errorf("got %v, want ErrForbidden when no roles are allowed", err)
	}
}

// A token minted without an organization carries no hierarchy claims and
// parses into the degraded own-tenant session.
func Test_ParseSession_Degraded(t *testing.T) {
	ctx := context.Background()
	a := newTestAuth(t)
	identity := testIdentity()

	session, err := a.IssueSession(ctx, identity, uuid.Nil)
	if err != nil {
		t.Fatalf("issuing session: %s", err)
	}

	claims, err := a.Authenticate(ctx, "Bearer "+session.AccessToken)
	if err != nil {
		t.Fatalf("authenticating: %s", err)
	}

	parsed, err := auth.ParseSession(claims)
	if err != nil {
		t.Fatalf("parsing session: %s", err)
	}

	if parsed.Hierarchy == nil {
		t.Fatal("degraded session must still carry a hierarchy context")
	}
	if got, want := len(parsed.AccessibleTenants), 1; got != want {
		t.Fatalf("got %d accessible tenants, want %d", got, want)
	}
	if parsed.AccessibleTenants[0] != identity.TenantID {
		t.Errorf("got accessible tenant %s, want own tenant %s", parsed.AccessibleTenants[0], identity.TenantID)
	}

	// Hotel defaults keep the actor inside its own walls: own-tenant
	// access works, any other tenant is denied.
	own := accessbus.Check(parsed, accessbus.Target{
		TenantID:  identity.TenantID,
		Category:  datacategory.Customer,
		Operation: operation.Read,
	})
	if !own.Allowed {
		t.Errorf("got deny with reason %q, want own-tenant read allowed", own.Reason)
	}

	other := accessbus.Check(parsed, accessbus.Target{
		TenantID:  uuid.MustParse("ffffffff-ffff-ffff-ffff-ffffffffffff"),
		Category:  datacategory.Customer,
		Operation: operation.Read,
	})
	if other.Allowed {
		t.Error("got allow, want cross-tenant access denied for a degraded session")
	}
}

func Test_ParseSession_FullHierarchy(t *testing.T) {
	userID := uuid.MustParse("5cf37266-3473-4006-984f-9325122678b7")
	tenantID := uuid.MustParse("9e979baa-61c9-4b50-81f2-f100d5c284ab")
	siblingID := uuid.MustParse("c350f096-4fd7-4775-a201-9f2373e0157d")

	claims := auth.Claims{
		TenantID: tenantID.String(),
		Role:     role.Admin.String(),
		TokenUse: auth.TokenUseAccess,
		Hierarchy: &auth.HierarchyClaims{
			OrganizationID:    "45fa7fcd-7a28-47f7-b301-93d79c373947",
			OrganizationLevel: 1,
			OrganizationType:  "GROUP",
			OrganizationPath:  "acme",
			AccessScope:       []string{"45fa7fcd-7a28-47f7-b301-93d79c373947"},
			DataAccessPolicies: map[string]auth.PolicyClaim{
				"CUSTOMER":  {Scope: "GROUP", Level: "FULL"},
				"ANALYTICS": {Scope: "GROUP", Level: "SUMMARY_ONLY"},
			},
		},
		AccessibleTenants: []string{tenantID.String(), siblingID.String()},
	}
	claims.Subject = userID.String()

	parsed, err := auth.ParseSession(claims)
	if err != nil {
		t.Fatalf("parsing session: %s", err)
	}

	if parsed.UserID != userID {
		t.Errorf("got user %s, want %s", parsed.UserID, userID)
	}
	if parsed.Hierarchy.OrganizationLevel != 1 {
		t.Errorf("got level %d, want 1", parsed.Hierarchy.OrganizationLevel)
	}

	customer := parsed.Hierarchy.Policies[datacategory.Customer]
	if !customer.Scope.Equal(sharingscope.Group) || !customer.Level.Equal(accesslevel.Full) {
		t.Errorf("got customer policy (%s,%s), want (GROUP,FULL)", customer.Scope, customer.Level)
	}

	if !parsed.CanAccessTenant(siblingID) {
		t.Error("sibling tenant should be reachable from the parsed session")
	}
}

func Test_ParseSession_RejectsBadClaims(t *testing.T) {
	claims := auth.Claims{
		TenantID: "not-a-uuid",
		Role:     role.Admin.String(),
	}
	claims.Subject = uuid.NewString()

	if _, err := auth.ParseSession(claims); err == nil {
		t.Fatal("expected an error for a malformed tenant id")
	}
}

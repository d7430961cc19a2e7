// Package auth provides the session token codec: issuing and verifying
// signed JWTs that carry a snapshot of the actor's hierarchy context.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/lodgehub/lodgehub/business/domain/accessbus"
	"github.com/lodgehub/lodgehub/business/domain/orgbus"
	"github.com/lodgehub/lodgehub/business/types/accesslevel"
	"github.com/lodgehub/lodgehub/business/types/datacategory"
	"github.com/lodgehub/lodgehub/business/types/orgtype"
	"github.com/lodgehub/lodgehub/business/types/role"
	"github.com/lodgehub/lodgehub/business/types/sharingscope"
	"github.com/lodgehub/lodgehub/foundation/logger"
)

var (
	ErrForbidden       = errors.New("attempted action is not allowed")
	ErrKIDMissing      = errors.New("kid missing from token header")
	ErrKIDMalformed    = errors.New("kid in token header is malformed")
	ErrInvalidRole     = errors.New("token contains an invalid role")
	ErrInvalidTokenUse = errors.New("token use does not match the endpoint")
)

// Set of token_use claim values.
const (
	TokenUseAccess  = "access"
	TokenUseRefresh = "refresh"
)

// PolicyClaim is the wire form of one resolved category policy.
type PolicyClaim struct {
	Scope string `json:"scope"`
	Level string `json:"level"`
}

// HierarchyClaims is the wire form of the hierarchy context snapshot
// embedded at issuance. Tokens minted before an organization assignment
// carry no hierarchy claims at all.
type HierarchyClaims struct {
	OrganizationID     string                 `json:"organizationId"`
	OrganizationLevel  int                    `json:"organizationLevel"`
	OrganizationType   string                 `json:"organizationType"`
	OrganizationPath   string                 `json:"organizationPath"`
	AccessScope        []string               `json:"accessScope"`
	DataAccessPolicies map[string]PolicyClaim `json:"dataAccessPolicies"`
}

// Claims represents the authorization claims transmitted via a JWT.
type Claims struct {
	jwt.RegisteredClaims
	TenantID          string           `json:"tenant_id,omitempty"`
	Email             string           `json:"email,omitempty"`
	Role              string           `json:"role"`
	TokenUse          string           `json:"token_use"`
	Hierarchy         *HierarchyClaims `json:"hierarchyContext,omitempty"`
	AccessibleTenants []string         `json:"accessibleTenants,omitempty"`
}

// Identity carries the verified user facts a session is minted for.
type Identity struct {
	UserID   uuid.UUID
	TenantID uuid.UUID
	Email    string
	Role     role.Role
}

// Session is the issued token pair.
type Session struct {
	AccessToken  string
	RefreshToken string
	ExpiresIn    int
}

// KeyLookup declares a method set of behavior for looking up
// private and public keys for JWT use.
type KeyLookup interface {
	PrivateKey(kid string) (key string, err error)
	PublicKey(kid string) (key string, err error)
}

// Config represents information required to initialize auth.
type Config struct {
	Log             *logger.Logger
	KeyLookup       KeyLookup
	ActiveKID       string
	Issuer          string
	OrgBus          *orgbus.Core
	AccessDuration  time.Duration
	RefreshDuration time.Duration
}

// Auth is used to issue and authenticate session tokens.
type Auth struct {
	log             *logger.Logger
	keyLookup       KeyLookup
	activeKID       string
	orgBus          *orgbus.Core
	method          jwt.SigningMethod
	parser          *jwt.Parser
	issuer          string
	accessDuration  time.Duration
	refreshDuration time.Duration
}

// New creates an Auth to support authentication/authorization.
func New(cfg Config) *Auth {
	accessDuration := cfg.AccessDuration
	if accessDuration == 0 {
		accessDuration = time.Hour
	}

	refreshDuration := cfg.RefreshDuration
	if refreshDuration == 0 {
		refreshDuration = 720 * time.Hour
	}

	return &Auth{
		log:             cfg.Log,
		keyLookup:       cfg.KeyLookup,
		activeKID:       cfg.ActiveKID,
		orgBus:          cfg.OrgBus,
		method:          jwt.GetSigningMethod(jwt.SigningMethodRS256.Name),
		parser:          jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Name})),
		issuer:          cfg.Issuer,
		accessDuration:  accessDuration,
		refreshDuration: refreshDuration,
	}
}

// Issuer provides the configured issuer used to authenticate tokens.
func (a *Auth) Issuer() string {
	return a.issuer
}

// IssueSession mints an access/refresh token pair for the identity. The
// hierarchy context is resolved from the current store state right here,
// never lazily at verify time: the access token is a capability snapshot.
// With orgID set to uuid.Nil the tenant's PRIMARY organization is used; a
// tenant with no organization at all gets a token without hierarchy
// claims, which parses into the degraded own-tenant session.
func (a *Auth) IssueSession(ctx context.Context, identity Identity, orgID uuid.UUID) (Session, error) {
	hierarchy, tenants, err := a.resolveContext(ctx, identity, orgID)
	if err != nil {
		return Session{}, fmt.Errorf("resolve context: %w", err)
	}

	now := time.Now()

	accessClaims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   identity.UserID.String(),
			Issuer:    a.issuer,
			ExpiresAt: jwt.NewNumericDate(now.Add(a.accessDuration)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
		TenantID:          identity.TenantID.String(),
		Email:             identity.Email,
		Role:              identity.Role.String(),
		TokenUse:          TokenUseAccess,
		Hierarchy:         hierarchy,
		AccessibleTenants: tenants,
	}

	accessToken, err := a.generateToken(accessClaims)
	if err != nil {
		return Session{}, fmt.Errorf("access token: %w", err)
	}

	// The refresh token names the organization, not the snapshot: a
	// refresh re-resolves the context from live state instead of copying
	// stale claims forward.
	refreshClaims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   identity.UserID.String(),
			Issuer:    a.issuer,
			ExpiresAt: jwt.NewNumericDate(now.Add(a.refreshDuration)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
		TenantID: identity.TenantID.String(),
		Email:    identity.Email,
		Role:     identity.Role.String(),
		TokenUse: TokenUseRefresh,
	}

	if hierarchy != nil {
		refreshClaims.Audience = jwt.ClaimStrings{hierarchy.OrganizationID}
	}

	refreshToken, err := a.generateToken(refreshClaims)
	if err != nil {
		return Session{}, fmt.Errorf("refresh token: %w", err)
	}

	return Session{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresIn:    int(a.accessDuration.Seconds()),
	}, nil
}

// RefreshSession validates a refresh token and mints a fresh pair, with
// the hierarchy context re-resolved from current store state.
func (a *Auth) RefreshSession(ctx context.Context, bearerToken string) (Session, error) {
	claims, err := a.Authenticate(ctx, bearerToken)
	if err != nil {
		return Session{}, err
	}

	if claims.TokenUse != TokenUseRefresh {
		return Session{}, ErrInvalidTokenUse
	}

	identity, err := parseIdentity(claims)
	if err != nil {
		return Session{}, err
	}

	orgID := uuid.Nil
	if len(claims.Audience) == 1 {
		if id, err := uuid.Parse(claims.Audience[0]); err == nil {
			orgID = id
		}
	}

	return a.IssueSession(ctx, identity, orgID)
}

// Authenticate processes the token to validate the sender's token is
// valid. The check covers signature, expiry and issuer only; the embedded
// hierarchy snapshot is never re-resolved here.
func (a *Auth) Authenticate(ctx context.Context, bearerToken string) (Claims, error) {
	if !strings.HasPrefix(bearerToken, "Bearer ") {
		return Claims{}, errors.New("expected authorization header format: Bearer <token>")
	}

	jwtUnverified := bearerToken[7:]

	var claims Claims
	token, _, err := a.parser.ParseUnverified(jwtUnverified, &claims)
	if err != nil {
		return Claims{}, fmt.Errorf("error parsing token: %w", err)
	}

	kidRaw, exists := token.Header["kid"]
	if !exists {
		return Claims{}, ErrKIDMissing
	}

	kid, ok := kidRaw.(string)
	if !ok {
		return Claims{}, ErrKIDMalformed
	}

	pem, err := a.keyLookup.PublicKey(kid)
	if err != nil {
		return Claims{}, fmt.Errorf("fetching public key for kid %q: %w", kid, err)
	}

	if err := a.verifySignatureAndClaims(jwtUnverified, pem); err != nil {
		a.log.Info(ctx, "authenticate failed", "userID", claims.Subject)
		return Claims{}, fmt.Errorf("authentication failed: %w", err)
	}

	if _, err := role.Parse(claims.Role); err != nil {
		return Claims{}, ErrInvalidRole
	}

	return claims, nil
}

// Authorize checks if the claims possess ONE OF the required roles.
func (a *Auth) Authorize(ctx context.Context, claims Claims, allowedRoles ...role.Role) error {
	if len(allowedRoles) == 0 {
		return fmt.Errorf("%w: no roles authorized for this endpoint", ErrForbidden)
	}

	for _, r := range allowedRoles {
		if claims.Role == r.String() {
			return nil
		}
	}

	return fmt.Errorf("%w: user role %q is not in the allowed list %v", ErrForbidden, claims.Role, allowedRoles)
}

// =============================================================================

// ParseSession converts verified claims into the typed session snapshot
// the access evaluator runs against. Claims without a hierarchy context
// produce the degraded session: a synthetic HOTEL-level context covering
// exactly the actor's own tenant, with no cross-tenant reach.
func ParseSession(claims Claims) (accessbus.Session, error) {
	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return accessbus.Session{}, fmt.Errorf("parse subject: %w", err)
	}

	tenantID, err := uuid.Parse(claims.TenantID)
	if err != nil {
		return accessbus.Session{}, fmt.Errorf("parse tenant id: %w", err)
	}

	if claims.Hierarchy == nil {
		return degradedSession(userID, tenantID), nil
	}

	orgID, err := uuid.Parse(claims.Hierarchy.OrganizationID)
	if err != nil {
		return accessbus.Session{}, fmt.Errorf("parse organization id: %w", err)
	}

	typ, err := orgtype.Parse(claims.Hierarchy.OrganizationType)
	if err != nil {
		return accessbus.Session{}, fmt.Errorf("parse organization type: %w", err)
	}

	scope := make([]uuid.UUID, len(claims.Hierarchy.AccessScope))
	for i, raw := range claims.Hierarchy.AccessScope {
		if scope[i], err = uuid.Parse(raw); err != nil {
			return accessbus.Session{}, fmt.Errorf("parse access scope: %w", err)
		}
	}

	policies := make(map[datacategory.DataCategory]accessbus.Policy, len(claims.Hierarchy.DataAccessPolicies))
	for rawCategory, pc := range claims.Hierarchy.DataAccessPolicies {
		category, err := datacategory.Parse(rawCategory)
		if err != nil {
			return accessbus.Session{}, fmt.Errorf("parse category: %w", err)
		}

		ss, err := sharingscope.Parse(pc.Scope)
		if err != nil {
			return accessbus.Session{}, fmt.Errorf("parse scope: %w", err)
		}

		level, err := accesslevel.Parse(pc.Level)
		if err != nil {
			return accessbus.Session{}, fmt.Errorf("parse level: %w", err)
		}

		policies[category] = accessbus.Policy{Scope: ss, Level: level}
	}

	tenants := make([]uuid.UUID, len(claims.AccessibleTenants))
	for i, raw := range claims.AccessibleTenants {
		if tenants[i], err = uuid.Parse(raw); err != nil {
			return accessbus.Session{}, fmt.Errorf("parse accessible tenant: %w", err)
		}
	}

	session := accessbus.Session{
		UserID:   userID,
		TenantID: tenantID,
		Hierarchy: &accessbus.HierarchyContext{
			OrganizationID:    orgID,
			OrganizationLevel: claims.Hierarchy.OrganizationLevel,
			OrganizationType:  typ,
			OrganizationPath:  claims.Hierarchy.OrganizationPath,
			AccessScope:       scope,
			Policies:          policies,
		},
		AccessibleTenants: tenants,
	}

	return session, nil
}

func degradedSession(userID uuid.UUID, tenantID uuid.UUID) accessbus.Session {
	policies := make(map[datacategory.DataCategory]accessbus.Policy, len(datacategory.All()))
	for _, category := range datacategory.All() {
		def := orgbus.DefaultPolicy(orgtype.Hotel, category)
		policies[category] = accessbus.Policy{Scope: def.Scope, Level: def.Level}
	}

	return accessbus.Session{
		UserID:   userID,
		TenantID: tenantID,
		Hierarchy: &accessbus.HierarchyContext{
			OrganizationLevel: 3,
			OrganizationType:  orgtype.Hotel,
			Policies:          policies,
		},
		AccessibleTenants: []uuid.UUID{tenantID},
	}
}

// =============================================================================

func (a *Auth) resolveContext(ctx context.Context, identity Identity, orgID uuid.UUID) (*HierarchyClaims, []string, error) {
	if a.orgBus == nil {
		return nil, nil, nil
	}

	org, err := a.lookupOrg(ctx, identity.TenantID, orgID)
	if err != nil {
		if errors.Is(err, orgbus.ErrNotFound) {
			return nil, nil, nil
		}
		return nil, nil, err
	}

	policies, err := a.orgBus.ResolvePolicies(ctx, org.ID)
	if err != nil {
		return nil, nil, fmt.Errorf("resolve policies: %w", err)
	}

	accessible, err := a.orgBus.AccessibleTenants(ctx, org.ID)
	if err != nil {
		return nil, nil, fmt.Errorf("accessible tenants: %w", err)
	}

	// The actor's own tenant is always reachable, even when the link
	// tables say otherwise.
	tenants := make([]string, 0, len(accessible)+1)
	own := false
	for _, id := range accessible {
		if id == identity.TenantID {
			own = true
		}
		tenants = append(tenants, id.String())
	}
	if !own {
		tenants = append(tenants, identity.TenantID.String())
	}

	subtree, err := a.orgBus.QuerySubtree(ctx, org.ID, orgbus.MaxDepth)
	if err != nil {
		return nil, nil, fmt.Errorf("query subtree: %w", err)
	}

	accessScope := make([]string, len(subtree))
	for i, node := range subtree {
		accessScope[i] = node.ID.String()
	}

	policyClaims := make(map[string]PolicyClaim, len(policies))
	for category, p := range policies {
		policyClaims[category.String()] = PolicyClaim{
			Scope: p.Scope.String(),
			Level: p.Level.String(),
		}
	}

	hierarchy := HierarchyClaims{
		OrganizationID:     org.ID.String(),
		OrganizationLevel:  org.Level,
		OrganizationType:   org.Type.String(),
		OrganizationPath:   org.Path,
		AccessScope:        accessScope,
		DataAccessPolicies: policyClaims,
	}

	return &hierarchy, tenants, nil
}

func (a *Auth) lookupOrg(ctx context.Context, tenantID uuid.UUID, orgID uuid.UUID) (orgbus.Organization, error) {
	if orgID != uuid.Nil {
		return a.orgBus.QueryByID(ctx, orgID)
	}

	return a.orgBus.QueryPrimaryOrg(ctx, tenantID)
}

func (a *Auth) generateToken(claims Claims) (string, error) {
	token := jwt.NewWithClaims(a.method, claims)
	token.Header["kid"] = a.activeKID

	privateKeyPEM, err := a.keyLookup.PrivateKey(a.activeKID)
	if err != nil {
		return "", fmt.Errorf("private key: %w", err)
	}

	privateKey, err := jwt.ParseRSAPrivateKeyFromPEM([]byte(privateKeyPEM))
	if err != nil {
		return "", fmt.Errorf("parsing private key from PEM: %w", err)
	}

	str, err := token.SignedString(privateKey)
	if err != nil {
		return "", fmt.Errorf("signing token: %w", err)
	}

	return str, nil
}

func (a *Auth) verifySignatureAndClaims(tokenStr, pemStr string) error {
	publicKey, err := jwt.ParseRSAPublicKeyFromPEM([]byte(pemStr))
	if err != nil {
		return fmt.Errorf("parsing public key: %w", err)
	}

	var claims Claims
	token, err := a.parser.ParseWithClaims(tokenStr, &claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodRSA); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return publicKey, nil
	})
	if err != nil {
		return fmt.Errorf("validating token signature: %w", err)
	}

	if !token.Valid {
		return errors.New("token is invalid")
	}

	if claims.Issuer != a.issuer {
		return fmt.Errorf("invalid issuer: expected %q, got %q", a.issuer, claims.Issuer)
	}

	return nil
}

func parseIdentity(claims Claims) (Identity, error) {
	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return Identity{}, fmt.Errorf("parse subject: %w", err)
	}

	tenantID, err := uuid.Parse(claims.TenantID)
	if err != nil {
		return Identity{}, fmt.Errorf("parse tenant id: %w", err)
	}

	r, err := role.Parse(claims.Role)
	if err != nil {
		return Identity{}, ErrInvalidRole
	}

	return Identity{
		UserID:   userID,
		TenantID: tenantID,
		Email:    claims.Email,
		Role:     r,
	}, nil
}

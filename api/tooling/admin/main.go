// This program provides operational commands for bootstrapping the system:
// creating users, organization nodes, tenant links and signing keys.
package main

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"flag"
	"fmt"
	"net/mail"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/kelseyhightower/envconfig"
	"github.com/lodgehub/lodgehub/business/domain/orgbus"
	"github.com/lodgehub/lodgehub/business/domain/orgbus/stores/orgdb"
	"github.com/lodgehub/lodgehub/business/domain/userbus"
	"github.com/lodgehub/lodgehub/business/domain/userbus/stores/usercache"
	"github.com/lodgehub/lodgehub/business/domain/userbus/stores/userdb"
	"github.com/lodgehub/lodgehub/business/sdk/sqldb"
	"github.com/lodgehub/lodgehub/business/types/name"
	"github.com/lodgehub/lodgehub/business/types/orgcode"
	"github.com/lodgehub/lodgehub/business/types/orgtype"
	"github.com/lodgehub/lodgehub/business/types/password"
	"github.com/lodgehub/lodgehub/business/types/phone"
	"github.com/lodgehub/lodgehub/business/types/role"
	"github.com/lodgehub/lodgehub/business/types/tenantrole"
	"github.com/lodgehub/lodgehub/foundation/logger"
)

type Config struct {
	DB struct {
		User         string `envconfig:"DB_USER" default:"postgres"`
		Password     string `envconfig:"DB_PASSWORD" default:"postgres"`
		Host         string `envconfig:"DB_HOST" default:"localhost"`
		Name         string `envconfig:"DB_NAME" default:"lodgehub"`
		MaxIdleConns int    `envconfig:"DB_MAX_IDLE_CONNS" default:"0"`
		MaxOpenConns int    `envconfig:"DB_MAX_OPEN_CONNS" default:"0"`
		DisableTLS   bool   `envconfig:"DB_DISABLE_TLS" default:"true"`
	}
}

func main() {
	log := logger.New(os.Stdout, logger.LevelInfo, "ADMIN-TOOL", nil)
	ctx := context.Background()

	if err := run(ctx, log); err != nil {
		log.Error(ctx, "startup", "err", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, log *logger.Logger) error {
	if len(os.Args) < 2 {
		fmt.Println("Usage: admin <command> [args]")
		fmt.Println("Commands: create-user, create-org, link-tenant, keygen")
		return nil
	}

	// keygen has no database dependency.
	if os.Args[1] == "keygen" {
		return runKeygen(os.Args[2:])
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return fmt.Errorf("processing config: %w", err)
	}

	db, err := sqldb.Open(sqldb.Config{
		User:         cfg.DB.User,
		Password:     cfg.DB.Password,
		Host:         cfg.DB.Host,
		Name:         cfg.DB.Name,
		MaxIdleConns: cfg.DB.MaxIdleConns,
		MaxOpenConns: cfg.DB.MaxOpenConns,
		DisableTLS:   cfg.DB.DisableTLS,
	})
	if err != nil {
		return fmt.Errorf("connecting to db: %w", err)
	}
	defer db.Close()

	userBus := userbus.NewCore(usercache.NewStore(log, userdb.NewStore(log, db), time.Minute))
	orgBus := orgbus.NewCore(log, orgdb.NewStore(log, db), nil)

	switch os.Args[1] {
	case "create-user":
		return runCreateUser(ctx, userBus, os.Args[2:])
	case "create-org":
		return runCreateOrg(ctx, orgBus, os.Args[2:])
	case "link-tenant":
		return runLinkTenant(ctx, orgBus, os.Args[2:])
	default:
		return fmt.Errorf("unknown command: %s", os.Args[1])
	}
}

func runCreateUser(ctx context.Context, ub *userbus.Core, args []string) error {
	cmd := flag.NewFlagSet("create-user", flag.ExitOnError)
	emailStr := cmd.String("email", "", "User email (Required)")
	passStr := cmd.String("password", "", "User password (Required)")
	nameStr := cmd.String("name", "", "User full name (Required)")
	tenantStr := cmd.String("tenant-id", "", "Tenant UUID (Required)")
	roleStr := cmd.String("role", "USER", "User role (ADMIN, MANAGER, USER)")
	cmd.Parse(args)

	if *emailStr == "" || *passStr == "" || *nameStr == "" || *tenantStr == "" {
		cmd.PrintDefaults()
		return fmt.Errorf("missing required fields")
	}

	tenantID, err := uuid.Parse(*tenantStr)
	if err != nil {
		return fmt.Errorf("invalid tenant uuid: %w", err)
	}

	n, err := name.Parse(*nameStr)
	if err != nil {
		return fmt.Errorf("invalid name: %w", err)
	}

	r, err := role.Parse(*roleStr)
	if err != nil {
		return fmt.Errorf("invalid role: %w", err)
	}

	p, err := password.Parse(*passStr)
	if err != nil {
		return fmt.Errorf("invalid password: %w", err)
	}

	newUser := userbus.NewUser{
		TenantID: tenantID,
		Name:     n,
		Email:    mail.Address{Address: *emailStr},
		Password: p,
		Role:     r,
		Phone:    phone.Null{},
	}

	usr, err := ub.Create(ctx, newUser)
	if err != nil {
		return fmt.Errorf("create user failed: %w", err)
	}

	fmt.Printf("\nSUCCESS: User created!\nID: %s\nEmail: %s\nRole: %s\n", usr.ID, usr.Email.Address, usr.Role)
	return nil
}

func runCreateOrg(ctx context.Context, ob *orgbus.Core, args []string) error {
	cmd := flag.NewFlagSet("create-org", flag.ExitOnError)
	typeStr := cmd.String("type", "", "Node type: GROUP, BRAND, HOTEL, DEPARTMENT (Required)")
	nameStr := cmd.String("name", "", "Display name (Required)")
	codeStr := cmd.String("code", "", "URL-safe code, unique among siblings (Required)")
	parentStr := cmd.String("parent-id", "", "Parent UUID (empty for a GROUP root)")
	cmd.Parse(args)

	if *typeStr == "" || *nameStr == "" || *codeStr == "" {
		cmd.PrintDefaults()
		return fmt.Errorf("missing required fields")
	}

	typ, err := orgtype.Parse(*typeStr)
	if err != nil {
		return fmt.Errorf("invalid type: %w", err)
	}

	n, err := name.Parse(*nameStr)
	if err != nil {
		return fmt.Errorf("invalid name: %w", err)
	}

	code, err := orgcode.Parse(*codeStr)
	if err != nil {
		return fmt.Errorf("invalid code: %w", err)
	}

	parentID := uuid.Nil
	if *parentStr != "" {
		parentID, err = uuid.Parse(*parentStr)
		if err != nil {
			return fmt.Errorf("invalid parent uuid: %w", err)
		}
	}

	org, err := ob.Create(ctx, uuid.Nil, orgbus.NewOrganization{
		Type:     typ,
		Name:     n,
		Code:     code,
		ParentID: parentID,
	})
	if err != nil {
		return fmt.Errorf("create org failed: %w", err)
	}

	fmt.Printf("\nSUCCESS: Organization created!\nID: %s\nPath: %s\nLevel: %d\n", org.ID, org.Path, org.Level)
	return nil
}

func runLinkTenant(ctx context.Context, ob *orgbus.Core, args []string) error {
	cmd := flag.NewFlagSet("link-tenant", flag.ExitOnError)
	tenantStr := cmd.String("tenant-id", "", "Tenant UUID (Required)")
	orgStr := cmd.String("org-id", "", "Organization UUID (Required)")
	roleStr := cmd.String("role", "PRIMARY", "Link role (PRIMARY, SECONDARY)")
	cmd.Parse(args)

	if *tenantStr == "" || *orgStr == "" {
		cmd.PrintDefaults()
		return fmt.Errorf("missing required IDs")
	}

	tenantID, err := uuid.Parse(*tenantStr)
	if err != nil {
		return fmt.Errorf("invalid tenant uuid: %w", err)
	}

	orgID, err := uuid.Parse(*orgStr)
	if err != nil {
		return fmt.Errorf("invalid org uuid: %w", err)
	}

	linkRole, err := tenantrole.Parse(*roleStr)
	if err != nil {
		return fmt.Errorf("invalid role: %w", err)
	}

	link, err := ob.LinkTenant(ctx, uuid.Nil, tenantID, orgID, linkRole)
	if err != nil {
		return fmt.Errorf("failed to link tenant: %w", err)
	}

	fmt.Printf("\nSUCCESS: Tenant %s linked to Organization %s as %s\n", link.TenantID, link.OrganizationID, link.Role)
	return nil
}

func runKeygen(args []string) error {
	cmd := flag.NewFlagSet("keygen", flag.ExitOnError)
	folder := cmd.String("folder", "foundation/zarf/keys", "Folder to write the key into")
	cmd.Parse(args)

	privateKey, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		return fmt.Errorf("generating key: %w", err)
	}

	kid := uuid.NewString()

	if err := os.MkdirAll(*folder, 0755); err != nil {
		return fmt.Errorf("creating folder: %w", err)
	}

	file, err := os.Create(filepath.Join(*folder, kid+".pem"))
	if err != nil {
		return fmt.Errorf("creating key file: %w", err)
	}
	defer file.Close()

	der, err := x509.MarshalPKCS8PrivateKey(privateKey)
	if err != nil {
		return fmt.Errorf("marshaling key: %w", err)
	}

	block := pem.Block{
		Type:  "PRIVATE KEY",
		Bytes: der,
	}

	if err := pem.Encode(file, &block); err != nil {
		return fmt.Errorf("encoding key: %w", err)
	}

	fmt.Printf("\nSUCCESS: Key generated!\nKID: %s\n", kid)
	return nil
}

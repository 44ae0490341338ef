package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/recoverly/followup-agent/internal/store"
	"github.com/recoverly/followup-agent/internal/store/mongostore"
	"github.com/recoverly/followup-agent/pkg/auth"
	"github.com/recoverly/followup-agent/pkg/env"
	"github.com/recoverly/followup-agent/pkg/logger"
	"github.com/recoverly/followup-agent/pkg/mongo"
)

// Creates a tenant account directly in the database. Used for onboarding
// when self-registration is disabled, and for creating admin accounts.
func main() {
	email := flag.String("email", "", "tenant email (required)")
	password := flag.String("password", "", "initial password (required)")
	company := flag.String("company", "", "company name (required)")
	timezone := flag.String("timezone", "", "IANA timezone, defaults to TZ from config")
	admin := flag.Bool("admin", false, "grant the admin role")
	flag.Parse()

	if *email == "" || *password == "" || *company == "" {
		flag.Usage()
		log.Fatal("email, password, and company are required")
	}
	if len(*password) < 8 {
		log.Fatal("password must be at least 8 characters")
	}

	cfg, err := env.Load(".env")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := logger.Init(cfg.LogLevel, cfg.AppEnv); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	tz := *timezone
	if tz == "" {
		tz = cfg.TZ
	}
	if _, err := time.LoadLocation(tz); err != nil {
		log.Fatalf("Invalid timezone %q: %v", tz, err)
	}

	mongoClient, err := mongo.NewClient(cfg.MongoURI, cfg.DBName)
	if err != nil {
		log.Fatalf("Failed to connect to MongoDB: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	defer mongoClient.Disconnect(ctx)

	st := mongostore.New(mongoClient)

	existing, err := st.Tenants.GetByEmail(ctx, *email)
	if err != nil {
		log.Fatalf("Failed to check for existing tenant: %v", err)
	}
	if existing != nil {
		log.Fatalf("Tenant with email %s already exists", *email)
	}

	hash, err := auth.HashPassword(*password)
	if err != nil {
		log.Fatalf("Failed to hash password: %v", err)
	}

	role := store.RoleTenant
	if *admin {
		role = store.RoleAdmin
	}

	tenant := &store.Tenant{
		ID:           uuid.New().String(),
		Email:        *email,
		PasswordHash: hash,
		CompanyName:  *company,
		Timezone:     tz,
		Role:         role,
		IsActive:     true,
		CreatedAt:    time.Now(),
	}
	if err := st.Tenants.Create(ctx, tenant); err != nil {
		log.Fatalf("Failed to create tenant: %v", err)
	}

	fmt.Printf("Created tenant %s (%s) with role %s\n", tenant.ID, tenant.Email, tenant.Role)
}

package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"os"

	"quarry/internal/config"
	"quarry/internal/domain/models"
	"quarry/internal/domain/services"
	"quarry/internal/filterquery"
	"quarry/internal/repository/postgres"
	"quarry/internal/service"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
)

func main() {
	// Parse command-line flags
	dropTables := flag.Bool("drop-tables", false, "Drop all tables before seeding (fresh start)")
	schemaOnly := flag.Bool("schema-only", false, "Only set up schema, don't seed data")
	clearData := flag.Bool("clear-data", false, "Clear filters, favorites and issues (keep schema)")
	flag.Parse()

	// Load .env file
	_ = godotenv.Load()

	// Load configuration
	cfg := config.Load()

	// SAFETY: Prevent destructive operations in production
	if cfg.Environment == "prod" && (*dropTables || *clearData) {
		log.Fatalf("🚫 BLOCKED: Cannot run destructive operations (--drop-tables or --clear-data) in production environment")
	}

	// Setup logger
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	log.Printf("🌱 Seeding database (environment: %s, prefix: %s)", cfg.Environment, cfg.TablePrefix)

	// Create database connection pool
	ctx := context.Background()
	pool, err := postgres.CreateConnectionPool(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer pool.Close()

	// Create table names
	tables := postgres.NewTableNames(cfg.TablePrefix)

	// Drop tables if requested
	if *dropTables {
		log.Println("🗑️  Dropping all tables...")
		if err := dropAllTables(ctx, pool, tables); err != nil {
			log.Fatalf("Failed to drop tables: %v", err)
		}
		log.Println("✅ Tables dropped")
	}

	// Run schema to ensure tables exist
	log.Println("📋 Ensuring database schema is up to date...")
	if err := runSchema(ctx, pool, tables, cfg.TablePrefix); err != nil {
		log.Fatalf("Failed to run schema: %v", err)
	}
	log.Println("✅ Schema ready")

	if *schemaOnly {
		log.Println("✅ Schema setup complete (schema-only mode)")
		return
	}

	// Clear existing data so seeding is repeatable
	log.Println("🧹 Clearing existing filters, favorites and issues...")
	if err := clearAllData(ctx, pool, tables); err != nil {
		log.Fatalf("Failed to clear data: %v", err)
	}
	if *clearData {
		log.Println("✅ Data cleared successfully")
		return
	}

	// Grant permissions directly; the service layer has no operation for it
	log.Println("🔑 Granting permissions...")
	grants := map[string][]string{
		"admin":      {"admin", "user"},
		"dave.loper": {"user", "shareFilter"},
		"jane.doe":   {"user"},
	}
	for login, perms := range grants {
		for _, perm := range perms {
			insert := "INSERT INTO " + tables.UserPermissions + " (user_login, permission) VALUES ($1, $2) ON CONFLICT DO NOTHING"
			if _, err := pool.Exec(ctx, insert, login, perm); err != nil {
				log.Fatalf("Failed to grant %s to %s: %v", perm, login, err)
			}
		}
	}

	// Seed issues
	log.Println("🐛 Seeding issues...")
	if err := seedIssues(ctx, pool, tables); err != nil {
		log.Fatalf("Failed to seed issues: %v", err)
	}

	// Create repositories and the filter service, then seed filters through
	// it so the usual validation and favorite bootstrapping apply
	repoConfig := &postgres.RepositoryConfig{
		Pool:   pool,
		Tables: tables,
		Logger: logger,
	}
	filterRepo := postgres.NewFilterRepository(repoConfig)
	favoriteRepo := postgres.NewFavoriteRepository(repoConfig)
	authRepo := postgres.NewAuthorizationRepository(repoConfig)
	issueFinder := postgres.NewIssueFinder(repoConfig)

	catalog, err := filterquery.LoadCatalog()
	if err != nil {
		log.Fatalf("Failed to load query parameter catalog: %v", err)
	}

	filterService := service.NewFilterService(
		filterRepo,
		favoriteRepo,
		authRepo,
		issueFinder,
		filterquery.NewSerializer(),
		catalog,
		logger,
	)

	log.Println("🔖 Seeding filters...")
	for _, seed := range seedFilters() {
		filter, err := filterService.Save(ctx, seed.request, models.NewUserSession(seed.login, uuid.New()))
		if err != nil {
			log.Printf("❌ Failed to create filter '%s': %v", seed.request.Name, err)
			continue
		}
		log.Printf("✅ Created filter: %s (ID: %d, owner: %s)", filter.Name, filter.ID, filter.UserLogin)
	}

	log.Println("🎉 Seeding complete!")
}

// runSchema creates tables if they don't exist
func runSchema(ctx context.Context, pool *pgxpool.Pool, tables *postgres.TableNames, tablePrefix string) error {
	createFilters := `
		CREATE TABLE IF NOT EXISTS ` + tables.Filters + ` (
			id BIGSERIAL PRIMARY KEY,
			name VARCHAR(100) NOT NULL,
			description VARCHAR(4000) NOT NULL DEFAULT '',
			user_login TEXT NOT NULL,
			shared BOOLEAN NOT NULL DEFAULT FALSE,
			data TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ DEFAULT NOW(),
			updated_at TIMESTAMPTZ DEFAULT NOW(),
			UNIQUE(user_login, name)
		)
	`
	if _, err := pool.Exec(ctx, createFilters); err != nil {
		return err
	}

	createFavorites := `
		CREATE TABLE IF NOT EXISTS ` + tables.FilterFavorites + ` (
			id BIGSERIAL PRIMARY KEY,
			user_login TEXT NOT NULL,
			filter_id BIGINT NOT NULL REFERENCES ` + tables.Filters + `(id) ON DELETE CASCADE,
			UNIQUE(user_login, filter_id)
		)
	`
	if _, err := pool.Exec(ctx, createFavorites); err != nil {
		return err
	}

	createPermissions := `
		CREATE TABLE IF NOT EXISTS ` + tables.UserPermissions + ` (
			id BIGSERIAL PRIMARY KEY,
			user_login TEXT NOT NULL,
			permission TEXT NOT NULL,
			UNIQUE(user_login, permission)
		)
	`
	if _, err := pool.Exec(ctx, createPermissions); err != nil {
		return err
	}

	createIssues := `
		CREATE TABLE IF NOT EXISTS ` + tables.Issues + ` (
			id BIGSERIAL PRIMARY KEY,
			key TEXT NOT NULL UNIQUE,
			component_key TEXT NOT NULL,
			rule_key TEXT NOT NULL,
			severity TEXT NOT NULL,
			status TEXT NOT NULL,
			resolution TEXT NOT NULL DEFAULT '',
			assignee_login TEXT NOT NULL DEFAULT '',
			reporter_login TEXT NOT NULL DEFAULT '',
			message TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ DEFAULT NOW(),
			updated_at TIMESTAMPTZ DEFAULT NOW(),
			closed_at TIMESTAMPTZ
		)
	`
	if _, err := pool.Exec(ctx, createIssues); err != nil {
		return err
	}

	// Create indexes
	indexes := []string{
		`CREATE INDEX IF NOT EXISTS idx_` + tablePrefix + `filters_user ON ` + tables.Filters + `(user_login)`,
		`CREATE INDEX IF NOT EXISTS idx_` + tablePrefix + `filters_shared ON ` + tables.Filters + `(shared) WHERE shared`,
		`CREATE INDEX IF NOT EXISTS idx_` + tablePrefix + `favorites_filter ON ` + tables.FilterFavorites + `(filter_id)`,
		`CREATE INDEX IF NOT EXISTS idx_` + tablePrefix + `permissions_user ON ` + tables.UserPermissions + `(user_login)`,
		`CREATE INDEX IF NOT EXISTS idx_` + tablePrefix + `issues_component ON ` + tables.Issues + `(component_key)`,
		`CREATE INDEX IF NOT EXISTS idx_` + tablePrefix + `issues_status ON ` + tables.Issues + `(status)`,
	}

	for _, indexSQL := range indexes {
		if _, err := pool.Exec(ctx, indexSQL); err != nil {
			return err
		}
	}

	return nil
}

// dropAllTables drops all tables in reverse order (to respect foreign keys)
func dropAllTables(ctx context.Context, pool *pgxpool.Pool, tables *postgres.TableNames) error {
	tableNames := []string{
		tables.FilterFavorites,
		tables.Filters,
		tables.UserPermissions,
		tables.Issues,
	}

	for _, table := range tableNames {
		dropSQL := "DROP TABLE IF EXISTS " + table + " CASCADE"
		if _, err := pool.Exec(ctx, dropSQL); err != nil {
			return err
		}
		log.Printf("  ✓ Dropped %s", table)
	}

	return nil
}

// clearAllData removes seeded rows while keeping the schema
func clearAllData(ctx context.Context, pool *pgxpool.Pool, tables *postgres.TableNames) error {
	for _, table := range []string{tables.FilterFavorites, tables.Filters, tables.UserPermissions, tables.Issues} {
		if _, err := pool.Exec(ctx, "DELETE FROM "+table); err != nil {
			return err
		}
	}
	return nil
}

func seedIssues(ctx context.Context, pool *pgxpool.Pool, tables *postgres.TableNames) error {
	issues := []struct {
		key, component, rule, severity, status, resolution, assignee, reporter, message string
	}{
		{"ISSUE-1", "struts:core", "squid:S1135", "INFO", "OPEN", "", "dave.loper", "jane.doe", "Complete the task associated to this TODO comment"},
		{"ISSUE-2", "struts:core", "squid:S106", "MAJOR", "OPEN", "", "", "jane.doe", "Replace this use of System.out by a logger"},
		{"ISSUE-3", "struts:web", "squid:S1481", "MINOR", "CONFIRMED", "", "dave.loper", "admin", "Remove this unused local variable"},
		{"ISSUE-4", "commons-io:core", "squid:S2095", "CRITICAL", "RESOLVED", "FIXED", "jane.doe", "admin", "Close this stream"},
		{"ISSUE-5", "commons-io:core", "squid:S1118", "MAJOR", "CLOSED", "WONTFIX", "", "dave.loper", "Hide this public constructor"},
	}

	for _, issue := range issues {
		insert := `
			INSERT INTO ` + tables.Issues + ` (key, component_key, rule_key, severity, status, resolution, assignee_login, reporter_login, message)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			ON CONFLICT (key) DO NOTHING
		`
		_, err := pool.Exec(ctx, insert,
			issue.key, issue.component, issue.rule, issue.severity, issue.status,
			issue.resolution, issue.assignee, issue.reporter, issue.message,
		)
		if err != nil {
			return err
		}
	}

	return nil
}

type seedFilter struct {
	login   string
	request *services.SaveFilterRequest
}

func seedFilters() []seedFilter {
	return []seedFilter{
		{
			login: "dave.loper",
			request: &services.SaveFilterRequest{
				Name:        "My unresolved issues",
				Description: "Open issues assigned to me",
				Data:        "assignees=dave.loper|resolved=false",
			},
		},
		{
			login: "dave.loper",
			request: &services.SaveFilterRequest{
				Name:        "Struts blockers",
				Description: "Critical and blocker issues on Struts",
				Shared:      true,
				Data:        "componentRoots=struts|severities=BLOCKER,CRITICAL",
			},
		},
		{
			login: "jane.doe",
			request: &services.SaveFilterRequest{
				Name:        "Reported by me",
				Data:        "reporters=jane.doe",
			},
		},
	}
}

package main

import (
	"bufio"
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"cashledger/internal/auth"
	"cashledger/internal/config"
	"cashledger/internal/db"
	"cashledger/internal/logging"
	"cashledger/internal/models"
	"cashledger/internal/store"
	"cashledger/internal/validator"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

func main() {
	cfg := config.Load()
	logger, err := logging.New(cfg.AppEnv, cfg.LogLevel)
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	database, err := db.Connect(cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("failed to connect database", zap.Error(err))
	}
	defer database.Close()

	if _, err := database.Exec(`CREATE TABLE IF NOT EXISTS schema_migrations (filename text primary key, applied_at timestamptz default now())`); err != nil {
		logger.Fatal("failed to ensure schema_migrations", zap.Error(err))
	}

	files, err := filepath.Glob("migrations/*.sql")
	if err != nil {
		logger.Fatal("failed to read migrations", zap.Error(err))
	}
	sort.Strings(files)

	for _, file := range files {
		filename := filepath.Base(file)
		var exists bool
		if err := database.Get(&exists, `SELECT EXISTS(SELECT 1 FROM schema_migrations WHERE filename = $1)`, filename); err != nil {
			logger.Fatal("failed to read migration state", zap.Error(err))
		}
		if exists {
			continue
		}
		if err := applyFile(database, file); err != nil {
			logger.Fatal("failed to apply migration", zap.String("file", filename), zap.Error(err))
		}
		if _, err := database.Exec(`INSERT INTO schema_migrations (filename) VALUES ($1)`, filename); err != nil {
			logger.Fatal("failed to record migration", zap.String("file", filename), zap.Error(err))
		}
		logger.Info("applied migration", zap.String("file", filename))
	}

	if cfg.AdminUsername != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		created, err := seedAdmin(ctx, database, cfg.AdminUsername, cfg.AdminPassword)
		if err != nil {
			logger.Fatal("failed to seed admin", zap.Error(err))
		}
		if created {
			logger.Info("created bootstrap admin", zap.String("username", cfg.AdminUsername))
		}
	}
}

// seedAdmin creates the first admin. It does nothing once any admin exists.
func seedAdmin(ctx context.Context, database *sqlx.DB, username, password string) (bool, error) {
	if err := validator.ValidateUsername(username); err != nil {
		return false, err
	}
	if err := validator.ValidatePassword(password); err != nil {
		return false, err
	}
	var admins int
	if err := database.GetContext(ctx, &admins, `SELECT COUNT(1) FROM users WHERE role = $1`, models.RoleAdmin); err != nil {
		return false, err
	}
	if admins > 0 {
		return false, nil
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return false, err
	}
	user := models.User{
		ID:           uuid.NewString(),
		Username:     username,
		PasswordHash: hash,
		Role:         models.RoleAdmin,
		Status:       models.StatusActive,
	}
	err = db.WithTx(ctx, database, func(tx *sqlx.Tx) error {
		if err := store.NewUserStore(database).Create(ctx, tx, user); err != nil {
			return err
		}
		return store.NewAuditStore(database).Log(ctx, tx, "", "create_admin", "user", user.ID, models.Metadata{"username": username})
	})
	if err != nil {
		return false, fmt.Errorf("create admin: %w", err)
	}
	return true, nil
}

func applyFile(db execer, path string) error {
	content, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	sections := strings.Split(string(content), "-- +migrate Down")
	if len(sections) == 0 {
		return nil
	}
	for _, stmt := range splitSQL(sections[0]) {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		if _, err := db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// splitSQL cuts a script into statements at lines containing a semicolon.
// Comment lines are dropped.
func splitSQL(sqlText string) []string {
	var statements []string
	var current strings.Builder
	scanner := bufio.NewScanner(strings.NewReader(sqlText))
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(strings.TrimSpace(line), "--") {
			continue
		}
		current.WriteString(line)
		current.WriteRune('\n')
		if strings.Contains(line, ";") {
			statements = append(statements, current.String())
			current.Reset()
		}
	}
	if strings.TrimSpace(current.String()) != "" {
		statements = append(statements, current.String())
	}
	return statements
}

type execer interface {
	Exec(query string, args ...any) (sql.Result, error)
}

package main

import (
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/joho/godotenv"
	"github.com/saeid-a/ConsultBookBack/internal/logging"
	"go.uber.org/zap"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}

	zl, err := logging.New(os.Getenv("APP_ENV"))
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer func() { _ = zl.Sync() }()

	dbURL := os.Getenv("DB_URL")
	if dbURL == "" {
		zl.Fatal("DB_URL environment variable is required")
	}

	migrationsPath, err := findMigrationsDir()
	if err != nil {
		zl.Fatal("migrations directory not found", zap.Error(err))
	}

	m, err := migrate.New("file://"+migrationsPath, dbURL)
	if err != nil {
		zl.Fatal("failed to open migrator", zap.Error(err))
	}
	defer m.Close()

	cmd := "up"
	if len(os.Args) > 1 {
		cmd = os.Args[1]
	}

	if err := run(m, cmd, os.Args[2:]); err != nil {
		zl.Fatal("migration failed", zap.String("command", cmd), zap.Error(err))
	}

	version, dirty, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		zl.Fatal("failed to read version", zap.Error(err))
	}
	zl.Info("migration finished", zap.String("command", cmd), zap.Uint("version", version), zap.Bool("dirty", dirty))
}

func run(m *migrate.Migrate, cmd string, args []string) error {
	var err error
	switch cmd {
	case "up":
		err = m.Up()
	case "down":
		err = m.Down()
	case "steps":
		if len(args) != 1 {
			return errors.New("usage: migrate steps N")
		}
		n, convErr := strconv.Atoi(args[0])
		if convErr != nil {
			return fmt.Errorf("invalid step count %q", args[0])
		}
		err = m.Steps(n)
	case "force":
		if len(args) != 1 {
			return errors.New("usage: migrate force VERSION")
		}
		v, convErr := strconv.Atoi(args[0])
		if convErr != nil {
			return fmt.Errorf("invalid version %q", args[0])
		}
		err = m.Force(v)
	case "version":
		return nil
	default:
		return fmt.Errorf("unknown command %q (want up, down, steps, force or version)", cmd)
	}
	if errors.Is(err, migrate.ErrNoChange) {
		return nil
	}
	return err
}

// findMigrationsDir walks up from the working directory and the executable
// looking for migrations/.
func findMigrationsDir() (string, error) {
	var candidates []string
	if cwd, err := os.Getwd(); err == nil {
		current := cwd
		for i := 0; i < 6; i++ {
			candidates = append(candidates, filepath.Join(current, "migrations"))
			parent := filepath.Dir(current)
			if parent == current {
				break
			}
			current = parent
		}
	}
	if exePath, err := os.Executable(); err == nil {
		exeDir := filepath.Dir(exePath)
		candidates = append(candidates,
			filepath.Join(exeDir, "migrations"),
			filepath.Join(exeDir, "..", "migrations"),
		)
	}
	for _, candidate := range candidates {
		info, err := os.Stat(candidate)
		if err == nil && info.IsDir() {
			return filepath.Abs(candidate)
		}
	}
	return "", fmt.Errorf("searched %d locations", len(candidates))
}

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/multierr"

	"github.com/angelmondragon/ghanadude-checkout/pkg/config"
	"github.com/angelmondragon/ghanadude-checkout/pkg/db"
	"github.com/angelmondragon/ghanadude-checkout/pkg/logger"
	"github.com/angelmondragon/ghanadude-checkout/pkg/migrate"
)

type options struct {
	dir     string
	name    string
	version string
}

type command func(ctx context.Context, m *migrate.Migrator, opts options) error

var dbCommands = map[string]command{
	"up": func(ctx context.Context, m *migrate.Migrator, _ options) error {
		applied, err := m.Up(ctx)
		if err == nil {
			fmt.Printf("applied %d migration(s)\n", applied)
		}
		return err
	},
	"down": func(ctx context.Context, m *migrate.Migrator, _ options) error {
		return m.Down(ctx)
	},
	"status": func(ctx context.Context, m *migrate.Migrator, _ options) error {
		statuses, err := m.Status(ctx)
		if err != nil {
			return err
		}
		for _, st := range statuses {
			applied := "pending"
			if !st.AppliedAt.IsZero() {
				applied = st.AppliedAt.UTC().Format(time.RFC3339)
			}
			fmt.Printf("%-14d %-8s %s\n", st.Source.Version, st.State, applied)
		}
		return nil
	},
	"version": func(ctx context.Context, m *migrate.Migrator, opts options) error {
		if opts.version == "" {
			current, err := m.Version(ctx)
			if err == nil {
				fmt.Println(current)
			}
			return err
		}
		return m.To(ctx, opts.version)
	},
}

func main() {
	logg := logger.New(logger.Options{ServiceName: "migrate"})
	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cmd := flag.String("cmd", "up", "migration command: "+strings.Join(commandNames(), "|"))
	var opts options
	flag.StringVar(&opts.dir, "dir", migrate.DefaultDir, "goose migrations directory")
	flag.StringVar(&opts.name, "name", "", "migration name (for create)")
	flag.StringVar(&opts.version, "version", "", "target version (YYYYMMDDHHMMSS) for -cmd=version; empty prints the current one")
	flag.Parse()

	if err := run(logg, *cmd, opts); err != nil {
		logg.Error(logg.WithField(context.Background(), "cmd", *cmd), "migrate failed", err)
		os.Exit(1)
	}
}

func run(logg *logger.Logger, cmd string, opts options) (err error) {
	// file commands work on a bare checkout without any environment
	switch cmd {
	case "create":
		if opts.name == "" {
			return errors.New("missing -name for create")
		}
		path, err := migrate.CreateSQLMigration(opts.dir, opts.name, time.Now())
		if err != nil {
			return err
		}
		fmt.Println("created migration:", path)
		return nil
	case "validate":
		if err := migrate.ValidateDir(opts.dir); err != nil {
			return err
		}
		fmt.Println("migration validation passed")
		return nil
	}

	exec, ok := dbCommands[cmd]
	if !ok {
		return fmt.Errorf("unknown -cmd value %q", cmd)
	}

	cfg, err := config.LoadWorker()
	if err != nil {
		return err
	}
	logg = logger.New(logger.Options{
		ServiceName: "migrate",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	ctx := context.Background()
	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, dbClient.Close()) }()

	sqlDB, err := dbClient.DB().DB()
	if err != nil {
		return fmt.Errorf("extracting sql.DB: %w", err)
	}
	fsys, err := migrate.Source(opts.dir)
	if err != nil {
		return err
	}
	dialect := migrate.Dialect(cfg.DB)
	migrator, err := migrate.New(sqlDB, dialect, fsys)
	if err != nil {
		return err
	}

	ctx = logg.WithFields(ctx, map[string]any{
		"env":     cfg.App.Env,
		"cmd":     cmd,
		"dir":     opts.dir,
		"dialect": string(dialect),
	})
	logg.Info(ctx, "running migration command")
	return exec(ctx, migrator, opts)
}

func commandNames() []string {
	names := []string{"create", "validate"}
	for name := range dbCommands {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

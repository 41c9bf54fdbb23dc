package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/joho/godotenv"
	"github.com/pressly/goose/v3"

	"github.com/vitalcart/storefront-backend/pkg/config"
	"github.com/vitalcart/storefront-backend/pkg/db"
	"github.com/vitalcart/storefront-backend/pkg/logger"
	"github.com/vitalcart/storefront-backend/pkg/migrate"
)

const usage = `usage: migrate [flags] <command>

commands:
  up               apply all pending migrations
  down             roll back the latest migration
  status           list migrations and when they were applied
  to <version>     move the schema to YYYYMMDDHHMMSS
  create <name>    write a new migration into -dir
  validate         check embedded migrations (or -dir when set)
`

func main() {
	dir := flag.String("dir", "", "migrations directory on disk; defaults to the embedded set")
	flag.Usage = func() { fmt.Fprint(os.Stderr, usage); flag.PrintDefaults() }
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		flag.Usage()
		os.Exit(2)
	}
	command := args[0]

	logg := logger.New(logger.Options{ServiceName: "migrate"})
	_ = godotenv.Load()

	// create and validate work on files only.
	switch command {
	case "create":
		if len(args) < 2 {
			fail("create needs a migration name")
		}
		target := *dir
		if target == "" {
			target = migrate.SourceDir
		}
		path, err := migrate.NewFile(target, args[1], time.Now())
		if err != nil {
			fail("create migration: %v", err)
		}
		fmt.Println("created", path)
		return
	case "validate":
		fsys := migrate.Migrations()
		if *dir != "" {
			fsys = os.DirFS(*dir)
		}
		if err := migrate.Validate(fsys); err != nil {
			fail("validation failed: %v", err)
		}
		fmt.Println("migrations valid")
		return
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}
	logg = logger.New(logger.Options{
		ServiceName: "migrate",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		Format:      cfg.App.LogFormat,
		WarnStack:   cfg.App.LogWarnStack,
	})
	ctx := logg.WithFields(context.Background(), map[string]any{"env": cfg.App.Env, "command": command})

	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer dbClient.Close()

	sqlDB, err := dbClient.DB().DB()
	if err != nil {
		logg.Error(ctx, "failed to unwrap sql.DB", err)
		os.Exit(1)
	}

	fsys := migrate.Migrations()
	if *dir != "" {
		fsys = os.DirFS(*dir)
	}
	runner, err := migrate.NewRunner(sqlDB, fsys)
	if err != nil {
		logg.Error(ctx, "failed to build migration runner", err)
		os.Exit(1)
	}

	switch command {
	case "up":
		results, err := runner.Up(ctx)
		report(results...)
		exitOn(ctx, logg, err)
	case "down":
		result, err := runner.Down(ctx)
		if result != nil {
			report(result)
		}
		exitOn(ctx, logg, err)
	case "to":
		if len(args) < 2 {
			fail("to needs a target version")
		}
		results, err := runner.To(ctx, args[1])
		report(results...)
		exitOn(ctx, logg, err)
	case "status":
		statuses, err := runner.Status(ctx)
		exitOn(ctx, logg, err)
		printStatus(statuses)
	default:
		flag.Usage()
		os.Exit(2)
	}
}

func report(results ...*goose.MigrationResult) {
	for _, res := range results {
		if res == nil || res.Source == nil {
			continue
		}
		fmt.Printf("%-6s %d %s (%s)\n", res.Direction, res.Source.Version, res.Source.Path, res.Duration.Round(time.Millisecond))
	}
}

func printStatus(statuses []*goose.MigrationStatus) {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "VERSION\tSTATE\tAPPLIED AT\tFILE")
	for _, st := range statuses {
		applied := "-"
		if !st.AppliedAt.IsZero() {
			applied = st.AppliedAt.UTC().Format(time.RFC3339)
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", st.Source.Version, st.State, applied, st.Source.Path)
	}
	w.Flush()
}

func exitOn(ctx context.Context, logg *logger.Logger, err error) {
	if err == nil {
		return
	}
	logg.Error(ctx, "migration command failed", err)
	os.Exit(1)
}

func fail(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}

package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"github.com/angelmondragon/tracebridge-backend/pkg/config"
	"github.com/angelmondragon/tracebridge-backend/pkg/db"
	"github.com/angelmondragon/tracebridge-backend/pkg/enums"
	"github.com/angelmondragon/tracebridge-backend/pkg/logger"
	"github.com/angelmondragon/tracebridge-backend/pkg/migrate"
	"github.com/angelmondragon/tracebridge-backend/pkg/outbox"
)

type options struct {
	dir      string
	embedded bool
	name     string
	version  string
	limit    int
	reason   string
	event    string
}

// offline commands never open a database connection.
var offline = map[string]func(ctx context.Context, opts options) error{
	"create": func(_ context.Context, opts options) error {
		if opts.name == "" {
			return fmt.Errorf("missing -name for create")
		}
		path, err := migrate.CreateSQLMigration(opts.dir, opts.name)
		if err != nil {
			return err
		}
		fmt.Println("created migration:", path)
		return nil
	},
	"validate": func(_ context.Context, opts options) error {
		if err := migrate.Validate(opts.source()); err != nil {
			return err
		}
		fmt.Println("migration validation passed")
		return nil
	},
}

func (o options) source() fs.FS {
	if o.embedded {
		return migrate.Embedded()
	}
	return migrate.Dir(o.dir)
}

type onlineCommand func(ctx context.Context, client *db.Client, runner *migrate.Runner, opts options) error

var online = map[string]onlineCommand{
	"up":   schemaCommand((*migrate.Runner).Up),
	"down": schemaCommand((*migrate.Runner).Down),
	"redo": schemaCommand((*migrate.Runner).Redo),
	"status": func(ctx context.Context, _ *db.Client, runner *migrate.Runner, _ options) error {
		statuses, err := runner.Status(ctx)
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "VERSION\tSTATE\tAPPLIED AT\tFILE")
		for _, st := range statuses {
			applied := "-"
			if !st.AppliedAt.IsZero() {
				applied = st.AppliedAt.UTC().Format(time.RFC3339)
			}
			fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", st.Source.Version, st.State, applied, st.Source.Path)
		}
		return w.Flush()
	},
	"version": func(ctx context.Context, _ *db.Client, runner *migrate.Runner, opts options) error {
		if opts.version == "" {
			return fmt.Errorf("missing -version for version command")
		}
		return runner.MigrateTo(ctx, opts.version)
	},
	// dlq prints the most recent dead-lettered outbox rows as JSON lines.
	"dlq": func(ctx context.Context, client *db.Client, _ *migrate.Runner, opts options) error {
		var reasons []enums.OutboxDLQErrorReason
		if opts.reason != "" {
			reason, err := enums.ParseOutboxDLQErrorReason(opts.reason)
			if err != nil {
				return err
			}
			reasons = append(reasons, reason)
		}
		entries, err := outbox.NewDLQRepository(client.DB()).List(ctx, opts.limit, reasons...)
		if err != nil {
			return err
		}
		enc := json.NewEncoder(os.Stdout)
		for _, entry := range entries {
			if err := enc.Encode(entry); err != nil {
				return err
			}
		}
		return nil
	},
	// requeue hands a dead-lettered event back to the publisher.
	"requeue": func(ctx context.Context, client *db.Client, _ *migrate.Runner, opts options) error {
		eventID, err := uuid.Parse(opts.event)
		if err != nil {
			return fmt.Errorf("-event must be an outbox event id: %w", err)
		}
		if err := outbox.NewDLQRepository(client.DB()).Requeue(ctx, eventID); err != nil {
			return err
		}
		fmt.Println("requeued event:", eventID)
		return nil
	},
}

func schemaCommand(step func(*migrate.Runner, context.Context) error) onlineCommand {
	return func(ctx context.Context, _ *db.Client, runner *migrate.Runner, _ options) error {
		return step(runner, ctx)
	}
}

func main() {
	logg := logger.New(logger.Options{ServiceName: "migrate"})
	_ = godotenv.Load()

	cmd := flag.String("cmd", "up", "command: "+strings.Join(commandNames(), "|"))
	var opts options
	flag.StringVar(&opts.dir, "dir", migrate.DefaultDir, "goose migrations directory")
	flag.BoolVar(&opts.embedded, "embedded", false, "use the migrations compiled into the binary")
	flag.StringVar(&opts.name, "name", "", "migration name (create)")
	flag.StringVar(&opts.version, "version", "", "target version YYYYMMDDHHMMSS (version)")
	flag.IntVar(&opts.limit, "limit", 50, "rows to print (dlq)")
	flag.StringVar(&opts.reason, "reason", "", "only show this error reason (dlq)")
	flag.StringVar(&opts.event, "event", "", "outbox event id (requeue)")
	flag.Parse()

	cfg, err := config.Load()
	requireResource(context.Background(), logg, "config", err)

	logg = logger.New(logger.Options{
		ServiceName: "migrate",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":      cfg.App.Env,
		"cmd":      *cmd,
		"dir":      opts.dir,
		"embedded": opts.embedded,
	})

	if fn, ok := offline[*cmd]; ok {
		exitOnError(ctx, logg, *cmd, fn(ctx, opts))
		return
	}
	fn, ok := online[*cmd]
	if !ok {
		fmt.Fprintln(os.Stderr, "unknown -cmd value:", *cmd)
		os.Exit(2)
	}

	dbClient, err := db.New(ctx, cfg.DB, logg)
	requireResource(ctx, logg, "database", err)
	defer dbClient.Close()

	sqlDB, err := dbClient.DB().DB()
	requireResource(ctx, logg, "sql database", err)

	runner, err := migrate.NewRunner(sqlDB, opts.source(), logg)
	requireResource(ctx, logg, "migrations", err)

	logg.Info(ctx, "migrate ready")
	exitOnError(ctx, logg, *cmd, fn(ctx, dbClient, runner, opts))
}

func commandNames() []string {
	names := make([]string, 0, len(offline)+len(online))
	for name := range offline {
		names = append(names, name)
	}
	for name := range online {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func exitOnError(ctx context.Context, logg *logger.Logger, cmd string, err error) {
	if err == nil {
		return
	}
	logg.Error(ctx, "migrate "+cmd+" failed", err)
	os.Exit(1)
}

func requireResource(ctx context.Context, logg *logger.Logger, resource string, err error) {
	if err == nil {
		return
	}
	logg.Error(ctx, fmt.Sprintf("resource not working: %s", resource), err)
	os.Exit(1)
}

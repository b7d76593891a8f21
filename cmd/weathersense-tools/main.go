package main

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/vatsalyanallabothula/weather/internal/config"
	"github.com/vatsalyanallabothula/weather/internal/db"
	"github.com/vatsalyanallabothula/weather/internal/db/migrate"
	"github.com/vatsalyanallabothula/weather/internal/modules/weather/repository"
)

const usage = `usage: %s <command>
  migrate  apply pending schema migrations
  purge    delete expired sessions and their cached readings
`

func main() {
	if err := config.LoadDotEnv(".env"); err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}

	cfg, err := config.LoadDBFromEnv()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args, cfg, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
}

// run opens the database the server would open for cfg, so DB_DSN and
// DB_DRIVER apply here too.
func run(ctx context.Context, args []string, cfg config.Config, out io.Writer) error {
	if len(args) < 2 {
		return fmt.Errorf(usage, filepath.Base(args[0]))
	}

	var cmd func(context.Context, *sql.DB, io.Writer) error
	switch args[1] {
	case "migrate":
		cmd = migrateCmd
	case "purge":
		cmd = purgeCmd
	default:
		return fmt.Errorf("unknown command: %s", args[1])
	}

	conn, err := db.Open(ctx, cfg, slog.Default())
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := db.Close(conn); closeErr != nil {
			slog.Error("db close", "err", closeErr)
		}
	}()

	return cmd(ctx, conn, out)
}

func migrateCmd(ctx context.Context, conn *sql.DB, out io.Writer) error {
	if err := migrate.Run(ctx, conn); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	_, _ = fmt.Fprintln(out, "migrations applied")
	return nil
}

func purgeCmd(ctx context.Context, conn *sql.DB, out io.Writer) error {
	n, err := repository.NewRepository(conn).PurgeExpired(ctx, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("purge: %w", err)
	}
	_, _ = fmt.Fprintf(out, "purged %d expired sessions\n", n)
	return nil
}

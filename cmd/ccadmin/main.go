// Command ccadmin runs one-off maintenance tasks against the CodeCraft
// database. Exactly one task flag is expected per run:
//
//	ccadmin -seed=<userID>                 publish the starter templates as userID
//	ccadmin -strip-prices                  clear the legacy template price field
//	ccadmin -backfill-snippets             fill metadata defaults on old snippets
//	ccadmin -grant-pro=<email> [-customer=<id>] [-order=<id>]
//
// The database is found the same way the server finds it (DB_PATH, .env).
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	sqliteRepo "github.com/sakif/codecraft/internal/repository/sqlite"
	"github.com/sakif/codecraft/internal/service"
)

type adminConfig struct {
	DBPath string `envconfig:"DB_PATH" default:"data/codecraft.db"`
}

func main() {
	var (
		seedOwner   = flag.String("seed", "", "publish the starter templates owned by this user id")
		stripPrices = flag.Bool("strip-prices", false, "clear the legacy price field on every template")
		backfill    = flag.Bool("backfill-snippets", false, "fill metadata defaults on snippets that predate them")
		grantPro    = flag.String("grant-pro", "", "mark the account with this email as pro")
		customerID  = flag.String("customer", "", "billing customer id stored with -grant-pro")
		orderID     = flag.String("order", "", "billing order id stored with -grant-pro")
		dbPathFlag  = flag.String("db", "", "database path (overrides DB_PATH)")
		timeoutFlag = flag.Duration("timeout", time.Minute, "give up after this long")
	)
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	if err := run(logger, *dbPathFlag, *timeoutFlag, task{
		seedOwner:  *seedOwner,
		strip:      *stripPrices,
		backfill:   *backfill,
		grantPro:   *grantPro,
		customerID: *customerID,
		orderID:    *orderID,
	}); err != nil {
		logger.Error("ccadmin failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

type task struct {
	seedOwner  string
	strip      bool
	backfill   bool
	grantPro   string
	customerID string
	orderID    string
}

func (t task) count() int {
	n := 0
	for _, set := range []bool{t.seedOwner != "", t.strip, t.backfill, t.grantPro != ""} {
		if set {
			n++
		}
	}
	return n
}

func run(logger *slog.Logger, dbPath string, timeout time.Duration, t task) error {
	if t.count() != 1 {
		flag.Usage()
		return errors.New("exactly one of -seed, -strip-prices, -backfill-snippets, -grant-pro is required")
	}

	if dbPath == "" {
		if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("loading .env: %w", err)
		}
		var cfg adminConfig
		if err := envconfig.Process("", &cfg); err != nil {
			return fmt.Errorf("reading environment: %w", err)
		}
		dbPath = cfg.DBPath
	}

	db, err := sqliteRepo.New(dbPath)
	if err != nil {
		return err
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	switch {
	case t.seedOwner != "":
		templates, err := service.NewMarketplaceService(db, db, logger).Seed(ctx, t.seedOwner)
		if err != nil {
			return err
		}
		for _, tpl := range templates {
			fmt.Printf("%s\t%s\n", tpl.ID, tpl.Title)
		}
	case t.strip:
		n, err := service.NewMarketplaceService(db, db, logger).StripLegacyPrices(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("cleared price on %d templates\n", n)
	case t.backfill:
		n, err := service.NewSnippetService(db, db, db, db, logger).Backfill(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("backfilled %d snippets\n", n)
	case t.grantPro != "":
		u, err := service.NewAuthService(db, nil, logger).UpgradeToPro(ctx, t.grantPro, t.customerID, t.orderID)
		if err != nil {
			return err
		}
		fmt.Printf("%s (%s) is now pro\n", u.ID, u.Email)
	}
	return nil
}

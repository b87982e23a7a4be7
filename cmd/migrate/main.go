// Command migrate applies the SQL schema migrations to Postgres.
//
//	migrate up
//	migrate down
//	migrate to 1
//	migrate -seed up
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"

	"ms-grouporder/internal/catalog"
	"ms-grouporder/internal/config"
	"ms-grouporder/internal/database"
	"ms-grouporder/internal/database/migrations"
	"ms-grouporder/internal/logger"
)

func main() {
	seed := flag.Bool("seed", false, "insert the demo catalog after migrating")
	dir := flag.String("dir", "", "migrations directory (defaults to DB_MIGRATIONS_DIR)")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: migrate [-seed] [-dir path] up|down|to <version>\n")
		flag.PrintDefaults()
	}
	flag.Parse()
	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	_ = godotenv.Load()
	cfg := config.Load()
	if *dir != "" {
		cfg.Database.MigrationsDir = *dir
	}
	log, err := logger.New(logger.Options{Service: "grouporder-migrate", MinLevel: logger.ParseLevel(cfg.Log.Level)})
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Close()

	if cfg.Database.Driver != "postgres" {
		log.Fatal("CONFIG", "migrations target postgres; set DB_DRIVER=postgres")
	}

	ctx := context.Background()
	bunDB, err := database.Open(ctx, cfg.Database, log)
	if err != nil {
		log.Fatal("DATABASE", err.Error())
	}
	defer bunDB.Close()

	runner := migrations.NewRunner(bunDB, migrations.Options{MigrationsDir: cfg.Database.MigrationsDir}, log)
	defer runner.Close()

	switch cmd := flag.Arg(0); cmd {
	case "up":
		err = runner.Up()
	case "down":
		err = runner.Down()
	case "to":
		var v uint64
		v, err = strconv.ParseUint(flag.Arg(1), 10, 32)
		if err != nil {
			log.Fatal("MIGRATE", fmt.Sprintf("invalid version %q", flag.Arg(1)))
		}
		err = runner.To(uint(v))
	default:
		flag.Usage()
		os.Exit(2)
	}
	if err != nil {
		log.Fatal("MIGRATE", err.Error())
	}

	if *seed {
		n, err := catalog.NewStore(bunDB).Seed(ctx)
		if err != nil {
			log.Fatal("DATABASE", fmt.Sprintf("Failed to seed catalog: %v", err))
		}
		log.Info("DATABASE", fmt.Sprintf("Catalog seeded (%d new rows)", n))
	}
}

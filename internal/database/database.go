package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"

	"ms-grouporder/internal/config"
	"ms-grouporder/internal/logger"
	"ms-grouporder/internal/models"
)

// Models lists every table the service owns, in creation order.
var Models = []interface{}{
	(*models.Category)(nil),
	(*models.Product)(nil),
	(*models.Profile)(nil),
	(*models.CartItem)(nil),
	(*models.SharedOrder)(nil),
	(*models.Participant)(nil),
	(*models.OrderItem)(nil),
	(*models.DeliveryTracking)(nil),
	(*models.RouteStop)(nil),
	(*models.Notification)(nil),
}

// Open connects to the configured database, retrying the first ping the
// way the service always has, and wraps it in the matching bun dialect.
func Open(ctx context.Context, cfg config.DatabaseConfig, log *logger.Logger) (*bun.DB, error) {
	var (
		sqldb *sql.DB
		err   error
	)
	driver := cfg.Driver
	switch driver {
	case "postgres":
		sqldb, err = sql.Open("postgres", cfg.DSN)
	case "sqlite", "":
		driver = "sqlite"
		sqldb, err = sql.Open(sqliteshim.ShimName, cfg.DSN)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}

	const maxRetries = 5
	for i := 0; i < maxRetries; i++ {
		log.Info("DATABASE", fmt.Sprintf("Connecting to %s (attempt %d/%d)", driver, i+1, maxRetries))
		if err = sqldb.PingContext(ctx); err == nil {
			break
		}
		log.Error("DATABASE", fmt.Sprintf("Ping failed: %v", err))
		if i < maxRetries-1 {
			time.Sleep(2 * time.Second)
		}
	}
	if err != nil {
		sqldb.Close()
		return nil, fmt.Errorf("connect to %s after %d attempts: %w", driver, maxRetries, err)
	}

	var db *bun.DB
	if driver == "postgres" {
		sqldb.SetMaxOpenConns(cfg.MaxOpenConns)
		sqldb.SetMaxIdleConns(cfg.MaxIdleConns)
		sqldb.SetConnMaxLifetime(cfg.MaxLifetime)
		db = bun.NewDB(sqldb, pgdialect.New())
	} else {
		// SQLite allows a single writer.
		sqldb.SetMaxOpenConns(1)
		db = bun.NewDB(sqldb, sqlitedialect.New())
	}
	log.Info("DATABASE", fmt.Sprintf("✅ %s connection successful", driver))
	return db, nil
}

// CreateSchema creates any missing tables from the bun models. Postgres
// deployments use the SQL migrations instead.
func CreateSchema(ctx context.Context, db bun.IDB) error {
	for _, m := range Models {
		if _, err := db.NewCreateTable().Model(m).IfNotExists().Exec(ctx); err != nil {
			return fmt.Errorf("create table for %T: %w", m, err)
		}
	}
	indexes := []struct {
		model   interface{}
		name    string
		columns []string
		unique  bool
	}{
		{(*models.Participant)(nil), "idx_participants_order_seq", []string{"order_id", "join_seq"}, true},
		{(*models.Participant)(nil), "idx_participants_user", []string{"user_id"}, false},
		{(*models.OrderItem)(nil), "idx_items_order_user", []string{"order_id", "user_id"}, false},
		{(*models.RouteStop)(nil), "idx_route_stops_order_seq", []string{"order_id", "seq"}, false},
		{(*models.Notification)(nil), "idx_notifications_user", []string{"user_id", "id"}, false},
		{(*models.Notification)(nil), "idx_notifications_dedup", []string{"order_id", "user_id", "type"}, false},
		{(*models.SharedOrder)(nil), "idx_shared_orders_status", []string{"status", "expires_at"}, false},
	}
	for _, idx := range indexes {
		q := db.NewCreateIndex().
			Model(idx.model).
			Index(idx.name).
			Column(idx.columns...).
			IfNotExists()
		if idx.unique {
			q = q.Unique()
		}
		_, err := q.Exec(ctx)
		if err != nil {
			return fmt.Errorf("create index %s: %w", idx.name, err)
		}
	}
	return nil
}

// OpenInMemory returns a fresh SQLite database with the schema applied.
// Tests use it as their storage backend.
func OpenInMemory(ctx context.Context) (*bun.DB, error) {
	sqldb, err := sql.Open(sqliteshim.ShimName, ":memory:")
	if err != nil {
		return nil, err
	}
	// Every connection to :memory: is its own database.
	sqldb.SetMaxOpenConns(1)
	sqldb.SetMaxIdleConns(1)
	sqldb.SetConnMaxLifetime(0)

	db := bun.NewDB(sqldb, sqlitedialect.New())
	if err := CreateSchema(ctx, db); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

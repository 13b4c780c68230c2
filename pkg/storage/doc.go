// Package storage opens the PostgreSQL pool and Redis client and runs the
// per-component schema migrations.
//
// Each package that owns tables exposes its own []Migration and applies it
// with Migrate, which records progress in schema_migrations:
//
//	db, err := storage.OpenPostgres(cfg.Storage)
//	err = storage.Migrate(ctx, db, "rbac", rbac.Migrations())
package storage

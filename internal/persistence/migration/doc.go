// Package migration applies the versioned database schema for the booking
// stores.
//
// Schema files are embedded per dialect under sql/<dialect>/ and follow the
// golang-migrate naming convention {version}_{description}.{up|down}.sql.
// Applied versions are tracked in the schema_migrations table that
// golang-migrate maintains.
//
// Example usage:
//
//	runner := migration.NewRunner(logger)
//	if err := runner.UpSQLite(ctx, db); err != nil {
//		return fmt.Errorf("migrate: %w", err)
//	}
package migration

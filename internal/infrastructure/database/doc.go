// Package database owns the SQLite file behind the delivery audit log.
//
// Open applies the connection settings from config.yaml (WAL, busy
// timeout, single connection) and Migrate brings the schema up to date
// from an fs.FS of VERSION_name.up.sql / .down.sql pairs, normally
// migrations.FS:
//
//	db, err := database.Open(ctx, cfg.Database)
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx, migrations.FS); err != nil {
//	    return err
//	}
//
// Migrations only ever add: new columns are nullable or defaulted so the
// previous binary can still read the table after a rollback.
package database

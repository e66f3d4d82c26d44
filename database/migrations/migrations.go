// Package migrations registers the schema of the SQL-backed stores. Import
// it for its side effects before running migration.New(db).Run().
package migrations

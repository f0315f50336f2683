// Package all wires every built-in storage backend into the storage factory.
//
// It exists purely for side effects: importing it runs the init functions of
// each backend, which register their factories and DDL dialects. After
//
//	import _ "taxietl/internal/storage/all"
//
// storage.New accepts the kinds "postgres", "sqlite", "mysql", "mssql" and
// "bigquery". A binary that needs only a subset can blank-import those
// backend packages directly instead.
package all

import (
	_ "taxietl/internal/storage/bigquery"
	_ "taxietl/internal/storage/mssql"
	_ "taxietl/internal/storage/mysql"
	_ "taxietl/internal/storage/postgres"
	_ "taxietl/internal/storage/sqlite"
)

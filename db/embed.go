package db

import "embed"

// Migrations holds the SQL migrations for the local session database.
//
//go:embed migrations/*.sql
var Migrations embed.FS

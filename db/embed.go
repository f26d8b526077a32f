// Package db embeds the storefront schema so the server and tooling can
// apply it without shipping migration files alongside the binary.
package db

import _ "embed"

// Schema holds the DDL for the catalog, cart, order and API key tables.
//
//go:embed migrations/001_schema.sql
var Schema string

// Package migrations embeds the goose migrations of the SQL inscription stores.
package migrations

import "embed"

//go:embed postgres/*.sql sqlite/*.sql
var Migrations embed.FS

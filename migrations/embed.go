// Package migrations embeds the goose SQL migrations of both databases.
package migrations

import "embed"

// FS holds identity/*.sql and projection/*.sql.
//
//go:embed identity/*.sql projection/*.sql
var FS embed.FS

// Directories inside FS.
const (
	Identity   = "identity"
	Projection = "projection"
)

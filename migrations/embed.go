// Package migrations holds the versioned schema of the integration hub.
package migrations

import "embed"

// FS contains every *.up.sql and *.down.sql migration in this directory
//
//go:embed *.sql
var FS embed.FS

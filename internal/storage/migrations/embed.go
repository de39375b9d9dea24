// Package migrations embeds the versioned schema scripts, one directory per
// database driver.
package migrations

import "embed"

//go:embed sqlite/*.sql mysql/*.sql
var FS embed.FS

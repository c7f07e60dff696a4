// Package migrations embeds the preference store schema.
package migrations

import "embed"

//go:embed *.sql
var Migrations embed.FS

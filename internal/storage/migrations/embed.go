// Package migrations embeds and applies the store schemas.
package migrations

import "embed"

// PostgresFS embeds the result store schema.
//
//go:embed postgres/*.sql
var PostgresFS embed.FS

// ClickhouseFS embeds the panel store schema.
//
//go:embed clickhouse/*.sql
var ClickhouseFS embed.FS

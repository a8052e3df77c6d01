// Package migrations holds the ClickHouse schema of the action journal
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS

// Package scripts embeds the bundled Risor scripts so the CLI can run them
// without a scripts directory on disk.
package scripts

import "embed"

// FS holds every bundled .risor script at its root.
//
//go:embed *.risor
var FS embed.FS

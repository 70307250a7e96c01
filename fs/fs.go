// Package appfs exposes the app's embedded static files:
// goose migrations and email templates.
package appfs

import "embed"

//go:embed migrations all:assets
var FS embed.FS

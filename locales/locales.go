// Package locales embeds the bot's translation bundles.
package locales

import "embed"

// FS holds one <lang>.yaml per supported language plus schema.json.
//
//go:embed *.yaml schema.json
var FS embed.FS

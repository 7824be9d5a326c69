// Package schemas holds the embedded JSON Schemas shipped with vulntune.
package schemas

import _ "embed"

// ManifestSchemaJSON is the JSON Schema for the current run-manifest layout.
//
//go:embed manifest.schema.json
var ManifestSchemaJSON string

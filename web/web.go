// Package web carries the embedded static assets.
package web

import _ "embed"

//go:embed index.html
var IndexHTML []byte

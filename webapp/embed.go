// Package webapp provides embedded static files for the block browser
// web app.
package webapp

import "embed"

//go:embed index.html
var Assets embed.FS

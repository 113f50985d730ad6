// Package assets embeds the built-in logo catalog.
package assets

import (
	"embed"
	"io/fs"
)

//go:embed logos/*.svg
var logoFiles embed.FS

// Logo is one selectable catalog entry.
type Logo struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

var catalog = []Logo{
	{ID: "oright-pro-vertical", Name: "O'right PRO (Vertical)"},
	{ID: "oright-standard", Name: "O'right (Standard)"},
	{ID: "oright-pro-horizontal", Name: "O'right PRO (Horizontal)"},
}

// DefaultLogoID is the catalog entry used when nothing else is configured.
const DefaultLogoID = "oright-pro-vertical"

// Logos returns the catalog in display order.
func Logos() []Logo {
	out := make([]Logo, len(catalog))
	copy(out, catalog)
	return out
}

// Lookup finds a catalog entry by id.
func Lookup(id string) (Logo, bool) {
	for _, l := range catalog {
		if l.ID == id {
			return l, true
		}
	}
	return Logo{}, false
}

// FS returns the logo files keyed as "<id>.svg".
func FS() fs.FS {
	sub, err := fs.Sub(logoFiles, "logos")
	if err != nil {
		panic(err)
	}
	return sub
}

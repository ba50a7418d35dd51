// Package assets carries the support files the engine loads through locator
// addresses: the bootstrap script for the isolated execution context and the
// ambient globals table for the compiler.
package assets

import (
	"embed"
	"fmt"
	"strings"
)

//go:embed sandbox/prelude.js compiler/globals.json
var files embed.FS

// root separates the deployment prefix from the embedded file key.
const root = "/assets/"

// Fetch reads the embedded support file behind a locator address. Whatever
// deployment prefix sits ahead of the assets root is ignored.
func Fetch(address string) ([]byte, error) {
	idx := strings.Index(address, root)
	if idx < 0 {
		return nil, fmt.Errorf("assets: address %q outside the assets root", address)
	}
	data, err := files.ReadFile(address[idx+len(root):])
	if err != nil {
		return nil, fmt.Errorf("assets: %w", err)
	}
	return data, nil
}

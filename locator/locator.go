// Package locator resolves the addresses of the engine's support resources:
// the isolated-execution entry point and the compiler support module. Each
// address is resolved once and memoized for the process lifetime.
package locator

import (
	"fmt"
	"strings"
	"sync"
)

// Kind names a resource the engine needs an address for.
type Kind int

const (
	// KindSandboxEntry is the bootstrap script for the isolated context.
	KindSandboxEntry Kind = iota
	// KindCompilerGlobals is the ambient globals table for the compiler.
	KindCompilerGlobals
)

func (k Kind) String() string {
	switch k {
	case KindSandboxEntry:
		return "sandbox-entry"
	case KindCompilerGlobals:
		return "compiler-globals"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

var raw = map[Kind]string{
	KindSandboxEntry:    "assets/sandbox/prelude.js",
	KindCompilerGlobals: "assets/compiler/globals.json",
}

var (
	mu       sync.Mutex
	basePath string
	resolved = map[Kind]string{}
)

// Configure sets the deployment path prefix applied to raw resolutions.
// Addresses already handed out keep their prefix; call Configure before the
// first Locate.
func Configure(base string) {
	mu.Lock()
	basePath = base
	mu.Unlock()
}

// Locate resolves the address for a resource kind. The first resolution per
// kind is memoized; every later call returns the identical address.
func Locate(k Kind) string {
	mu.Lock()
	defer mu.Unlock()

	if addr, ok := resolved[k]; ok {
		return addr
	}
	r, ok := raw[k]
	if !ok {
		panic(fmt.Sprintf("locator: unknown resource kind %v", k))
	}
	addr := withBase(basePath, r)
	resolved[k] = addr
	return addr
}

// withBase prepends the deployment prefix when the raw resolution lacks it
// and normalizes leading slashes so the result is always well-formed.
func withBase(base, p string) string {
	p = "/" + strings.TrimLeft(p, "/")
	b := strings.Trim(base, "/")
	if b == "" {
		return p
	}
	if p == "/"+b || strings.HasPrefix(p, "/"+b+"/") {
		return p
	}
	return "/" + b + p
}

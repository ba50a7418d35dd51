// Package compiler turns untrusted cell source into an executable form plus
// advisory diagnostics. Diagnostics never block execution: a cell that fails
// to parse still yields runnable text, and the isolated context reports the
// syntax fault at run time.
package compiler

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/dop251/goja/parser"

	"codecell/assets"
	"codecell/locator"
)

// ErrUnavailable reports that the compiler support module could not be
// obtained. No run starts after this.
var ErrUnavailable = errors.New("compiler unavailable")

// Severity classifies a diagnostic.
type Severity int

const (
	SeverityError Severity = iota
	SeverityWarning
)

func (s Severity) String() string {
	switch s {
	case SeverityError:
		return "error"
	case SeverityWarning:
		return "warning"
	default:
		return fmt.Sprintf("severity(%d)", int(s))
	}
}

// Diagnostic is an advisory message about cell source.
type Diagnostic struct {
	Severity Severity
	Message  string
}

// Result is one compilation: executable text plus ordered diagnostics.
// Results are recomputed fresh per run and never cached.
type Result struct {
	Code        string
	Diagnostics []Diagnostic
}

// Compiler translates cell source. The configuration is fixed: a loose
// parse, no strict mode, ambient globals loaded from the support module.
type Compiler struct {
	globals map[string]struct{}
}

var (
	defaultOnce sync.Once
	defaultC    *Compiler
	defaultErr  error
)

// Default returns the process-wide compiler, loading it on first use. The
// instance lives until process exit and is safe for concurrent use.
func Default() (*Compiler, error) {
	defaultOnce.Do(func() {
		defaultC, defaultErr = load()
	})
	if defaultErr != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, defaultErr)
	}
	return defaultC, nil
}

func load() (*Compiler, error) {
	data, err := assets.Fetch(locator.Locate(locator.KindCompilerGlobals))
	if err != nil {
		return nil, err
	}
	var names []string
	if err := json.Unmarshal(data, &names); err != nil {
		return nil, fmt.Errorf("globals table: %w", err)
	}
	globals := make(map[string]struct{}, len(names))
	for _, n := range names {
		globals[n] = struct{}{}
	}
	return &Compiler{globals: globals}, nil
}

// Compile translates source to executable text. The translation is
// best-effort: diagnostics are advisory and the returned code is always
// runnable input for the sandbox, even when the parse failed.
func (c *Compiler) Compile(source string) Result {
	res := Result{Code: source}

	prog, err := parser.ParseFile(nil, "cell.js", source, 0)
	if err != nil {
		var list parser.ErrorList
		if errors.As(err, &list) {
			for _, e := range list {
				res.Diagnostics = append(res.Diagnostics, Diagnostic{
					Severity: SeverityError,
					Message:  fmt.Sprintf("%s (line %d)", e.Message, e.Position.Line),
				})
			}
		} else {
			res.Diagnostics = append(res.Diagnostics, Diagnostic{
				Severity: SeverityError,
				Message:  err.Error(),
			})
		}
		return res
	}

	res.Diagnostics = append(res.Diagnostics, c.scan(prog)...)
	return res
}

func unresolvedMessage(name string) string {
	return fmt.Sprintf("cannot resolve name '%s'", name)
}

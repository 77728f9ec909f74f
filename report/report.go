// Package report emits the diagnostics of the analyzer.
package report

import (
	"fmt"
	"go/ast"
	"go/token"

	"golang.org/x/tools/go/analysis"
)

type Options struct {
	Pos             token.Pos
	Category        string
	FilterGenerated bool
	Message         string
}

func Report(pass *analysis.Pass, opts Options) {
	if opts.FilterGenerated && IsGenerated(pass, opts.Pos) {
		return
	}
	pass.Report(analysis.Diagnostic{
		Pos:      opts.Pos,
		Category: opts.Category,
		Message:  opts.Message,
	})
}

// PosfFG reports a diagnostic at pos unless pos is in generated code.
func PosfFG(pass *analysis.Pass, category string, pos token.Pos, f string, args ...interface{}) {
	Report(pass, Options{
		Pos:             pos,
		Category:        category,
		FilterGenerated: true,
		Message:         fmt.Sprintf(f, args...),
	})
}

// IsGenerated reports whether pos is in a file of the package that carries
// a "Code generated ... DO NOT EDIT." comment.
func IsGenerated(pass *analysis.Pass, pos token.Pos) bool {
	tf := pass.Fset.File(pos)
	if tf == nil {
		return false
	}
	for _, f := range pass.Files {
		if pass.Fset.File(f.Pos()) == tf {
			return ast.IsGenerated(f)
		}
	}
	return false
}

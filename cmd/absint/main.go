// absint reports operations whose outcome is decided by the values of their
// operands.
package main

import (
	"flag"
	"os"

	"golang.org/x/tools/go/analysis/singlechecker"

	"honnef.co/go/absval/analysis/absint"
	"honnef.co/go/absval/version"
)

func main() {
	flag.BoolFunc("version", "Print version and exit", func(string) error {
		version.Print(os.Stdout)
		os.Exit(0)
		return nil
	})
	flag.BoolFunc("debug.version", "Print detailed version information about this program", func(string) error {
		version.Verbose(os.Stdout)
		os.Exit(0)
		return nil
	})
	singlechecker.Main(absint.Analyzer)
}

package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/amanthanvi/tripbook/internal/cli"
	"github.com/amanthanvi/tripbook/internal/version"
)

func main() {
	outDir := flag.String("out", "dist/man", "directory for the generated pages")
	format := flag.String("format", cli.DocFormatMan, "output format: man or markdown")
	flag.Parse()

	build := cli.BuildInfo{
		Version:   version.Version,
		Commit:    version.Commit,
		BuildTime: version.BuildTime,
	}
	if err := cli.GenerateDocs(*outDir, *format, build); err != nil {
		fmt.Fprintf(os.Stderr, "tripbook-man: %v\n", err)
		os.Exit(2)
	}
}

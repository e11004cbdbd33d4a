package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra/doc"
)

// Doc formats accepted by GenerateDocs.
const (
	DocFormatMan      = "man"
	DocFormatMarkdown = "markdown"
)

// GenerateManPages writes one troff page per command into outDir.
func GenerateManPages(outDir string, build BuildInfo) error {
	return GenerateDocs(outDir, DocFormatMan, build)
}

func GenerateDocs(outDir, format string, build BuildInfo) error {
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return fmt.Errorf("create docs output directory: %w", err)
	}

	root := NewRootCommand(io.Discard, build)
	root.DisableAutoGenTag = true

	switch format {
	case DocFormatMan:
		header := &doc.GenManHeader{
			Title:   "TRIPBOOK",
			Section: "1",
			Source:  "tripbook " + build.Version,
			Manual:  "Travel Agency Records",
		}
		if err := doc.GenManTree(root, header, outDir); err != nil {
			return fmt.Errorf("generate man pages: %w", err)
		}
	case DocFormatMarkdown:
		if err := doc.GenMarkdownTree(root, outDir); err != nil {
			return fmt.Errorf("generate markdown docs: %w", err)
		}
	default:
		return fmt.Errorf("unknown docs format %q (want %s or %s)", format, DocFormatMan, DocFormatMarkdown)
	}
	return nil
}

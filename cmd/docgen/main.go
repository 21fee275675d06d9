// docgen renders the AsciiDoc operator documentation under docs/ to static
// HTML pages in docs/html/. Run it from the repository root.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"xrpdash.live/xrd/internal/docs"
)

func main() {
	docsDir := "docs"
	if len(os.Args) > 1 {
		docsDir = os.Args[1]
	}
	outDir := filepath.Join(docsDir, "html")

	svc := docs.NewService(docsDir)
	names, err := svc.ListDocs()
	if err != nil {
		fmt.Fprintf(os.Stderr, "docgen: %v\n", err)
		os.Exit(1)
	}
	if len(names) == 0 {
		fmt.Fprintf(os.Stderr, "docgen: no .adoc files under %s\n", docsDir)
		os.Exit(1)
	}

	if err := os.MkdirAll(outDir, 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "docgen: %v\n", err)
		os.Exit(1)
	}

	for _, name := range names {
		html, err := svc.GetDoc(name)
		if err != nil {
			fmt.Fprintf(os.Stderr, "docgen: render %s: %v\n", name, err)
			os.Exit(1)
		}

		page := "<!DOCTYPE html>\n<html>\n<head><meta charset=\"utf-8\"><title>" +
			strings.TrimSuffix(name, ".adoc") + "</title></head>\n<body>\n" +
			html + "\n</body>\n</html>\n"

		outPath := filepath.Join(outDir, strings.TrimSuffix(name, ".adoc")+".html")
		if err := os.WriteFile(outPath, []byte(page), 0o644); err != nil {
			fmt.Fprintf(os.Stderr, "docgen: write %s: %v\n", outPath, err)
			os.Exit(1)
		}
		fmt.Printf("Generated %s\n", outPath)
	}
}

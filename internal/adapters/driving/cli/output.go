package cli

import (
	"fmt"
	"io"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/bytedance/sonic"
	"golang.org/x/term"
	"gopkg.in/yaml.v3"

	"github.com/custodia-labs/webrage/internal/core/domain"
)

// Output formats accepted by --format.
const (
	formatText = "text"
	formatJSON = "json"
	formatYAML = "yaml"
)

const defaultWidth = 100

func validateFormat(format string) error {
	switch format {
	case formatText, formatJSON, formatYAML:
		return nil
	default:
		return fmt.Errorf("unknown format %q (want text, json or yaml): %w", format, domain.ErrInvalidInput)
	}
}

// writeStructured renders v as JSON or YAML using its json field names.
func writeStructured(w io.Writer, format string, v any) error {
	data, err := sonic.ConfigStd.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal output: %w", err)
	}
	if format == formatJSON {
		_, err = fmt.Fprintln(w, string(data))
		return err
	}

	// JSON is a YAML subset; re-encode the parsed tree in block style so the
	// field names and order match the JSON output.
	var node yaml.Node
	if err := yaml.Unmarshal(data, &node); err != nil {
		return fmt.Errorf("failed to convert output to yaml: %w", err)
	}
	clearStyle(&node)

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(&node); err != nil {
		return fmt.Errorf("failed to write yaml: %w", err)
	}
	return enc.Close()
}

func clearStyle(n *yaml.Node) {
	n.Style = 0
	for _, c := range n.Content {
		clearStyle(c)
	}
}

// terminalWidth returns the width of w if it is a terminal.
func terminalWidth(w io.Writer) int {
	f, ok := w.(*os.File)
	if !ok || !term.IsTerminal(int(f.Fd())) {
		return defaultWidth
	}
	width, _, err := term.GetSize(int(f.Fd()))
	if err != nil || width < 40 {
		return defaultWidth
	}
	return width
}

// preview collapses whitespace and cuts s to width runes.
func preview(s string, width int) string {
	s = strings.Join(strings.Fields(s), " ")
	if width < 4 || utf8.RuneCountInString(s) <= width {
		return s
	}
	runes := []rune(s)
	return string(runes[:width-1]) + "…"
}

func itemLabel(item *domain.RerankedItem) string {
	if item.Origin == domain.OriginWeb {
		if item.Title != "" {
			return item.Title + " <" + item.SourceRef + ">"
		}
		return item.SourceRef
	}
	if item.Title != "" {
		return item.Title
	}
	return item.SourceRef
}

func printItems(w io.Writer, items []domain.RerankedItem) {
	width := terminalWidth(w) - 6
	for i := range items {
		item := &items[i]
		fmt.Fprintf(w, "%2d. [%s %.2f] %s\n", i+1, item.Origin, item.Relevance, itemLabel(item))
		fmt.Fprintf(w, "    %s\n", preview(item.Content, width))
	}
}

func printWarnings(w io.Writer, d *domain.Diagnostics) {
	for _, warning := range d.Warnings {
		fmt.Fprintf(w, "warning: %s\n", warning)
	}
}

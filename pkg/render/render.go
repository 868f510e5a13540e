package render

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"slices"

	"github.com/matzehuels/drvgraph/pkg/depmap"
	derrors "github.com/matzehuels/drvgraph/pkg/errors"
)

// Output formats.
const (
	FormatText = "text"
	FormatJSON = "json"
	FormatDOT  = "dot"
	FormatSVG  = "svg"
)

// Formats lists the supported output formats.
var Formats = []string{FormatText, FormatJSON, FormatDOT, FormatSVG}

// ValidateFormat checks that format is supported.
func ValidateFormat(format string) error {
	if !slices.Contains(Formats, format) {
		return derrors.New(derrors.ErrCodeInvalidFormat, "unsupported format %q (want one of %v)", format, Formats)
	}
	return nil
}

// Render returns m in the given format.
func Render(m depmap.DependencyMap, format string) ([]byte, error) {
	switch format {
	case FormatText:
		var buf bytes.Buffer
		if err := WriteText(&buf, m); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	case FormatJSON:
		return MarshalJSON(m)
	case FormatDOT:
		return []byte(ToDOT(m)), nil
	case FormatSVG:
		return RenderSVG(ToDOT(m))
	default:
		return nil, ValidateFormat(format)
	}
}

// WriteText writes one line per dependent followed by its indented
// dependencies.
func WriteText(w io.Writer, m depmap.DependencyMap) error {
	for _, e := range m {
		if len(e.Dependencies) == 0 {
			if _, err := fmt.Fprintf(w, "%s (no dependencies)\n", e.Dependent); err != nil {
				return err
			}
			continue
		}
		if _, err := fmt.Fprintf(w, "%s\n", e.Dependent); err != nil {
			return err
		}
		for _, d := range e.Dependencies {
			if _, err := fmt.Fprintf(w, "  %s\n", d); err != nil {
				return err
			}
		}
	}
	return nil
}

// MarshalJSON encodes m as indented JSON with a trailing newline.
func MarshalJSON(m depmap.DependencyMap) ([]byte, error) {
	if m == nil {
		m = depmap.DependencyMap{}
	}
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

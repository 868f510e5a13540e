package render

import (
	"bytes"
	"html"
	"strings"
	"testing"

	"github.com/matzehuels/drvgraph/pkg/depmap"
	derrors "github.com/matzehuels/drvgraph/pkg/errors"
)

func drv(t *testing.T, name, attr string) depmap.Derivation {
	t.Helper()
	d, err := depmap.NewDerivation("/nix/store/"+name, attr)
	if err != nil {
		t.Fatal(err)
	}
	return d
}

func sampleMap(t *testing.T) depmap.DependencyMap {
	a := drv(t, "aaa-a.drv", "packages.x86_64-linux.a")
	b := drv(t, "bbb-b.drv", "packages.x86_64-linux.b")
	c := drv(t, "ccc-c.drv", "packages.x86_64-linux.c")
	return depmap.DependencyMap{
		{Dependent: a, Dependencies: []depmap.Derivation{}},
		{Dependent: b, Dependencies: []depmap.Derivation{a}},
		{Dependent: c, Dependencies: []depmap.Derivation{b}},
	}
}

func TestValidateFormat(t *testing.T) {
	tests := []struct {
		format  string
		wantErr bool
	}{
		{"text", false},
		{"json", false},
		{"dot", false},
		{"svg", false},
		{"png", true},
		{"JSON", true}, // case-sensitive
		{"", true},
	}
	for _, tt := range tests {
		err := ValidateFormat(tt.format)
		if (err != nil) != tt.wantErr {
			t.Errorf("ValidateFormat(%q) error = %v, wantErr %v", tt.format, err, tt.wantErr)
		}
		if err != nil && !derrors.Is(err, derrors.ErrCodeInvalidFormat) {
			t.Errorf("ValidateFormat(%q) code = %s", tt.format, derrors.GetCode(err))
		}
	}
}

func TestWriteText(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteText(&buf, sampleMap(t)); err != nil {
		t.Fatal(err)
	}
	want := `packages.x86_64-linux.a (no dependencies)
packages.x86_64-linux.b
  packages.x86_64-linux.a
packages.x86_64-linux.c
  packages.x86_64-linux.b
`
	if buf.String() != want {
		t.Errorf("WriteText() =\n%s\nwant\n%s", buf.String(), want)
	}
}

func TestMarshalJSON(t *testing.T) {
	data, err := MarshalJSON(sampleMap(t))
	if err != nil {
		t.Fatal(err)
	}
	s := string(data)
	for _, want := range []string{`"dependent"`, `"dependencies": []`, `"flakePath": "packages.x86_64-linux.c"`, `"drvName": "bbb-b.drv"`} {
		if !strings.Contains(s, want) {
			t.Errorf("JSON missing %s:\n%s", want, s)
		}
	}
	again, _ := MarshalJSON(sampleMap(t))
	if !bytes.Equal(data, again) {
		t.Error("MarshalJSON should be deterministic")
	}

	empty, err := MarshalJSON(nil)
	if err != nil || string(empty) != "[]\n" {
		t.Errorf("MarshalJSON(nil) = %q, %v", empty, err)
	}
}

func TestToDOT(t *testing.T) {
	dot := ToDOT(sampleMap(t))

	if !strings.HasPrefix(dot, "digraph G {") {
		t.Errorf("DOT should start with digraph:\n%s", dot)
	}
	for _, want := range []string{
		`"/nix/store/aaa-a.drv" [label="packages.x86_64-linux.a"];`,
		`"/nix/store/aaa-a.drv" -> "/nix/store/bbb-b.drv";`,
		`"/nix/store/bbb-b.drv" -> "/nix/store/ccc-c.drv";`,
	} {
		if !strings.Contains(dot, want) {
			t.Errorf("DOT missing %s:\n%s", want, dot)
		}
	}
	if strings.Contains(dot, `"/nix/store/aaa-a.drv" -> "/nix/store/ccc-c.drv"`) {
		t.Error("DOT should only contain map edges")
	}
}

func TestToDOTIsolated(t *testing.T) {
	m := depmap.DependencyMap{{Dependent: drv(t, "x.drv", "checks.x86_64-linux.x"), Dependencies: nil}}
	if !strings.Contains(ToDOT(m), "dashed") {
		t.Error("isolated derivations should be dashed")
	}
}

func TestRenderText(t *testing.T) {
	data, err := Render(sampleMap(t), FormatText)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(string(data), "packages.x86_64-linux.a") {
		t.Errorf("Render(text) = %q", data)
	}
	if _, err := Render(sampleMap(t), "yaml"); err == nil {
		t.Error("Render(yaml) should fail")
	}
}

func TestNormalizeViewBox(t *testing.T) {
	in := []byte(`<svg width="100pt" height="50pt" viewBox="0.00 0.00 100.00 50.00" xmlns="http://www.w3.org/2000/svg"><g/></svg>`)
	out := string(normalizeViewBox(in))
	if !strings.Contains(out, `viewBox="0 0 100.00 50.00" width="100" height="50"`) {
		t.Errorf("normalizeViewBox() = %s", out)
	}
	plain := []byte(`<svg><g/></svg>`)
	if !bytes.Equal(normalizeViewBox(plain), plain) {
		t.Error("svg without viewBox should be unchanged")
	}
}

func TestRenderSVG(t *testing.T) {
	svg, err := RenderSVG(ToDOT(sampleMap(t)))
	if err != nil {
		t.Fatalf("RenderSVG() error = %v", err)
	}
	if !strings.Contains(string(svg), "<svg") {
		t.Error("RenderSVG output should contain an svg element")
	}
	// Graphviz escapes '-' in text elements as &#45;.
	if text := html.UnescapeString(string(svg)); !strings.Contains(text, "packages.x86_64-linux.b") {
		t.Error("RenderSVG output should contain node labels")
	}
}

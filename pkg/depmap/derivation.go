package depmap

import (
	"cmp"
	"path"
	"strings"

	derrors "github.com/matzehuels/drvgraph/pkg/errors"
)

// Derivation is a tracked flake output derivation.
type Derivation struct {
	DrvPath   string `json:"drvPath"`   // Store path, e.g. /nix/store/<hash>-hello-2.12.drv
	FlakePath string `json:"flakePath"` // Attribute path inside the flake, e.g. packages.x86_64-linux.hello
	DrvName   string `json:"drvName"`   // Final segment of DrvPath, used as graph node name
}

// NewDerivation creates a Derivation, deriving DrvName from drvPath.
// It fails if drvPath has no final path segment.
func NewDerivation(drvPath, flakePath string) (Derivation, error) {
	name := path.Base(strings.TrimSpace(drvPath))
	if name == "." || name == "/" || name == "" {
		return Derivation{}, derrors.New(derrors.ErrCodeInvalidInput, "could not get file name from drv path %q", drvPath)
	}
	return Derivation{DrvPath: drvPath, FlakePath: flakePath, DrvName: name}, nil
}

// Compare orders derivations by DrvPath, then FlakePath, then DrvName.
func (d Derivation) Compare(o Derivation) int {
	return cmp.Or(
		cmp.Compare(d.DrvPath, o.DrvPath),
		cmp.Compare(d.FlakePath, o.FlakePath),
		cmp.Compare(d.DrvName, o.DrvName),
	)
}

// String returns the flake attribute path, or the drv name if it is unset.
func (d Derivation) String() string {
	if d.FlakePath != "" {
		return d.FlakePath
	}
	return d.DrvName
}

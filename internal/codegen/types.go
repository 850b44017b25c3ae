// Package codegen holds the closed set of generation types and the results they produce.
package codegen

import (
	"codegen-app/internal/apperr"
	"fmt"
)

// Type is the generation type tag recorded on an application.
type Type string

const (
	TypeSingleFile Type = "singlefile"
	TypeMultiFile  Type = "multifile"
	TypeFramework  Type = "framework"
)

type typeSpec struct {
	requiresBuild bool
}

// specs must list every Type. TestTypeSpecsCoverAllTypes guards it.
var specs = map[Type]typeSpec{
	TypeSingleFile: {requiresBuild: false},
	TypeMultiFile:  {requiresBuild: false},
	TypeFramework:  {requiresBuild: true},
}

// Types returns every known generation type.
func Types() []Type {
	return []Type{TypeSingleFile, TypeMultiFile, TypeFramework}
}

// ParseType resolves a stored tag into a Type.
func ParseType(tag string) (Type, error) {
	t := Type(tag)
	if _, ok := specs[t]; !ok {
		return "", fmt.Errorf("%w: unknown generation type %q", apperr.ErrValidation, tag)
	}
	return t, nil
}

// RequiresBuild reports whether a materialized tree of this type must be built before publishing.
func (t Type) RequiresBuild() bool {
	return specs[t].requiresBuild
}

// DirName is the directory name a result of this type is materialized under.
func (t Type) DirName(appID string) string {
	return string(t) + "_" + appID
}

func (t Type) String() string {
	return string(t)
}

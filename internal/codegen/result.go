package codegen

// Visitor has one method per result variant. Adding a variant adds a method here, which
// breaks every handler until it handles the new variant.
type Visitor interface {
	VisitSingleFile(r *SingleFile) error
	VisitMultiFile(r *MultiFile) error
	VisitFramework(r *FrameworkProject) error
}

// Result is a generation result produced from a completed assistant turn.
type Result interface {
	Type() Type
	// Empty reports whether the result carries nothing to write.
	Empty() bool
	Accept(v Visitor) error
}

// File is one (relative path, content) pair of a multi-file result.
type File struct {
	Path    string
	Content string
}

// SingleFile is a single text blob, typically one HTML page.
type SingleFile struct {
	Content string
}

func (r *SingleFile) Type() Type             { return TypeSingleFile }
func (r *SingleFile) Empty() bool            { return r == nil || r.Content == "" }
func (r *SingleFile) Accept(v Visitor) error { return v.VisitSingleFile(r) }

// MultiFile is an ordered set of files written with their relative layout preserved.
type MultiFile struct {
	Files []File
}

func (r *MultiFile) Type() Type             { return TypeMultiFile }
func (r *MultiFile) Empty() bool            { return r == nil || len(r.Files) == 0 }
func (r *MultiFile) Accept(v Visitor) error { return v.VisitMultiFile(r) }

// FrameworkProject is a project skeleton that needs an external build before it can be served.
type FrameworkProject struct {
	Files []File
}

func (r *FrameworkProject) Type() Type             { return TypeFramework }
func (r *FrameworkProject) Empty() bool            { return r == nil || len(r.Files) == 0 }
func (r *FrameworkProject) Accept(v Visitor) error { return v.VisitFramework(r) }

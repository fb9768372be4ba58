package datagraph

import (
	"fmt"
	"strings"
)

// ID is the process-unique identity the graph assigns to an object on
// insertion. Objects refer to each other only through IDs.
type ID uint64

// NoID is the zero identity. A reference holding NoID points at nothing.
const NoID ID = 0

// Separator joins path components in string form.
const Separator = "/"

// Path addresses one object by the names on the way down from the root. The
// empty path is the root itself.
type Path []string

// NewPath builds a path from names without validating them.
func NewPath(names ...string) Path {
	return append(Path(nil), names...)
}

// ParsePath parses "/Data/Out" style strings. A leading separator is
// optional; "" and "/" are the root. Empty components are rejected.
func ParsePath(s string) (Path, error) {
	trimmed := strings.TrimPrefix(s, Separator)
	if trimmed == "" {
		return Path{}, nil
	}
	parts := strings.Split(trimmed, Separator)
	for _, name := range parts {
		if err := ValidateName(name); err != nil {
			return nil, fmt.Errorf("path %q: %w", s, err)
		}
	}
	return Path(parts), nil
}

// MustParsePath is ParsePath for literals; it panics on malformed input.
func MustParsePath(s string) Path {
	p, err := ParsePath(s)
	if err != nil {
		panic(err)
	}
	return p
}

// ValidateName reports whether name is usable for an object.
func ValidateName(name string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("%w: name must not be empty", ErrInvalidName)
	}
	if strings.Contains(name, Separator) {
		return fmt.Errorf("%w: %q contains %q", ErrInvalidName, name, Separator)
	}
	return nil
}

func (p Path) String() string {
	return Separator + strings.Join(p, Separator)
}

// IsRoot reports whether p addresses the root.
func (p Path) IsRoot() bool { return len(p) == 0 }

// Name returns the last component, or "" for the root.
func (p Path) Name() string {
	if len(p) == 0 {
		return ""
	}
	return p[len(p)-1]
}

// Parent returns p without its last component.
func (p Path) Parent() Path {
	if len(p) == 0 {
		return Path{}
	}
	return NewPath(p[:len(p)-1]...)
}

// Child returns a new path extended by name.
func (p Path) Child(name string) Path {
	out := make(Path, len(p), len(p)+1)
	copy(out, p)
	return append(out, name)
}

// WithName returns p with its last component replaced.
func (p Path) WithName(name string) Path {
	if len(p) == 0 {
		return Path{name}
	}
	return p.Parent().Child(name)
}

// Equal reports component-wise equality.
func (p Path) Equal(other Path) bool {
	if len(p) != len(other) {
		return false
	}
	for i := range p {
		if p[i] != other[i] {
			return false
		}
	}
	return true
}

// HasPrefix reports whether prefix addresses p or one of its ancestors.
func (p Path) HasPrefix(prefix Path) bool {
	if len(prefix) > len(p) {
		return false
	}
	return Path(p[:len(prefix)]).Equal(prefix)
}

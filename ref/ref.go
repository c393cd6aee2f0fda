// Package ref implements the four-part reference strings ("kind/id/arch/branch")
// used to name runtimes and applications in the image index and local store.
package ref

import (
	"errors"
	"fmt"
	"strings"
)

// Kind is the first component of a Ref: either "runtime" or "app".
type Kind string

const (
	KindRuntime Kind = "runtime"
	KindApp     Kind = "app"
)

// Ref is a validated reference string of the form "kind/id/arch/branch",
// e.g. "app/org.example.Editor/x86_64/stable" or
// "runtime/org.example.Platform/aarch64/24.08".
//
// The zero value is not a valid Ref; use Parse or New to construct one.
type Ref struct {
	raw string
}

// Parse validates s and returns the corresponding Ref.
//
// A valid reference has exactly four non-empty, slash-separated parts, and
// the first part must be "runtime" or "app".
func Parse(s string) (Ref, error) {
	parts := strings.Split(s, "/")
	if len(parts) != 4 {
		return Ref{}, fmt.Errorf("ref %q: expected 4 slash-separated parts, got %d", s, len(parts))
	}

	for i, p := range parts {
		if p == "" {
			return Ref{}, fmt.Errorf("ref %q: part %d is empty", s, i)
		}
	}

	switch Kind(parts[0]) {
	case KindRuntime, KindApp:
	default:
		return Ref{}, fmt.Errorf("ref %q: first part must be %q or %q, got %q", s, KindRuntime, KindApp, parts[0])
	}

	return Ref{raw: s}, nil
}

// New builds a Ref from its parts by formatting them as
// kind/id/arch/branch and running the result through Parse, so the parts are
// validated exactly as a parsed string would be.
func New(kind Kind, id, arch, branch string) (Ref, error) {
	return Parse(fmt.Sprintf("%s/%s/%s/%s", kind, id, arch, branch))
}

// NewRuntime is a convenience for New(KindRuntime, ...).
func NewRuntime(id, arch, branch string) (Ref, error) {
	return New(KindRuntime, id, arch, branch)
}

// String returns the canonical "kind/id/arch/branch" form.
func (r Ref) String() string {
	return r.raw
}

// IsZero reports whether r is the unvalidated zero value.
func (r Ref) IsZero() bool {
	return r.raw == ""
}

func (r Ref) part(n int) string {
	if r.IsZero() {
		return ""
	}

	return strings.Split(r.raw, "/")[n]
}

// Kind returns the reference's kind ("runtime" or "app").
func (r Ref) Kind() Kind { return Kind(r.part(0)) }

// ID returns the reference's id, e.g. "org.example.Editor".
func (r Ref) ID() string { return r.part(1) }

// Arch returns the reference's architecture, e.g. "x86_64".
func (r Ref) Arch() string { return r.part(2) }

// Branch returns the reference's branch, e.g. "stable" or "24.08".
func (r Ref) Branch() string { return r.part(3) }

// IsApp reports whether this is an "app/..." reference.
func (r Ref) IsApp() bool { return r.Kind() == KindApp }

// IsRuntime reports whether this is a "runtime/..." reference.
func (r Ref) IsRuntime() bool { return r.Kind() == KindRuntime }

// MarshalText implements encoding.TextMarshaler, so Ref can be used directly
// as a JSON object key or value.
func (r Ref) MarshalText() ([]byte, error) {
	if r.IsZero() {
		return nil, errors.New("ref: cannot marshal zero value")
	}

	return []byte(r.raw), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (r *Ref) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}

	*r = parsed

	return nil
}

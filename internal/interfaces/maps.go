package interfaces

import (
	"context"

	"github.com/ternarybob/mapcheck/internal/models"
)

// MapsClient is the mapping library entry point (the google.maps namespace).
// Implementations only read from the library; they never mutate it.
type MapsClient interface {
	// Loaded reports whether the namespace and its maps member both exist.
	Loaded(ctx context.Context) (bool, error)

	// Version returns the library version string.
	Version(ctx context.Context) (string, error)

	// NewMap constructs a map widget bound to el.
	// A non-nil error means the constructor raised; its message is reported verbatim.
	NewMap(ctx context.Context, el Element, opts models.MapOptions) error

	// HasLibrary reports whether an optional sub-capability (e.g. "places") is loaded.
	HasLibrary(ctx context.Context, name string) (bool, error)
}

// Element is an opaque handle to a container created by a Surface
type Element interface {
	ID() string
}

// Surface is the document the probe element is created in
type Surface interface {
	CreateElement(ctx context.Context, spec models.ElementSpec) (Element, error)
	Attach(ctx context.Context, el Element) error
	Detach(ctx context.Context, el Element) error
}

// Sink receives formatted diagnostic lines. Sinks are write-only.
type Sink interface {
	Println(line string)
}

// Backend pairs a MapsClient with the Surface it renders into
type Backend interface {
	Name() string
	Open(ctx context.Context) (MapsClient, Surface, error)
	Close() error
}

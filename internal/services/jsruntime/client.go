package jsruntime

import (
	"context"
	"errors"
	"fmt"

	"github.com/dop251/goja"
	"github.com/ternarybob/mapcheck/internal/interfaces"
	"github.com/ternarybob/mapcheck/internal/models"
)

// Client reads the google.maps namespace defined by scripts loaded into a Runtime
type Client struct {
	rt *Runtime
}

// NewClient creates a client over a runtime
func NewClient(rt *Runtime) *Client {
	return &Client{rt: rt}
}

// maps returns google.maps, or nil when either level is missing
func (c *Client) maps(vm *goja.Runtime) *goja.Object {
	google := vm.Get("google")
	if !present(google) {
		return nil
	}
	obj, ok := google.(*goja.Object)
	if !ok {
		return nil
	}
	m := obj.Get("maps")
	if !present(m) {
		return nil
	}
	mo, _ := m.(*goja.Object)
	return mo
}

// Loaded reports whether google and google.maps are both defined
func (c *Client) Loaded(ctx context.Context) (bool, error) {
	var loaded bool
	err := c.rt.guarded(ctx, func(vm *goja.Runtime) error {
		loaded = c.maps(vm) != nil
		return nil
	})
	return loaded, err
}

// Version returns google.maps.version
func (c *Client) Version(ctx context.Context) (string, error) {
	var version string
	err := c.rt.guarded(ctx, func(vm *goja.Runtime) error {
		m := c.maps(vm)
		if m == nil {
			return errors.New("google.maps is not defined")
		}
		if v := m.Get("version"); present(v) {
			version = v.String()
		}
		return nil
	})
	return version, err
}

// NewMap invokes new google.maps.Map(el, opts).
// A thrown exception is returned as an error carrying its message.
func (c *Client) NewMap(ctx context.Context, el interfaces.Element, opts models.MapOptions) error {
	target, ok := el.(*element)
	if !ok {
		return fmt.Errorf("element %s was not created by this runtime", el.ID())
	}

	return c.rt.guarded(ctx, func(vm *goja.Runtime) error {
		m := c.maps(vm)
		if m == nil {
			return errors.New("google.maps is not defined")
		}
		ctor := m.Get("Map")
		if _, ok := goja.AssertConstructor(ctor); !ok {
			return errors.New("google.maps.Map is not a constructor")
		}

		options := vm.ToValue(map[string]interface{}{
			"center": map[string]interface{}{
				"lat": opts.Center.Lat,
				"lng": opts.Center.Lng,
			},
			"zoom": opts.Zoom,
		})

		if _, err := vm.New(ctor, target.object, options); err != nil {
			return errors.New(exceptionMessage(err))
		}
		return nil
	})
}

// HasLibrary reports whether google.maps[name] is defined
func (c *Client) HasLibrary(ctx context.Context, name string) (bool, error) {
	var has bool
	err := c.rt.guarded(ctx, func(vm *goja.Runtime) error {
		if m := c.maps(vm); m != nil {
			has = present(m.Get(name))
		}
		return nil
	})
	return has, err
}

package jsruntime

import (
	"context"
	"fmt"

	"github.com/dop251/goja"
	"github.com/ternarybob/mapcheck/internal/common"
	"github.com/ternarybob/mapcheck/internal/interfaces"
	"github.com/ternarybob/mapcheck/internal/models"
)

type element struct {
	id     string
	object *goja.Object
}

func (e *element) ID() string { return e.id }

// Surface creates probe elements in the runtime's document shim
type Surface struct {
	rt *Runtime
}

// NewSurface creates a surface over a runtime
func NewSurface(rt *Runtime) *Surface {
	return &Surface{rt: rt}
}

// CreateElement creates and sizes a detached element
func (s *Surface) CreateElement(ctx context.Context, spec models.ElementSpec) (interfaces.Element, error) {
	var el *element
	err := s.rt.guarded(ctx, func(vm *goja.Runtime) error {
		obj := s.rt.document.CreateElement(spec.Tag)
		id := common.NewProbeID()
		obj.Set("id", id)
		style := obj.Get("style").(*goja.Object)
		style.Set("width", spec.Width)
		style.Set("height", spec.Height)
		el = &element{id: id, object: obj}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return el, nil
}

// Attach appends the element to document.body
func (s *Surface) Attach(ctx context.Context, el interfaces.Element) error {
	target, err := s.own(el)
	if err != nil {
		return err
	}
	return s.rt.guarded(ctx, func(vm *goja.Runtime) error {
		s.rt.document.AppendChild(target.object)
		return nil
	})
}

// Detach removes the element from document.body; detaching a detached element is a no-op
func (s *Surface) Detach(ctx context.Context, el interfaces.Element) error {
	target, err := s.own(el)
	if err != nil {
		return err
	}
	return s.rt.guarded(ctx, func(vm *goja.Runtime) error {
		s.rt.document.RemoveChild(target.object)
		return nil
	})
}

func (s *Surface) own(el interfaces.Element) (*element, error) {
	target, ok := el.(*element)
	if !ok {
		return nil, fmt.Errorf("element %s was not created by this runtime", el.ID())
	}
	return target, nil
}

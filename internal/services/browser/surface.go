package browser

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ternarybob/mapcheck/internal/common"
	"github.com/ternarybob/mapcheck/internal/interfaces"
	"github.com/ternarybob/mapcheck/internal/models"
)

type probe struct {
	id string
}

func (p *probe) ID() string { return p.id }

// Surface creates probe elements in the page DOM.
// Created elements are tracked in window.__mapcheckProbes until detached.
type Surface struct {
	session *Session
}

// NewSurface creates a surface over a started session
func NewSurface(session *Session) *Surface {
	return &Surface{session: session}
}

// CreateElement creates and sizes a detached element
func (s *Surface) CreateElement(ctx context.Context, spec models.ElementSpec) (interfaces.Element, error) {
	id := common.NewProbeID()
	args, err := json.Marshal(map[string]string{
		"id":     id,
		"tag":    spec.Tag,
		"width":  spec.Width,
		"height": spec.Height,
	})
	if err != nil {
		return nil, err
	}

	expr := fmt.Sprintf(`(() => {
  const a = %s;
  window.__mapcheckProbes = window.__mapcheckProbes || {};
  const el = document.createElement(a.tag);
  el.id = a.id;
  el.style.width = a.width;
  el.style.height = a.height;
  window.__mapcheckProbes[a.id] = el;
  return el.id;
})()`, args)

	var created string
	if err := s.session.Evaluate(ctx, expr, &created); err != nil {
		return nil, fmt.Errorf("failed to create element: %w", err)
	}
	return &probe{id: created}, nil
}

// Attach appends the element to document.body
func (s *Surface) Attach(ctx context.Context, el interfaces.Element) error {
	id, err := json.Marshal(el.ID())
	if err != nil {
		return err
	}

	expr := fmt.Sprintf(`(() => {
  const el = (window.__mapcheckProbes || {})[%s];
  if (!el) { throw new Error("unknown probe element"); }
  document.body.appendChild(el);
  return true;
})()`, id)

	var ok bool
	if err := s.session.Evaluate(ctx, expr, &ok); err != nil {
		return fmt.Errorf("failed to attach element %s: %w", el.ID(), err)
	}
	return nil
}

// Detach removes the element from the document and forgets it
func (s *Surface) Detach(ctx context.Context, el interfaces.Element) error {
	id, err := json.Marshal(el.ID())
	if err != nil {
		return err
	}

	expr := fmt.Sprintf(`(() => {
  const probes = window.__mapcheckProbes || {};
  const el = probes[%[1]s];
  delete probes[%[1]s];
  if (el && el.parentNode) { el.parentNode.removeChild(el); }
  return true;
})()`, id)

	var ok bool
	if err := s.session.Evaluate(ctx, expr, &ok); err != nil {
		return fmt.Errorf("failed to detach element %s: %w", el.ID(), err)
	}
	return nil
}

// Attached reports whether an element with the given id is currently in the document
func (s *Surface) Attached(ctx context.Context, id string) (bool, error) {
	key, err := json.Marshal(id)
	if err != nil {
		return false, err
	}

	var attached bool
	expr := fmt.Sprintf(`document.getElementById(%s) !== null`, key)
	if err := s.session.Evaluate(ctx, expr, &attached); err != nil {
		return false, err
	}
	return attached, nil
}

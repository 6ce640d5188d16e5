package browser

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ternarybob/mapcheck/internal/interfaces"
	"github.com/ternarybob/mapcheck/internal/models"
)

// Client reads the google.maps namespace of the page loaded in a Session
type Client struct {
	session *Session
}

// NewClient creates a client over a started session
func NewClient(session *Session) *Client {
	return &Client{session: session}
}

// Loaded reports whether google and google.maps are both defined
func (c *Client) Loaded(ctx context.Context) (bool, error) {
	var loaded bool
	if err := c.session.Evaluate(ctx, `typeof google !== 'undefined' && !!google && !!google.maps`, &loaded); err != nil {
		return false, fmt.Errorf("failed to evaluate namespace presence: %w", err)
	}
	return loaded, nil
}

// Version returns google.maps.version
func (c *Client) Version(ctx context.Context) (string, error) {
	var version string
	if err := c.session.Evaluate(ctx, `String(google.maps.version)`, &version); err != nil {
		return "", fmt.Errorf("failed to read maps version: %w", err)
	}
	return version, nil
}

// NewMap constructs google.maps.Map on the probe element.
// Exceptions thrown by the constructor are caught in the page and returned as errors.
func (c *Client) NewMap(ctx context.Context, el interfaces.Element, opts models.MapOptions) error {
	id, err := json.Marshal(el.ID())
	if err != nil {
		return err
	}
	options, err := json.Marshal(opts)
	if err != nil {
		return fmt.Errorf("failed to encode map options: %w", err)
	}

	expr := fmt.Sprintf(`(() => {
  try {
    const el = window.__mapcheckProbes[%s];
    new google.maps.Map(el, %s);
    return "";
  } catch (error) {
    return String((error && error.message) || error || "unknown error");
  }
})()`, id, options)

	var message string
	if err := c.session.Evaluate(ctx, expr, &message); err != nil {
		return fmt.Errorf("failed to evaluate map constructor: %w", err)
	}
	if message != "" {
		return errors.New(message)
	}
	return nil
}

// HasLibrary reports whether google.maps[name] is defined
func (c *Client) HasLibrary(ctx context.Context, name string) (bool, error) {
	key, err := json.Marshal(name)
	if err != nil {
		return false, err
	}

	var present bool
	expr := fmt.Sprintf(`typeof google !== 'undefined' && !!google.maps && !!google.maps[%s]`, key)
	if err := c.session.Evaluate(ctx, expr, &present); err != nil {
		return false, fmt.Errorf("failed to evaluate library %s: %w", name, err)
	}
	return present, nil
}

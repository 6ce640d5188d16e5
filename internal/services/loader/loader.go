// Package loader builds the Maps JavaScript API bootstrap URL and the host
// page the browser backend renders the probe map into.
package loader

import (
	"bytes"
	"fmt"
	"html/template"
	"net/url"
	"sort"
	"strings"

	"github.com/ternarybob/mapcheck/internal/common"
)

// Loader describes one request for the Maps JavaScript API
type Loader struct {
	BaseURL   string
	APIKey    string
	Version   string
	Libraries []string
	Language  string
	Region    string
}

// New creates a loader from maps configuration and a resolved API key
func New(config common.MapsConfig, apiKey string) *Loader {
	return &Loader{
		BaseURL:   config.BaseURL,
		APIKey:    apiKey,
		Version:   config.Version,
		Libraries: config.Libraries,
		Language:  config.Language,
		Region:    config.Region,
	}
}

func (l *Loader) params(key string) url.Values {
	params := url.Values{}
	if key != "" {
		params.Set("key", key)
	}
	if l.Version != "" {
		params.Set("v", l.Version)
	}
	if libs := l.libraries(); len(libs) > 0 {
		params.Set("libraries", strings.Join(libs, ","))
	}
	if l.Language != "" {
		params.Set("language", l.Language)
	}
	if l.Region != "" {
		params.Set("region", l.Region)
	}
	return params
}

// libraries returns the de-duplicated, sorted library list
func (l *Loader) libraries() []string {
	seen := map[string]bool{}
	out := []string{}
	for _, lib := range l.Libraries {
		lib = strings.TrimSpace(lib)
		if lib == "" || seen[lib] {
			continue
		}
		seen[lib] = true
		out = append(out, lib)
	}
	sort.Strings(out)
	return out
}

// URL returns the script URL including the API key
func (l *Loader) URL() string {
	return fmt.Sprintf("%s?%s", l.BaseURL, l.params(l.APIKey).Encode())
}

// RedactedURL returns the script URL safe for logging
func (l *Loader) RedactedURL() string {
	params := l.params("")
	if l.APIKey != "" {
		params.Set("key", "***REDACTED***")
	}
	return fmt.Sprintf("%s?%s", l.BaseURL, params.Encode())
}

// Requests reports whether the loader asks for the named library
func (l *Loader) Requests(library string) bool {
	for _, lib := range l.libraries() {
		if lib == library {
			return true
		}
	}
	return false
}

var hostPage = template.Must(template.New("host").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>mapcheck</title>
<script>
window.__mapcheckProbes = {};
window.__mapcheckLoadError = "";
window.gm_authFailure = function () { window.__mapcheckLoadError = "authentication failure"; };
</script>
<script async src="{{.}}" onerror="window.__mapcheckLoadError = 'script load failed'"></script>
</head>
<body></body>
</html>
`))

// HostPage renders the HTML document that loads the Maps JavaScript API
func (l *Loader) HostPage() (string, error) {
	var buf bytes.Buffer
	if err := hostPage.Execute(&buf, l.URL()); err != nil {
		return "", fmt.Errorf("failed to render host page: %w", err)
	}
	return buf.String(), nil
}

// BlankPage renders a host page without any Maps script, used when no API key is configured
func BlankPage() string {
	return `<!DOCTYPE html><html><head><meta charset="utf-8"><title>mapcheck</title>` +
		`<script>window.__mapcheckProbes = {}; window.__mapcheckLoadError = "no api key";</script>` +
		`</head><body></body></html>`
}

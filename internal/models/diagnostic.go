package models

import "time"

// CheckStatus is the outcome of a single diagnostic check
type CheckStatus string

const (
	CheckPassed  CheckStatus = "pass"
	CheckWarning CheckStatus = "warn"
	CheckFailed  CheckStatus = "fail"
)

// Check names, in execution order
const (
	CheckLibraryLoaded   = "library_loaded"
	CheckMapConstruction = "map_construction"
	CheckPlacesAvailable = "places_available"
)

// PlacesLibrary is the optional sub-capability probed by the places check
const PlacesLibrary = "places"

// LatLng represents a geographic coordinate
type LatLng struct {
	Lat float64 `json:"lat" yaml:"lat"`
	Lng float64 `json:"lng" yaml:"lng"`
}

// MapOptions is the configuration object passed to the map widget constructor
type MapOptions struct {
	Center LatLng `json:"center" yaml:"center"`
	Zoom   int    `json:"zoom" yaml:"zoom"`
}

// ElementSpec describes the throwaway container created to host the probe map
type ElementSpec struct {
	Tag    string `json:"tag" yaml:"tag"`
	Width  string `json:"width" yaml:"width"`
	Height string `json:"height" yaml:"height"`
}

// Probe parameters. Bangkok, zoom 10.
var (
	ProbeCenter  = LatLng{Lat: 13.7563, Lng: 100.5018}
	ProbeZoom    = 10
	ProbeElement = ElementSpec{Tag: "div", Width: "100px", Height: "100px"}
)

// ProbeMapOptions returns the fixed options used by the map construction check
func ProbeMapOptions() MapOptions {
	return MapOptions{Center: ProbeCenter, Zoom: ProbeZoom}
}

// CheckResult captures a single diagnostic result
type CheckResult struct {
	Name     string        `json:"name" yaml:"name"`
	Status   CheckStatus   `json:"status" yaml:"status"`
	Message  string        `json:"message" yaml:"message"`
	Detail   string        `json:"detail,omitempty" yaml:"detail,omitempty"`
	Duration time.Duration `json:"duration" yaml:"duration"`
}

// Report aggregates the results of one diagnostic run
type Report struct {
	RunID      string        `json:"run_id" yaml:"run_id"`
	Backend    string        `json:"backend" yaml:"backend"`
	StartedAt  time.Time     `json:"started_at" yaml:"started_at"`
	FinishedAt time.Time     `json:"finished_at" yaml:"finished_at"`
	Version    string        `json:"version,omitempty" yaml:"version,omitempty"`
	Results    []CheckResult `json:"results" yaml:"results"`
	Lines      []string      `json:"lines" yaml:"lines"`
}

// HasFailures returns true if any check failed
func (r *Report) HasFailures() bool {
	for _, res := range r.Results {
		if res.Status == CheckFailed {
			return true
		}
	}
	return false
}

// HasWarnings returns true if any check produced a soft warning
func (r *Report) HasWarnings() bool {
	for _, res := range r.Results {
		if res.Status == CheckWarning {
			return true
		}
	}
	return false
}

// Result returns the named check result, or nil if the check did not run
func (r *Report) Result(name string) *CheckResult {
	for i := range r.Results {
		if r.Results[i].Name == name {
			return &r.Results[i]
		}
	}
	return nil
}

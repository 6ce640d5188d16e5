package common

import (
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/banner"
)

// PrintBanner displays the application banner and logs the resolved backend
func PrintBanner(config *Config, logger arbor.ILogger) {
	banner.PrintSimple("Mapcheck", GetVersion())

	logger.Debug().
		Str("backend", config.Backend.Name).
		Str("maps_version", config.Maps.Version).
		Strs("libraries", config.Maps.Libraries).
		Str("api_key", RedactKey(config.Maps.APIKey)).
		Msg("Resolved configuration (sanitized)")
}

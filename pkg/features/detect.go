package features

import (
	"github.com/japaniel/lexindex/pkg/logger"
	"github.com/japaniel/lexindex/pkg/tokenize"
)

// Capability is the feature provider chosen once at startup.
type Capability struct {
	Provider Provider
	// Degraded is set when the preferred analyzer could not be loaded.
	Degraded bool
}

// Detect picks the provider for language. ja uses kagome when the analyzer
// is supplied, everything else uses Rules.
func Detect(language string, ja *tokenize.Japanese, log *logger.Logger) Capability {
	log = logger.OrNop(log)
	switch language {
	case "ja":
		if ja == nil {
			log.Warn("japanese analyzer unavailable, linguistic features degraded")
			return Capability{Provider: Noop{}, Degraded: true}
		}
		return Capability{Provider: Kagome{Analyzer: ja}}
	default:
		return Capability{Provider: Rules{}}
	}
}

package hints

import (
	"codehint/internal/config"
	"codehint/internal/fragment"
	"codehint/internal/request"
	"codehint/internal/tracker"
)

// Options gathers the thresholds of every component the manager owns.
type Options struct {
	Request   request.Options
	Fragments fragment.Options
	Tracker   tracker.Options
	// DropStale turns stale replies into STALE_RESPONSE errors instead of
	// flagging them.
	DropStale bool
}

// DefaultOptions mirrors config.DefaultConfig.
func DefaultOptions() Options {
	return Options{
		Request:   request.DefaultOptions(),
		Fragments: fragment.DefaultOptions(),
		Tracker:   tracker.DefaultOptions(),
		DropStale: true,
	}
}

// OptionsFromConfig maps a loaded configuration onto manager options.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		Request: request.Options{
			LargeDocumentLines:   cfg.Documents.LargeDocumentLines,
			MaxFragmentDirtySpan: cfg.Documents.MaxFragmentDirtySpan,
			FragmentsEnabled:     cfg.Fragments.Enabled,
		},
		Fragments: fragment.Options{
			ScanBackLines:    cfg.Fragments.ScanBackLines,
			ScanForwardLines: cfg.Fragments.ScanForwardLines,
			Keywords:         cfg.Fragments.Keywords,
		},
		Tracker: tracker.Options{
			LargeDocumentLines: cfg.Documents.LargeDocumentLines,
			SyncDirtySpan:      cfg.Documents.SyncDirtySpan,
			Debounce:           cfg.SyncDebounce(),
			SyncTimeout:        cfg.RemoteTimeout(),
		},
		DropStale: cfg.Queries.DropStale,
	}
}

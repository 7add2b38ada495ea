package ir

// Version constants for the intermediate form and engine.
const (
	// TreeFormatVersion is the intermediate JSON format version.
	TreeFormatVersion = "1"

	// EngineVersion is the warp engine version.
	EngineVersion = "0.1.0"
)

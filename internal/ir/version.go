package ir

// Version constants for the program schema and engine.
const (
	// IRVersion is the program schema version.
	IRVersion = "1"

	// EngineVersion is the bprogram engine version.
	EngineVersion = "0.1.0"
)

package model

// Version constants for the persisted record layout and the engine.
const (
	// SchemaVersion is the persisted record layout version.
	SchemaVersion = "1"

	// EngineVersion is the pledge engine version.
	EngineVersion = "0.1.0"
)

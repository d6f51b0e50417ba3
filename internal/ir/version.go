package ir

// EngineVersion is the dsquery engine version.
const EngineVersion = "0.1.0"

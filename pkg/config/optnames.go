package config

// Flag names, referenced by both flag registration and viper lookups.
const (
	OptChunkSize    = "chunk-size"
	OptConnTimeout  = "connect-timeout"
	OptForce        = "force"
	OptLoggingLevel = "log-level"
	OptNoProgress   = "no-progress"
	OptRetries      = "retries"
	OptVerbose      = "verbose"
)

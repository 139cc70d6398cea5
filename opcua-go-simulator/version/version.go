package version

// These variables are populated at build time using -ldflags.
var (
	Version   = "dev"
	BuildDate = "unknown"
)

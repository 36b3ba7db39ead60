package config

// Version is the listengraph binary version.
// Set at build time via: -ldflags "-X github.com/persistorai/listengraph/internal/config.Version=<tag>"
// Defaults to "dev" when built without ldflags.
var Version = "dev"

package wflow

// Version is the release of the module. Builds override it with
// -ldflags "-X github.com/aretw0/wflow.Version=...".
var Version = "0.1.0-dev"

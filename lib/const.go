package lib

// Version of remotecli, set at link time with
// -ldflags "-X github.com/remotecli/remotecli/lib.Version=...".
var Version = "unknown"

// UserAgent names this client to remote services.
func UserAgent() string {
	return "remotecli/" + Version
}

// Package misc keeps build time program identification.
package misc

// set with -ldflags at build time
var (
	appName = "fontpipe"
	version = "dev"
	gitHash = "unknown"
)

func GetAppName() string {
	return appName
}

func GetVersion() string {
	return version
}

func GetGitHash() string {
	return gitHash
}

// GetUserAgent returns value used for outgoing HTTP requests.
func GetUserAgent() string {
	return appName + "/" + version
}

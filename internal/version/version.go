package version

import "runtime"

// Name is the program name shown in version output.
const Name = "voicecmd"

var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

func String() string {
	return Name + " " + Version + " (commit=" + Commit + ", date=" + Date + ", go=" + runtime.Version() + ")"
}

// UserAgent identifies model downloads.
func UserAgent() string {
	return Name + "/" + Version
}

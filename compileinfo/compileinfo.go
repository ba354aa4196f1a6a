// Package compileinfo reports the build provenance of the running binary so
// that a results table can be traced back to the code that produced it.
package compileinfo

import (
	"fmt"
	"os"
	"runtime/debug"
)

type BuildInfo struct {
	MainPath   string
	GoVersion  string
	Revision   string
	CommitTime string
	Dirty      bool
}

func (b BuildInfo) String() string {
	dirty := ""
	if b.Dirty {
		dirty = " The working tree was modified after that commit."
	}

	return fmt.Sprintf("This %s binary was built with %s at commit %s (%s).%s", b.MainPath, b.GoVersion, b.Revision, b.CommitTime, dirty)
}

func Get() BuildInfo {
	out := BuildInfo{}

	bi, ok := debug.ReadBuildInfo()
	if !ok {
		return out
	}

	out.MainPath = bi.Path
	out.GoVersion = bi.GoVersion
	for _, setting := range bi.Settings {
		switch setting.Key {
		case "vcs.revision":
			out.Revision = setting.Value
		case "vcs.time":
			out.CommitTime = setting.Value
		case "vcs.modified":
			out.Dirty = setting.Value == "true"
		}
	}

	return out
}

func PrintToStdErr() {
	fmt.Fprintf(os.Stderr, "%s\n", Get())
}

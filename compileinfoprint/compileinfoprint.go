// compileinfoprint is imported for the side effect of printing build
// provenance to os.Stderr
package compileinfoprint

import "github.com/fcrlab/segsweep/compileinfo"

func init() {
	compileinfo.PrintToStdErr()
}

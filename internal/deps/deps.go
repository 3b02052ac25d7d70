package deps

import (
	"fmt"
	"os/exec"
	"strings"
)

// Requirement is an external binary framewatch may shell out to.
type Requirement struct {
	Name        string
	Command     string
	Description string
	Optional    bool
}

// Status is the result of resolving one Requirement on PATH.
type Status struct {
	Requirement
	Path      string
	Available bool
	Detail    string
}

// ArchiveRequirements lists the binaries the archive encoder shells out to.
// They are only needed when output.archive_encode is set.
func ArchiveRequirements() []Requirement {
	return []Requirement{
		{Name: "FFmpeg", Command: "ffmpeg", Description: "Re-encodes the run video at stop"},
		{Name: "FFprobe", Command: "ffprobe", Description: "Inspects the run video before encoding"},
	}
}

// CheckBinaries resolves each requirement and reports where it was found.
func CheckBinaries(requirements []Requirement) []Status {
	results := make([]Status, 0, len(requirements))
	for _, req := range requirements {
		req.Command = strings.TrimSpace(req.Command)
		st := Status{Requirement: req}
		switch path, err := exec.LookPath(req.Command); {
		case req.Command == "":
			st.Detail = "command not configured"
		case err != nil:
			st.Detail = fmt.Sprintf("binary %q not found", req.Command)
		default:
			st.Path = path
			st.Available = true
		}
		results = append(results, st)
	}
	return results
}

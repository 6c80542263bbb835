// Package deps checks the availability of the external tools the stage
// workers shell out to.
package deps

import (
	"fmt"
	"os"
	"os/exec"
	"strings"
)

// Requirement names an external dependency and how to find it.
type Requirement struct {
	Name        string
	Command     string
	Description string
	Optional    bool
}

// Status reports whether a dependency was found.
type Status struct {
	Name        string
	Command     string
	Description string
	Optional    bool
	Available   bool
	Detail      string
}

// CheckBinaries resolves each requirement's command on PATH.
func CheckBinaries(requirements []Requirement) []Status {
	results := make([]Status, 0, len(requirements))
	for _, req := range requirements {
		command := strings.TrimSpace(req.Command)
		status := Status{
			Name:        req.Name,
			Command:     command,
			Description: strings.TrimSpace(req.Description),
			Optional:    req.Optional,
		}
		switch {
		case command == "":
			status.Detail = "command not configured"
		default:
			if _, err := exec.LookPath(command); err != nil {
				status.Detail = fmt.Sprintf("binary %q not found", command)
			} else {
				status.Available = true
			}
		}
		results = append(results, status)
	}
	return results
}

// CheckFile verifies that a regular file exists at path. Used for the
// transcription script, which is data for an interpreter rather than a
// binary on PATH.
func CheckFile(req Requirement) Status {
	path := strings.TrimSpace(req.Command)
	status := Status{
		Name:        req.Name,
		Command:     path,
		Description: strings.TrimSpace(req.Description),
		Optional:    req.Optional,
	}
	if path == "" {
		status.Detail = "path not configured"
		return status
	}
	info, err := os.Stat(path)
	if err != nil {
		status.Detail = fmt.Sprintf("file %q not found", path)
		return status
	}
	if info.IsDir() {
		status.Detail = fmt.Sprintf("%q is a directory", path)
		return status
	}
	status.Available = true
	return status
}

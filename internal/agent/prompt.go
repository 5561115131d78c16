package agent

import (
	"fmt"

	"github.com/tlane/browserpilot/internal/model"
)

// BuildInstruction assembles the effective instruction sent to the driver:
// the base task description, prefixed with a navigation step when a starting
// URL is set, and suffixed with a structured-output directive when a schema
// is supplied.
func BuildInstruction(req model.TaskRequest) string {
	instruction := req.Task
	if req.URL != "" {
		instruction = fmt.Sprintf("Go to %s. Then: %s", req.URL, req.Task)
	}
	if len(req.StructuredOutput) > 0 {
		instruction += fmt.Sprintf("\n\nReturn the result as JSON matching this schema: %s", req.StructuredOutput)
	}
	return instruction
}

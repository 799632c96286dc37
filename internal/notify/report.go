package notify

import (
	"fmt"
	"strings"

	"fleetwatch/internal/models"
)

// RenderReport builds the plain-text incident report included with every
// notification batch.
func RenderReport(incidents []*models.Incident, alertsByIncident map[string][]*models.AlertEvent) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Fleetwatch incident report\n\n")
	fmt.Fprintf(&b, "New incidents detected: %d\n", len(incidents))
	b.WriteString(strings.Repeat("=", 60) + "\n")

	for _, inc := range incidents {
		fmt.Fprintf(&b, "\nIncident %s\n", inc.ID)
		fmt.Fprintf(&b, "Component  : %s\n", inc.ComponentCode)
		fmt.Fprintf(&b, "Severity   : %s\n", inc.Severity)
		fmt.Fprintf(&b, "Start tick : %d\n", inc.StartTick)
		fmt.Fprintf(&b, "Summary    : %s\n", inc.Summary)
		b.WriteString("Contributing alerts:\n")

		for _, a := range alertsByIncident[inc.ID] {
			fmt.Fprintf(&b, "  - %s | severity=%s | duration=%d | peak=%g\n",
				a.SignalCode, a.Severity, a.Duration(), a.PeakValue)
		}
		b.WriteString(strings.Repeat("-", 60) + "\n")
	}

	return b.String()
}

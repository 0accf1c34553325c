package app

import (
	"fmt"
	"strings"
	"time"

	"zapsender/internal/dispatch"
)

// FormatReport renders the end-of-run summary sent to the operator chat.
func FormatReport(runID string, t dispatch.Tally, runErr error, took time.Duration) string {
	var b strings.Builder
	if runErr != nil {
		b.WriteString("zapsender run aborted\n")
	} else {
		b.WriteString("zapsender run finished\n")
	}
	fmt.Fprintf(&b, "- run=%s\n", runID)
	fmt.Fprintf(&b, "- sent=%d failed=%d\n", t.Sent, t.Failed)
	fmt.Fprintf(&b, "- not_on_whatsapp=%d processed=%d/%d\n", t.Missing, t.Total, t.Loaded)
	if t.RejectedNoPhone > 0 || t.RejectedNoSchedule > 0 {
		fmt.Fprintf(&b, "- skipped: %d without phone, %d without schedule\n", t.RejectedNoPhone, t.RejectedNoSchedule)
	}
	fmt.Fprintf(&b, "- took=%s", took.Round(time.Second))
	if runErr != nil {
		fmt.Fprintf(&b, "\n- err=%v", runErr)
	}
	return b.String()
}

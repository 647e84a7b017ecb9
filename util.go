package rankmaniac

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

const nameTimeLayout = "01-02-2006 15:04:05"

// jobName is the display name of a job flow, 'tenant MM-DD-YYYY HH:MM:SS'.
func jobName(tenant string, t time.Time) string {
	return fmt.Sprintf("%s %s", tenant, t.Format(nameTimeLayout))
}

// stepName extends jobName with iteration and stage so that steps built
// within the same second stay distinguishable.
func stepName(tenant string, t time.Time, iteration int, stage Stage) string {
	return fmt.Sprintf("%s iter%d %s", jobName(tenant, t), iteration, stage)
}

// randomName returns a short identifier for one orchestrator instance.
func randomName() string {
	return uuid.New().String()[:8]
}

package output

import (
	"context"
	"fmt"
	"time"
)

func StatusBar(ctx context.Context, refreshRate time.Duration, printF func()) {
	ticker := time.NewTicker(refreshRate)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			printF()
		case <-ctx.Done():
			return
		}
	}
}

func PrettySampleStatus(rate uint64, keys, stacks, ringUtil int) string {
	return fmt.Sprintf("\r%-20s %-25s %-25s %-30s",
		fmt.Sprintf("Samples/s: %4d", rate),
		fmt.Sprintf("Distinct keys: %6d", keys),
		fmt.Sprintf("Distinct stacks: %6d", stacks),
		fmt.Sprintf("Events Buffer: [%s] %3d%%", ProgressBar(ringUtil, 10), ringUtil),
	)
}

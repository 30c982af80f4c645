package status

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/maxgio92/stackprof/internal/settings"
	"github.com/maxgio92/stackprof/pkg/cmd/common"
	"github.com/maxgio92/stackprof/pkg/cmd/options"
)

func NewCommand(_ *options.Options) *cobra.Command {
	cmd := &cobra.Command{
		Use:               "status",
		Short:             fmt.Sprintf("Check the %s profiler status", settings.CmdName),
		DisableAutoGenTag: true,
		SilenceUsage:      true,
		Run:               run,
	}

	return cmd
}

func run(_ *cobra.Command, _ []string) {
	if common.IsDaemonRunning() {
		pidData, _ := os.ReadFile(settings.PidFile)
		fmt.Printf("%s is running (PID %s)\n", settings.CmdName, pidData)
	} else {
		fmt.Printf("%s is not running\n", settings.CmdName)
	}
}

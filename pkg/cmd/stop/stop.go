package stop

import (
	"fmt"
	"os"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/maxgio92/stackprof/internal/settings"
	"github.com/maxgio92/stackprof/pkg/cmd/options"
)

func NewCommand(_ *options.Options) *cobra.Command {
	cmd := &cobra.Command{
		Use:               "stop",
		Short:             fmt.Sprintf("Stop the %s profiler daemon", settings.CmdName),
		DisableAutoGenTag: true,
		SilenceUsage:      true,
		Run:               run,
	}

	return cmd
}

func run(_ *cobra.Command, _ []string) {
	pidData, err := os.ReadFile(settings.PidFile)
	if err != nil {
		fmt.Printf("%s not running or PID file not found\n", settings.CmdName)
		return
	}

	pid, err := strconv.Atoi(string(pidData))
	if err != nil {
		fmt.Println("Invalid PID file")
		return
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		fmt.Println("Process not found")
		return
	}

	if err := process.Signal(syscall.SIGTERM); err != nil {
		fmt.Printf("Failed to signal the daemon: %v\n", err)
		return
	}

	// Give the daemon a moment to flush its outputs and exit.
	for i := 0; i < 10; i++ {
		if process.Signal(syscall.Signal(0)) != nil {
			break
		}
		time.Sleep(200 * time.Millisecond)
	}

	os.Remove(settings.PidFile)
	fmt.Printf("%s stopped\n", settings.CmdName)
}

package common

import (
	"os"
	"os/exec"
	"strconv"
	"syscall"

	"github.com/pkg/errors"
	log "github.com/rs/zerolog"

	"github.com/maxgio92/stackprof/internal/settings"
)

func IsDaemonRunning() bool {
	pidData, err := os.ReadFile(settings.PidFile)
	if err != nil {
		return false
	}

	pid, err := strconv.Atoi(string(pidData))
	if err != nil {
		return false
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		return false
	}

	// Check if process exists
	return process.Signal(syscall.Signal(0)) == nil
}

// Daemonize re-executes the current binary detached from the terminal,
// with output redirected to the log file, and records its pid.
func Daemonize(logger log.Logger, args []string) error {
	if IsDaemonRunning() {
		logger.Info().Msg("daemon already running")
		return nil
	}

	cmd := exec.Command(os.Args[0], args...)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}

	if settings.LogFile != "" {
		f, err := os.OpenFile(settings.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
		if err != nil {
			return errors.Wrap(err, "failed to open log file")
		}
		cmd.Stdout = f
		cmd.Stderr = f
	}

	if err := cmd.Start(); err != nil {
		return errors.Wrapf(err, "failed to start %s", settings.CmdName)
	}

	if err := os.WriteFile(settings.PidFile, []byte(strconv.Itoa(cmd.Process.Pid)), 0644); err != nil {
		return errors.Wrap(err, "failed to write PID file")
	}

	return nil
}

package pidns

import (
	"fmt"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// Resolve returns the inode number of the innermost PID namespace the
// task lives in. The inode is stable for the namespace's lifetime and
// unique system-wide at a point in time, which makes it a grouping key
// for scoping samples to a container boundary.
func Resolve(pid int) (uint64, error) {
	return resolvePath(fmt.Sprintf("/proc/%d/ns/pid", pid))
}

// Self resolves the calling task's PID namespace.
func Self() (uint64, error) {
	return resolvePath("/proc/thread-self/ns/pid")
}

func resolvePath(path string) (uint64, error) {
	var st unix.Stat_t
	if err := unix.Stat(path, &st); err != nil {
		return 0, errors.Wrapf(err, "error resolving namespace %s", path)
	}

	return st.Ino, nil
}

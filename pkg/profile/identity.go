package profile

import (
	"unsafe"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// currentPidTgid mirrors the kernel's packed identity value: thread
// group id in the high 32 bits, thread id in the low 32 bits.
func currentPidTgid() uint64 {
	return uint64(unix.Getpid())<<32 | uint64(unix.Gettid())
}

func currentCPU() uint32 {
	var cpu uint32
	if _, _, errno := unix.RawSyscall(unix.SYS_GETCPU, uintptr(unsafe.Pointer(&cpu)), 0, 0); errno != 0 {
		return 0
	}

	return cpu
}

// currentComm reads the calling thread's short name, truncated and
// zero-padded to the fixed width. On failure the destination is left
// untouched; each caller applies its own policy.
func currentComm(comm *[TaskCommLen]byte) error {
	var name [TaskCommLen]byte
	if err := unix.Prctl(unix.PR_GET_NAME, uintptr(unsafe.Pointer(&name[0])), 0, 0, 0); err != nil {
		return errors.Wrap(err, "error reading thread name")
	}
	*comm = name

	return nil
}

package pidns_test

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/maxgio92/stackprof/pkg/pidns"
)

func TestSelf(t *testing.T) {
	inode, err := pidns.Self()
	require.NoError(t, err)
	require.NotZero(t, inode)

	// The inode is stable for the namespace's lifetime.
	again, err := pidns.Self()
	require.NoError(t, err)
	require.Equal(t, inode, again)
}

func TestResolve(t *testing.T) {
	self, err := pidns.Self()
	require.NoError(t, err)

	// The test process lives in the same namespace it resolves itself.
	byPid, err := pidns.Resolve(os.Getpid())
	require.NoError(t, err)
	require.Equal(t, self, byPid)
}

func TestResolve_AbsentTask(t *testing.T) {
	_, err := pidns.Resolve(-1)
	require.Error(t, err)
}

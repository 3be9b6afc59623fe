//go:build unix

package shutdown

import (
	"os"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rainbow-me/platform-shutdown/common/test"
)

func TestSignalTriggersShutdown(t *testing.T) {
	log, logs := test.NewObservedLogger()
	exits := &exitRecorder{}

	c, err := Register(Options{
		Events:     []string{"SIGUSR1"},
		Server:     &fakeDrainer{mode: drainSync},
		Logger:     log,
		DrainGrace: time.Second,
		Exit:       exits.Exit,
	})
	require.NoError(t, err)

	require.NoError(t, syscall.Kill(os.Getpid(), syscall.SIGUSR1))

	select {
	case <-c.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("signal did not trigger shutdown")
	}
	assert.Equal(t, []int{0}, exits.Codes())
	assert.Len(t, logs.FilterMessage("Shut down process initiated").All(), 1)
}

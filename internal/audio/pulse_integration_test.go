//go:build integration

package audio

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestPulseListDevicesIntegration(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	devices, err := NewPulseBackend("voicecmd-test").ListDevices(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, devices)
}

func TestPulseCalibrateDefaultIntegration(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	manager := NewManager(NewPulseBackend("voicecmd-test"), nil)
	handle, err := manager.Open(ctx, "default")
	require.NoError(t, err)
	defer handle.Close()

	require.NoError(t, handle.Calibrate(ctx, 500*time.Millisecond))
}

package audio

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSelectDeviceFromListDefault(t *testing.T) {
	devices := []Device{
		{ID: "elgato", Description: "Elgato Wave 3 Mono", Available: true, Default: true},
		{ID: "sony", Description: "Sony WH-1000XM6", Available: true},
	}

	dev, err := selectDeviceFromList(devices, "default")
	require.NoError(t, err)
	require.Equal(t, "elgato", dev.ID)

	dev, err = selectDeviceFromList(devices, "")
	require.NoError(t, err)
	require.Equal(t, "elgato", dev.ID)
}

func TestSelectDeviceFromListPrefersExactMatch(t *testing.T) {
	devices := []Device{
		{ID: "usb-mic-2", Description: "USB Mic 2", Available: true},
		{ID: "usb-mic", Description: "USB Mic", Available: true},
	}

	dev, err := selectDeviceFromList(devices, "USB Mic")
	require.NoError(t, err)
	require.Equal(t, "usb-mic", dev.ID)

	dev, err = selectDeviceFromList(devices, "mic-2")
	require.NoError(t, err)
	require.Equal(t, "usb-mic-2", dev.ID)
}

func TestSelectDeviceFromListRejectsMutedUnavailableAndUnknown(t *testing.T) {
	devices := []Device{
		{ID: "elgato", Description: "Elgato Wave 3 Mono", Available: true, Muted: true, Default: true},
		{ID: "sony", Description: "Sony WH-1000XM6"},
	}

	_, err := selectDeviceFromList(devices, "default")
	require.ErrorContains(t, err, "muted")

	_, err = selectDeviceFromList(devices, "sony")
	require.ErrorContains(t, err, "not available")

	_, err = selectDeviceFromList(devices, "missing")
	require.ErrorContains(t, err, "did not match")

	_, err = selectDeviceFromList(nil, "default")
	require.ErrorContains(t, err, "no audio input devices")
}

func TestDeviceMatchesByIDAndDescription(t *testing.T) {
	dev := Device{ID: "alsa_input.usb-elgato", Description: "Elgato Wave 3 Mono"}
	require.True(t, deviceMatches(dev, "elgato"))
	require.True(t, deviceMatches(dev, "wave 3"))
	require.False(t, deviceMatches(dev, "missing"))
}

func TestDeviceLabel(t *testing.T) {
	require.Equal(t, "Mic (usb)", Device{ID: "usb", Description: "Mic"}.Label())
	require.Equal(t, "usb", Device{ID: "usb"}.Label())
	require.Equal(t, "Mic", Device{ID: "Mic", Description: "Mic"}.Label())
}

func TestSampleConversions(t *testing.T) {
	sample := Sample{PCM: []int16{0x0102, -1, -32768}, Rate: SampleRate}

	require.Equal(t, []byte{0x02, 0x01, 0xff, 0xff, 0x00, 0x80}, sample.PCM16LE())
	require.Equal(t, sample.PCM, decodePCM16LE(sample.PCM16LE()))

	floats := sample.Float32()
	require.InDelta(t, -1.0, floats[2], 1e-6)
	require.Equal(t, time.Duration(0), Sample{}.Duration())
	require.Equal(t, time.Second, Sample{PCM: make([]int16, SampleRate), Rate: SampleRate}.Duration())
}

func TestRMSAndAdapt(t *testing.T) {
	require.Equal(t, 0.0, rms(nil))
	require.InDelta(t, 5.0, rms([]int16{5, -5, 5, -5}), 1e-9)

	d := DefaultDetector()
	require.InDelta(t, 300, d.adapt(300, 200, 0), 1e-9)
	require.InDelta(t, 150, d.adapt(300, 100, time.Hour), 1e-6)
}

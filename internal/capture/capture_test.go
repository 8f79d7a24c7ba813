package capture

import (
	"errors"
	"testing"
	"time"

	"github.com/gordonklaus/portaudio"
)

func TestSelectDevice(t *testing.T) {
	speakers := &portaudio.DeviceInfo{Name: "Speakers", MaxOutputChannels: 2}
	mic := &portaudio.DeviceInfo{Name: "Built-in Microphone", MaxInputChannels: 1}
	usb := &portaudio.DeviceInfo{Name: "USB Mic", MaxInputChannels: 2}
	devices := []*portaudio.DeviceInfo{speakers, mic, usb}

	tests := []struct {
		name    string
		devices []*portaudio.DeviceInfo
		index   int
		def     *portaudio.DeviceInfo
		want    *portaudio.DeviceInfo
		wantErr bool
	}{
		{"explicit index", devices, 2, mic, usb, false},
		{"index out of range", devices, 5, mic, nil, true},
		{"index without input", devices, 0, mic, nil, true},
		{"default device", devices, -1, usb, usb, false},
		{"default without input", devices, -1, speakers, mic, false},
		{"no default", devices, -1, nil, mic, false},
		{"no inputs", []*portaudio.DeviceInfo{speakers}, -1, nil, nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := selectDevice(tt.devices, tt.index, tt.def)
			if tt.wantErr {
				if !errors.Is(err, ErrNoInputDevice) {
					t.Errorf("expected ErrNoInputDevice, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("expected %s, got %s", tt.want.Name, got.Name)
			}
		})
	}
}

func TestFramesPerBuffer(t *testing.T) {
	tests := []struct {
		cfg  Config
		want int
	}{
		{Config{SampleRate: 16000, FrameDuration: 100 * time.Millisecond}, 1600},
		{Config{SampleRate: 8000, FrameDuration: 20 * time.Millisecond}, 160},
		{Config{}, 1600},
	}
	for _, tt := range tests {
		if got := New(tt.cfg, nil).framesPerBuffer(); got != tt.want {
			t.Errorf("%+v: expected %d, got %d", tt.cfg, tt.want, got)
		}
	}
}

package browser

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/chromedp/chromedp/device"
)

// ErrUnknownDevice is returned by LookupDevice for names without a preset.
var ErrUnknownDevice = errors.New("unknown device")

// Device is an emulation preset. It satisfies chromedp.Device so it can be
// passed to chromedp.Emulate.
type Device struct {
	Name      string
	UserAgent string
	Width     int64
	Height    int64
	Scale     float64
	Mobile    bool
	Touch     bool
	Landscape bool
}

// Device returns the chromedp device description.
func (d Device) Device() device.Info {
	return device.Info{
		Name:      d.Name,
		UserAgent: d.UserAgent,
		Width:     d.Width,
		Height:    d.Height,
		Scale:     d.Scale,
		Landscape: d.Landscape,
		Mobile:    d.Mobile,
		Touch:     d.Touch,
	}
}

// String renders the preset as "390x844@3 mobile touch".
func (d Device) String() string {
	s := fmt.Sprintf("%dx%d@%g", d.Width, d.Height, d.Scale)
	if d.Mobile {
		s += " mobile"
	}
	if d.Touch {
		s += " touch"
	}
	return s
}

var presets = map[string]Device{
	"iphone13": {
		Name:      "iPhone13",
		UserAgent: "Mozilla/5.0 (iPhone; CPU iPhone OS 15_0 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/15.0 Mobile/15E148 Safari/604.1",
		Width:     390,
		Height:    844,
		Scale:     3,
		Mobile:    true,
		Touch:     true,
	},
	"pixel5": {
		Name:      "Pixel5",
		UserAgent: "Mozilla/5.0 (Linux; Android 12; Pixel 5) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/98.0.4758.102 Mobile Safari/537.36",
		Width:     393,
		Height:    851,
		Scale:     2.75,
		Mobile:    true,
		Touch:     true,
	},
	"desktop": {
		Name:   "Desktop",
		Width:  1280,
		Height: 800,
		Scale:  1,
	},
}

// LookupDevice returns the preset with the given name, ignoring case.
func LookupDevice(name string) (Device, error) {
	d, ok := presets[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return Device{}, fmt.Errorf("%w: %q (available: %s)", ErrUnknownDevice, name, strings.Join(DeviceNames(), ", "))
	}
	return d, nil
}

// Devices returns all presets sorted by name.
func Devices() []Device {
	list := make([]Device, 0, len(presets))
	for _, d := range presets {
		list = append(list, d)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Name < list[j].Name })
	return list
}

// DeviceNames returns the preset names sorted.
func DeviceNames() []string {
	devices := Devices()
	names := make([]string, len(devices))
	for i, d := range devices {
		names[i] = d.Name
	}
	return names
}

// Package settings implements the JSON persistence shape for the
// supervisor and its engines, including the version-1-to-2 migration
// described in spec.md §6. Disk I/O is the caller's concern (out of
// scope per spec.md §1); this package only (de)serialises and migrates.
package settings

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"
)

// CurrentVersion is the shape this package produces on Save.
const CurrentVersion = 2

// DeviceSelection names, by string, the device/interface each protocol
// handler should open. An empty string means "not configured".
type DeviceSelection struct {
	MTCInDevice        string `json:"mtcInDevice"`
	MTCOutDevice       string `json:"mtcOutDevice"`
	ArtnetInInterface  string `json:"artnetInInterface"`
	ArtnetOutInterface string `json:"artnetOutInterface"`
	LTCInDevice        string `json:"ltcInDevice"`
	LTCOutDevice       string `json:"ltcOutDevice"`
	PassthruOutDevice  string `json:"passthruOutDevice"`
}

// OutputSettings is the persisted form of engine.OutputSlot plus the
// output's own frame-rate selection.
type OutputSettings struct {
	Enabled   bool   `json:"enabled"`
	Offset    int    `json:"offset"` // [-30, 30]
	FrameRate string `json:"frameRate"`
}

// EngineSettings is one engine's persistable configuration (spec.md §3).
type EngineSettings struct {
	Name               string          `json:"name"`
	SelectedInput      string          `json:"selectedInput"` // "wallclock" | "mtc" | "artnet" | "ltc"
	InputFrameRate     string          `json:"inputFrameRate"`
	Devices            DeviceSelection `json:"devices"`
	MTCOutput          OutputSettings  `json:"mtcOutput"`
	ArtnetOutput       OutputSettings  `json:"artnetOutput"`
	LTCOutput          OutputSettings  `json:"ltcOutput"`
	MeterGainPercent   int             `json:"meterGainPercent"` // [0, 200]
	UserOverrodeLtcFps bool            `json:"userOverrodeLtcFps"`

	// GpioSyncLine is a supplementary feature beyond the distilled spec
	// (see SPEC_FULL.md §4.l): an optional GPIO line pulsed once per
	// output frame tick. Zero means disabled.
	GpioSyncLine int `json:"gpioSyncLine,omitempty"`
}

// Settings is the top-level persisted shape.
type Settings struct {
	Version                int              `json:"version"`
	AudioInputTypeFilter   string           `json:"audioInputTypeFilter"`
	AudioOutputTypeFilter  string           `json:"audioOutputTypeFilter"`
	PreferredSampleRate    int              `json:"preferredSampleRate"`
	PreferredBufferSize    int              `json:"preferredBufferSize"`
	SelectedEngine         int              `json:"selectedEngine"`
	Engines                []EngineSettings `json:"engines"`
}

// versionProbe reads just enough to decide which shape to fully decode.
type versionProbe struct {
	Version int `json:"version"`
}

// v1Shape is the pre-multi-engine layout: global preferences and a
// single engine's fields all flattened at the top level.
type v1Shape struct {
	AudioInputTypeFilter  string `json:"audioInputTypeFilter"`
	AudioOutputTypeFilter string `json:"audioOutputTypeFilter"`
	PreferredSampleRate   int    `json:"preferredSampleRate"`
	PreferredBufferSize   int    `json:"preferredBufferSize"`
	EngineSettings
}

// Parse decodes data, migrating a version-1 (or unversioned) payload by
// lifting its flat fields into a single-element Engines slice.
func Parse(data []byte) (*Settings, error) {
	var probe versionProbe
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, fmt.Errorf("settings: %w", err)
	}

	if probe.Version >= 2 {
		var s Settings
		if err := json.Unmarshal(data, &s); err != nil {
			return nil, fmt.Errorf("settings: %w", err)
		}
		return &s, nil
	}

	var v1 v1Shape
	if err := json.Unmarshal(data, &v1); err != nil {
		return nil, fmt.Errorf("settings: %w", err)
	}
	return &Settings{
		Version:               CurrentVersion,
		AudioInputTypeFilter:  v1.AudioInputTypeFilter,
		AudioOutputTypeFilter: v1.AudioOutputTypeFilter,
		PreferredSampleRate:   v1.PreferredSampleRate,
		PreferredBufferSize:   v1.PreferredBufferSize,
		SelectedEngine:        0,
		Engines:               []EngineSettings{v1.EngineSettings},
	}, nil
}

// Marshal renders s as indented JSON with Version forced to
// CurrentVersion.
func Marshal(s *Settings) ([]byte, error) {
	s.Version = CurrentVersion
	return json.MarshalIndent(s, "", "  ")
}

// debounceDelay is how long DebouncedWriter waits after the last Notify
// before actually writing, coalescing bursts of UI edits into one write.
const debounceDelay = 500 * time.Millisecond

// DebouncedWriter calls Write at most once per debounceDelay of
// quiescence after the last Notify, per spec.md §6 ("produced on change
// (debounced)"). Disk I/O itself stays the caller's concern: Write is
// supplied by whoever constructs the writer.
type DebouncedWriter struct {
	mu    sync.Mutex
	timer *time.Timer
	Write func(s *Settings) error
}

// NewDebouncedWriter returns a writer that calls write after each burst
// of Notify calls settles.
func NewDebouncedWriter(write func(s *Settings) error) *DebouncedWriter {
	return &DebouncedWriter{Write: write}
}

// Notify schedules s to be written after the debounce delay, resetting
// the delay if called again before it fires.
func (d *DebouncedWriter) Notify(s *Settings) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(debounceDelay, func() {
		_ = d.Write(s)
	})
}

// Flush cancels any pending debounce timer and writes s immediately.
func (d *DebouncedWriter) Flush(s *Settings) error {
	d.mu.Lock()
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	d.mu.Unlock()
	return d.Write(s)
}

// Default returns a single-engine Settings with conservative defaults,
// used when no settings file exists yet.
func Default() *Settings {
	return &Settings{
		Version:             CurrentVersion,
		PreferredSampleRate: 48000,
		PreferredBufferSize: 512,
		SelectedEngine:      0,
		Engines: []EngineSettings{{
			Name:             "Engine 1",
			SelectedInput:    "wallclock",
			InputFrameRate:   "30",
			MeterGainPercent: 100,
		}},
	}
}

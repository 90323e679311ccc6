// Command tcbridged is the real-time timecode bridge daemon: it loads
// persisted engine settings, opens the configured protocol handlers and
// audio devices, and runs the 60 Hz supervisor tick loop until
// interrupted.
package main

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	_ "gitlab.com/gomidi/midi/v2/drivers/rtmididrv"

	"github.com/charmbracelet/log"
	"github.com/spf13/pflag"

	"github.com/lanewave/tcbridge/cmd/tcbridged/midihost"
	"github.com/lanewave/tcbridge/cmd/tcbridged/pahost"
	"github.com/lanewave/tcbridge/internal/artnet"
	"github.com/lanewave/tcbridge/internal/discovery"
	"github.com/lanewave/tcbridge/internal/engine"
	"github.com/lanewave/tcbridge/internal/ltc"
	"github.com/lanewave/tcbridge/internal/mtc"
	"github.com/lanewave/tcbridge/internal/passthru"
	"github.com/lanewave/tcbridge/internal/settings"
	"github.com/lanewave/tcbridge/internal/supervisor"
	"github.com/lanewave/tcbridge/internal/tclog"
	"github.com/lanewave/tcbridge/internal/timecode"
)

func main() {
	settingsFile := pflag.StringP("settings-file", "s", defaultSettingsPath(), "Path to the JSON settings file.")
	logLevel := pflag.StringP("log-level", "l", "info", "Log level: debug, info, warn, error.")
	advertiseName := pflag.StringP("advertise-name", "n", "", "mDNS service name. Empty disables discovery advertisement.")
	controlPort := pflag.IntP("control-port", "p", 7454, "TCP port advertised for a companion control UI.")
	help := pflag.BoolP("help", "h", false, "Display help text.")

	pflag.Usage = func() {
		fmt.Fprintf(os.Stderr, "tcbridged - real-time timecode bridge daemon\n\n")
		pflag.PrintDefaults()
	}
	pflag.Parse()
	if *help {
		pflag.Usage()
		os.Exit(0)
	}

	logger := tclog.New(os.Stderr, *logLevel)

	cfg, err := loadOrCreateSettings(*settingsFile)
	if err != nil {
		logger.Error("failed to load settings", "path", *settingsFile, "err", err)
		os.Exit(1)
	}

	if err := pahost.Init(); err != nil {
		logger.Error("portaudio init failed", "err", err)
		os.Exit(1)
	}
	defer pahost.Terminate()

	sup := supervisor.New(cfg.PreferredSampleRate, cfg.PreferredBufferSize)
	for _, engCfg := range cfg.Engines {
		if _, err := sup.AddEngine(engCfg); err != nil {
			logger.Error("failed to add engine from settings", "name", engCfg.Name, "err", err)
		}
	}
	openPorts := wireEngines(logger, sup)
	defer func() {
		for _, p := range openPorts {
			p.Close()
		}
	}()

	writer := settings.NewDebouncedWriter(func(s *settings.Settings) error {
		return saveSettings(*settingsFile, s)
	})
	_ = writer // wired by the (not-yet-built) control surface on every user edit

	var announcer *discovery.Announcer
	if *advertiseName != "" {
		announcer, err = discovery.Start(logger, *advertiseName, *controlPort, nil)
		if err != nil {
			logger.Warn("mDNS advertisement failed to start", "err", err)
		}
	}

	sup.Start(nowMs)
	logger.Info("tcbridged running", "engines", sup.Count())

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	<-sig

	logger.Info("shutting down")
	sup.Stop()
	if announcer != nil {
		announcer.Shutdown()
	}
	if err := writer.Flush(cfg); err != nil {
		logger.Error("final settings flush failed", "err", err)
	}
}

// nowMs is the supervisor's clock source: wall-clock milliseconds since
// the Unix epoch, matching the unit every internal package already uses.
func nowMs() int64 {
	return time.Now().UnixMilli()
}

func defaultSettingsPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "tcbridge-settings.json"
	}
	return filepath.Join(dir, "tcbridge", "settings.json")
}

func loadOrCreateSettings(path string) (*settings.Settings, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return settings.Default(), nil
	}
	if err != nil {
		return nil, err
	}
	return settings.Parse(data)
}

func saveSettings(path string, s *settings.Settings) error {
	data, err := settings.Marshal(s)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// wireEngines opens the protocol handlers each engine's persisted
// EngineSettings calls for: the selected input, the MTC and LTC outputs
// and the primary engine's passthru output. No Art-Net output is opened,
// so an enabled Art-Net output slot has no handler and sends nothing.
// Devices that fail to open are logged and
// left nil; the engine treats a nil handler as an inactive source or a
// no-op output (spec.md §4.j/§5).
func wireEngines(logger *log.Logger, sup *supervisor.Supervisor) []io.Closer {
	var openPorts []io.Closer

	for i := 0; i < sup.Count(); i++ {
		me := sup.Engine(i)
		cfg := me.Settings

		// passthruRing is the Ring an LTC input device's capture callback
		// (below) writes into; the passthru output block after the switch
		// binds it, if this engine is primary and captured one.
		var passthruRing *passthru.Ring

		switch cfg.SelectedInput {
		case "mtc":
			in := mtc.NewInput()
			me.Engine.AttachMTCInput(in)
			if cfg.Devices.MTCInDevice != "" {
				if port, err := midihost.OpenInput(cfg.Devices.MTCInDevice, func(msg []byte, ms int64) {
					in.HandleRaw(msg, ms)
				}); err != nil {
					logger.Warn("failed to open MTC input", "engine", cfg.Name, "err", err)
				} else {
					openPorts = append(openPorts, port)
				}
			}
			me.Engine.SetActiveInput(engine.InputMTC)

		case "artnet":
			in := artnet.NewInput()
			me.Engine.AttachArtnetInput(in)
			conn, _, err := artnet.Bind(cfg.Devices.ArtnetInInterface)
			if err != nil {
				logger.Warn("failed to bind Art-Net input", "engine", cfg.Name, "err", err)
			} else {
				in.Run(conn, nowMs)
			}
			me.Engine.SetActiveInput(engine.InputArtNet)

		case "ltc":
			sampleRate := float64(sup.PreferredSampleRate())
			dec := ltc.NewDecoder(sampleRate)
			me.Engine.AttachLTCInput(dec)

			var captureRing *passthru.Ring
			if me.Primary && me.Passthru != nil {
				captureRing = passthru.NewRing()
			}

			if cfg.Devices.LTCInDevice != "" {
				device := pahost.FindDevice(cfg.Devices.LTCInDevice)
				in, err := pahost.OpenInput(device, sampleRate, 1, sup.PreferredBufferSize())
				if err != nil {
					logger.Warn("failed to open LTC input", "engine", cfg.Name, "err", err)
				} else {
					var scratch []float32
					startErr := in.Start(func(samples []float32) {
						now := nowMs()
						for _, s := range samples {
							dec.ProcessSample(s, now)
						}
						if captureRing != nil {
							scratch = passthru.CaptureInto(captureRing, 1.0, samples, scratch)
						}
					})
					if startErr != nil {
						logger.Warn("failed to start LTC input", "engine", cfg.Name, "err", startErr)
					} else {
						openPorts = append(openPorts, stopCloser{in.Stop})
						passthruRing = captureRing
					}
				}
			}
			me.Engine.SetActiveInput(engine.InputLTC)

		default:
			me.Engine.SetActiveInput(engine.InputWallClock)
		}

		if cfg.MTCOutput.Enabled && cfg.Devices.MTCOutDevice != "" {
			if port, err := midihost.OpenOutput(cfg.Devices.MTCOutDevice); err != nil {
				logger.Warn("failed to open MTC output", "engine", cfg.Name, "err", err)
			} else {
				out := mtc.NewOutput(port)
				me.Engine.AttachMTCOutput(out)
				qfTicker := time.NewTicker(time.Millisecond)
				qfDone := make(chan struct{})
				go func() {
					for {
						select {
						case t := <-qfTicker.C:
							out.Tick(float64(t.UnixNano()) / 1e6)
						case <-qfDone:
							return
						}
					}
				}()
				openPorts = append(openPorts, stopCloser{func() error { qfTicker.Stop(); close(qfDone); return nil }})
				openPorts = append(openPorts, port)
			}
		}
		me.Engine.SetMTCOutput(engine.OutputSlot{Enabled: cfg.MTCOutput.Enabled, Offset: cfg.MTCOutput.Offset})
		me.Engine.SetArtnetOutput(engine.OutputSlot{Enabled: cfg.ArtnetOutput.Enabled, Offset: cfg.ArtnetOutput.Offset})
		me.Engine.SetLTCOutput(engine.OutputSlot{Enabled: cfg.LTCOutput.Enabled, Offset: cfg.LTCOutput.Offset})

		if cfg.LTCOutput.Enabled && cfg.Devices.LTCOutDevice != "" {
			sampleRate := float64(sup.PreferredSampleRate())
			enc := ltc.NewEncoder(sampleRate, parseFrameRate(cfg.LTCOutput.FrameRate), 1.0)
			me.Engine.AttachLTCOutput(enc)

			device := pahost.FindDevice(cfg.Devices.LTCOutDevice)
			out, err := pahost.OpenOutput(device, sampleRate, 1, sup.PreferredBufferSize())
			if err != nil {
				logger.Warn("failed to open LTC output", "engine", cfg.Name, "err", err)
			} else if startErr := out.Start(func(samples []float32) {
				for frame := range samples {
					samples[frame] = enc.NextSample()
				}
			}); startErr != nil {
				logger.Warn("failed to start LTC output", "engine", cfg.Name, "err", startErr)
			} else {
				openPorts = append(openPorts, stopCloser{out.Stop})
			}
		}

		if me.Primary && me.Passthru != nil && cfg.Devices.PassthruOutDevice != "" {
			ring := passthruRing
			if ring == nil {
				ring = passthru.NewRing()
			}
			sampleRate := float64(sup.PreferredSampleRate())
			me.Passthru.Bind(ring, passthru.RateMismatch{InputRate: sampleRate, OutputRate: sampleRate})

			device := pahost.FindDevice(cfg.Devices.PassthruOutDevice)
			out, err := pahost.OpenOutput(device, sampleRate, 2, sup.PreferredBufferSize())
			if err != nil {
				logger.Warn("failed to open passthru output", "engine", cfg.Name, "err", err)
			} else if startErr := out.Start(func(samples []float32) {
				me.Passthru.Fill(samples, 2)
			}); startErr != nil {
				logger.Warn("failed to start passthru output", "engine", cfg.Name, "err", startErr)
			} else {
				openPorts = append(openPorts, stopCloser{out.Stop})
			}
		}
	}

	return openPorts
}

// stopCloser adapts pahost's Stop-style audio streams to io.Closer so they
// can share openPorts' shutdown slice with the MIDI ports.
type stopCloser struct {
	stop func() error
}

func (s stopCloser) Close() error { return s.stop() }

// parseFrameRate maps a persisted frame-rate string to its FrameRate,
// defaulting to 30fps non-drop for anything unrecognised or empty.
func parseFrameRate(s string) timecode.FrameRate {
	switch s {
	case "23.98":
		return timecode.FPS_2398
	case "24":
		return timecode.FPS_24
	case "25":
		return timecode.FPS_25
	case "29.97":
		return timecode.FPS_2997
	default:
		return timecode.FPS_30
	}
}

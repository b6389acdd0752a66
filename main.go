package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/urfave/cli"

	emocli "github.com/user-none/emopl/cli"
	"github.com/user-none/emopl/opl"
	"github.com/user-none/emopl/script"
	"github.com/user-none/emopl/ui"
	"github.com/user-none/emopl/vgm"
	"github.com/user-none/emopl/wavout"
)

var sourceFlags = []cli.Flag{
	cli.StringFlag{
		Name:  "chip",
		Usage: "Chip variant: opl, opl2, opl3 or y8950 (VGM files set their own)",
	},
	cli.StringFlag{
		Name:  "core",
		Value: "nuked",
		Usage: "Emulation core: nuked, ymfm or lle",
	},
	cli.StringSliceFlag{
		Name:  "opt, o",
		Usage: "Dispatcher option as key=value (repeatable)",
	},
	cli.IntFlag{
		Name:  "loops",
		Value: 0,
		Usage: "Extra passes over a VGM loop (-1 loops forever)",
	},
	cli.BoolFlag{
		Name:  "debug",
		Usage: "Enable debug logging",
	},
}

func main() {
	app := cli.NewApp()
	app.Name = "emopl"
	app.Usage = "OPL family FM synthesis player"
	app.Description = "Plays Lua sequencing scripts and VGM register logs on emulated YM3526, YM3812, YMF262 and Y8950 chips"
	app.Version = "1.0.0"
	app.Commands = []cli.Command{
		{
			Name:      "play",
			Usage:     "Play a script or VGM file in realtime",
			ArgsUsage: "<file.lua|file.vgm>",
			Flags: append([]cli.Flag{
				cli.Float64Flag{Name: "volume", Value: 1.0, Usage: "Playback volume 0.0-1.0"},
			}, sourceFlags...),
			Action: runPlay,
		},
		{
			Name:      "render",
			Usage:     "Render a script or VGM file to WAV",
			ArgsUsage: "<file.lua|file.vgm>",
			Flags: append([]cli.Flag{
				cli.StringFlag{Name: "out", Usage: "Output WAV path (default: input with .wav)"},
				cli.Float64Flag{Name: "max-seconds", Value: 600, Usage: "Stop after this many seconds"},
			}, sourceFlags...),
			Action: runRender,
		},
		{
			Name:      "regs",
			Usage:     "Print the register writes committed while rendering",
			ArgsUsage: "<file.lua|file.vgm>",
			Flags: append([]cli.Flag{
				cli.Float64Flag{Name: "max-seconds", Value: 60, Usage: "Stop after this many seconds"},
			}, sourceFlags...),
			Action: runRegs,
		},
	}

	if err := app.Run(os.Args); err != nil {
		slog.Error("emopl failed", "error", err)
		os.Exit(1)
	}
}

// loaded is an input file bound to a dispatcher.
type loaded struct {
	d   *opl.Dispatcher
	src ui.Source
}

// load builds a dispatcher for the input named by the first argument.
// VGM logs pick their chip and clock from the header. Options set by a
// script apply before --opt values.
func load(c *cli.Context, cfg opl.Config) (*loaded, error) {
	if c.NArg() < 1 {
		cli.ShowCommandHelp(c, c.Command.Name)
		return nil, errors.New("no input file provided")
	}
	path := c.Args().First()

	level := slog.LevelInfo
	if c.Bool("debug") {
		level = slog.LevelDebug
	}
	cfg.Logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	core, err := opl.ParseCore(c.String("core"))
	if err != nil {
		return nil, err
	}
	cfg.Core = core
	if chip := c.String("chip"); chip != "" {
		if cfg.Chip, err = opl.ParseChipType(chip); err != nil {
			return nil, err
		}
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".vgm", ".vgz":
		f, err := vgm.ParseFile(path)
		if err != nil {
			return nil, err
		}
		cfg = f.Config(cfg)
		if err := cfg.ApplyOptions(c.StringSlice("opt")); err != nil {
			return nil, err
		}
		d := opl.New(cfg, nil)
		return &loaded{d: d, src: vgm.NewPlayer(d, f, c.Int("loops"))}, nil
	default:
		song, err := script.LoadFile(context.Background(), path)
		if err != nil {
			return nil, err
		}
		if err := cfg.ApplyOptions(append(song.Options, c.StringSlice("opt")...)); err != nil {
			return nil, err
		}
		d := opl.New(cfg, nil)
		seq, err := script.NewSequencer(d, song)
		if err != nil {
			if !errors.Is(err, opl.ErrOutOfMemory) {
				d.Close()
				return nil, err
			}
			cfg.Logger.Warn("samples that do not fit will play silent", "error", err)
		}
		return &loaded{d: d, src: seq}, nil
	}
}

func runPlay(c *cli.Context) error {
	cfg := opl.DefaultConfig()
	cfg.Downsample = true
	in, err := load(c, cfg)
	if err != nil {
		return err
	}
	defer in.d.Close()

	e := ui.NewEngine(in.d, in.src, 4096)
	r := emocli.NewRunner(e, c.Float64("volume"), nil)
	defer r.Close()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt)
	defer signal.Stop(sig)

	fmt.Fprintln(os.Stderr, "playing; Enter pauses and resumes, Ctrl-C stops")
	go togglePause(r, os.Stdin)

	select {
	case <-r.Done():
	case <-sig:
	}
	return nil
}

// togglePause flips between paused and playing on each input line.
func togglePause(r *emocli.Runner, in io.Reader) {
	paused := false
	lines := bufio.NewScanner(in)
	for lines.Scan() {
		if paused {
			r.Resume()
		} else {
			r.Pause()
		}
		paused = !paused
		slog.Debug("playback toggled", "paused", paused)
	}
}

// renderFrames drives the source for at most maxSeconds, passing each
// rendered chunk to fn.
func renderFrames(in *loaded, maxSeconds float64, fn func(bufs [][]int16, n int) error) error {
	const chunk = 4096
	bufs := opl.NewOutputBuffers(in.d.OutputCount(), chunk)
	limit := int(maxSeconds * float64(in.d.Rate()))
	for total := 0; total < limit && !in.src.Done(); {
		n := in.src.Render(bufs, min(chunk, limit-total))
		if n == 0 {
			break
		}
		if err := fn(bufs, n); err != nil {
			return err
		}
		total += n
	}
	return nil
}

func runRender(c *cli.Context) error {
	cfg := opl.DefaultConfig()
	cfg.Downsample = true
	in, err := load(c, cfg)
	if err != nil {
		return err
	}
	defer in.d.Close()

	out := c.String("out")
	if out == "" {
		src := c.Args().First()
		out = strings.TrimSuffix(src, filepath.Ext(src)) + ".wav"
	}
	f, err := os.Create(out)
	if err != nil {
		return err
	}
	defer f.Close()

	w := wavout.NewWriter(f, in.d.Rate())
	var stereo []int16
	err = renderFrames(in, c.Float64("max-seconds"), func(bufs [][]int16, n int) error {
		stereo = opl.MixStereo(bufs, n, stereo[:0])
		return w.WriteFrames(stereo)
	})
	if err != nil {
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}
	slog.Info("rendered", "file", out, "frames", w.Frames(), "rate", in.d.Rate())
	return nil
}

func runRegs(c *cli.Context) error {
	in, err := load(c, opl.DefaultConfig())
	if err != nil {
		return err
	}
	defer in.d.Close()

	out := bufio.NewWriter(os.Stdout)
	defer out.Flush()

	in.d.ToggleRegisterDump(true)
	return renderFrames(in, c.Float64("max-seconds"), func(bufs [][]int16, n int) error {
		for _, w := range in.d.RegisterWrites() {
			if _, err := fmt.Fprintf(out, "%10d %03X %02X\n", w.Stamp, w.Addr, w.Val); err != nil {
				return err
			}
		}
		return nil
	})
}

// Command vgmplay plays or renders OPL family VGM logs.
package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/davecgh/go-spew/spew"
	"github.com/spf13/pflag"

	emocli "github.com/user-none/emopl/cli"
	"github.com/user-none/emopl/opl"
	"github.com/user-none/emopl/ui"
	"github.com/user-none/emopl/vgm"
	"github.com/user-none/emopl/wavout"
)

var logger *log.Logger

func main() {
	logger = log.New(os.Stdout, "", log.Ldate|log.Ltime)

	var (
		outPath  string
		coreName string
		loops    int
		rate     int
		dump     bool
		opts     []string
	)
	pflag.StringVarP(&outPath, "out", "o", "", "render to this WAV file instead of playing")
	pflag.StringVarP(&coreName, "core", "c", "ymfm", "emulation core: nuked, ymfm or lle")
	pflag.IntVarP(&loops, "loops", "l", 0, "extra passes over the loop (-1 forever)")
	pflag.IntVarP(&rate, "rate", "r", 48000, "output rate in Hz")
	pflag.BoolVar(&dump, "dump", false, "dump the parsed header and final chip state")
	pflag.StringSliceVar(&opts, "opt", nil, "dispatcher option key=value")
	pflag.Parse()

	if pflag.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "usage: vgmplay [flags] <file.vgm|file.vgz>")
		pflag.PrintDefaults()
		os.Exit(2)
	}
	path := pflag.Arg(0)

	f, err := vgm.ParseFile(path)
	if err != nil {
		logger.Fatalf("failed to parse %s: %v", path, err)
	}
	logger.Printf("%s: %s at %dHz, %d writes, %.1fs", filepath.Base(path), f.Chip, f.ClockHz,
		len(f.Events), float64(f.TotalSamples)/vgm.SampleRate)

	core, err := opl.ParseCore(coreName)
	if err != nil {
		logger.Fatalf("invalid core: %v", err)
	}
	cfg := f.Config(opl.DefaultConfig())
	cfg.Core = core
	cfg.Downsample = true
	cfg.OutputRate = rate
	if err := cfg.ApplyOptions(opts); err != nil {
		logger.Fatalf("invalid option: %v", err)
	}

	d := opl.New(cfg, nil)
	defer d.Close()
	p := vgm.NewPlayer(d, f, loops)

	if dump {
		spew.Dump(struct {
			Version      string
			Chip         opl.ChipType
			ClockHz      int
			TotalSamples uint64
			LoopSample   uint64
			Blocks       int
			Layout       opl.Layout
		}{
			fmt.Sprintf("%x.%02x", f.Version>>8, f.Version&0xFF),
			f.Chip, f.ClockHz, f.TotalSamples, f.LoopSample, len(f.Blocks), d.Layout(),
		})
	}

	if outPath != "" {
		if loops < 0 {
			logger.Fatalf("cannot render an endless loop")
		}
		if err := render(d, p, outPath); err != nil {
			logger.Fatalf("render failed: %v", err)
		}
	} else {
		play(d, p)
	}

	if dump {
		dumpState(d)
	}
}

func render(d *opl.Dispatcher, p *vgm.Player, path string) error {
	if !strings.EqualFold(filepath.Ext(path), ".wav") {
		path += ".wav"
	}
	out, err := os.Create(path)
	if err != nil {
		return err
	}
	defer out.Close()

	w := wavout.NewWriter(out, d.Rate())
	bufs := opl.NewOutputBuffers(d.OutputCount(), 4096)
	var stereo []int16
	for !p.Done() {
		n := p.Render(bufs, 4096)
		stereo = opl.MixStereo(bufs, n, stereo[:0])
		if err := w.WriteFrames(stereo); err != nil {
			return err
		}
	}
	if err := w.Close(); err != nil {
		return err
	}
	logger.Printf("wrote %s: %d frames at %dHz", path, w.Frames(), d.Rate())
	return nil
}

func play(d *opl.Dispatcher, p *vgm.Player) {
	e := ui.NewEngine(d, p, 4096)
	r := emocli.NewRunner(e, 1.0, nil)
	defer r.Close()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt)
	defer signal.Stop(sig)

	select {
	case <-r.Done():
	case <-sig:
		logger.Printf("interrupted")
	}
}

func dumpState(d *opl.Dispatcher) {
	cs := spew.ConfigState{Indent: "  ", DisableMethods: true, DisablePointerAddresses: true}
	for ch := 0; ch < d.Channels(); ch++ {
		st, _ := d.ChannelState(ch)
		if st.Active {
			cs.Dump(ch, st)
		}
	}
	fmt.Print(spew.Sdump(d.RegisterPool()))
}

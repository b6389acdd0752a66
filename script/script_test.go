package script

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/user-none/emopl/opl"
	"github.com/user-none/emopl/wavout"
)

func TestParseNote(t *testing.T) {
	for in, want := range map[string]int{
		"A-4": 57, "a4": 57, "C-0": 0, "C#4": 49, "Db4": 49, "B-3": 47, "Bb3": 46, "G#7": 92,
	} {
		got, err := ParseNote(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	for _, bad := range []string{"", "H-4", "C-", "C#x"} {
		_, err := ParseNote(bad)
		assert.Error(t, err, bad)
	}
}

func TestLoadTimeline(t *testing.T) {
	song, err := Load(context.Background(), `
		option("chip", "opl3")
		local lead = instrument{name = "lead", alg = 1, fb = 3,
			op = {{tl = 20, mult = 2, ws = 1}, {tl = 0, sus = false}},
			vol = {values = {63, 50, 40}, loop = 1, release = 2},
			arp = {0, 12}}
		ins(0, lead)
		note_on(0, "A-4")
		wait(10)
		porta(0, "C-5", 4)
		wait(5)
		note_off(0, true)
		wait()
	`)
	require.NoError(t, err)
	assert.Equal(t, []string{"chip=opl3"}, song.Options)
	assert.Equal(t, 16, song.Ticks)

	require.Len(t, song.Instruments, 1)
	ins := song.Instruments[0]
	assert.Equal(t, "lead", ins.Name)
	assert.Equal(t, uint8(1), ins.ALG)
	assert.Equal(t, uint8(3), ins.FB)
	assert.Equal(t, uint8(20), ins.Op[0].TL)
	assert.Equal(t, uint8(2), ins.Op[0].MULT)
	assert.Equal(t, uint8(1), ins.Op[0].WS)
	assert.False(t, ins.Op[1].SUS)
	assert.Equal(t, opl.NewMacro([]int{63, 50, 40}, 1, 2), ins.Macros.Vol)
	assert.Equal(t, opl.NewMacro([]int{0, 12}, -1, -1), ins.Macros.Arp)

	require.Len(t, song.Steps, 4)
	assert.Equal(t, Step{Tick: 0, Cmd: opl.Command{Kind: opl.CmdInstrument, Ch: 0, Value: 0}}, song.Steps[0])
	assert.Equal(t, Step{Tick: 0, Cmd: opl.Command{Kind: opl.CmdNoteOn, Ch: 0, Value: 57}}, song.Steps[1])
	assert.Equal(t, Step{Tick: 10, Cmd: opl.Command{Kind: opl.CmdPortamento, Ch: 0, Value: 4, Value2: 60}}, song.Steps[2])
	assert.Equal(t, Step{Tick: 15, Cmd: opl.Command{Kind: opl.CmdNoteOffEnv, Ch: 0}}, song.Steps[3])
}

func TestLoadErrors(t *testing.T) {
	for name, src := range map[string]string{
		"bad note":   `note_on(0, "Q-4")`,
		"bad param":  `param(0, "bogus", 0, 1)`,
		"bad ops":    `instrument{ops = 3}`,
		"neg wait":   `wait(-1)`,
		"lua syntax": `note_on(0,`,
	} {
		_, err := Load(context.Background(), src)
		assert.Error(t, err, name)
	}
}

func TestLoadHonorsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Load(ctx, `while true do end`)
	assert.Error(t, err)
}

func newSeq(t *testing.T, chip opl.ChipType, src string) (*Sequencer, *opl.Dispatcher) {
	t.Helper()
	song, err := Load(context.Background(), src)
	require.NoError(t, err)
	cfg := opl.DefaultConfig()
	cfg.Chip = chip
	cfg.Core = opl.CoreYMFM
	require.NoError(t, cfg.ApplyOptions(song.Options))
	d := opl.New(cfg, nil)
	s, err := NewSequencer(d, song)
	require.NoError(t, err)
	return s, d
}

func TestSequencerPlaysNotes(t *testing.T) {
	s, d := newSeq(t, opl.ChipYM3812, `
		note_on(0, "A-4")
		wait(2)
		note_off(0)
		wait(1)
	`)
	s.Step()
	pool := d.RegisterPool()
	assert.Equal(t, uint8(0x44), pool[0xA0])
	assert.Equal(t, uint8(0x32), pool[0xB0])

	s.Step()
	s.Step()
	assert.Equal(t, uint8(0x12), d.RegisterPool()[0xB0])
	assert.False(t, s.Done())
	s.Step()
	assert.True(t, s.Done())
}

func TestSequencerPortamento(t *testing.T) {
	s, d := newSeq(t, opl.ChipYM3812, `
		note_on(0, "A-4")
		wait(1)
		porta(0, "C-5", 40)
		wait(100)
	`)
	for i := 0; i < 100 && !s.Done(); i++ {
		s.Step()
	}
	st, ok := d.ChannelState(0)
	require.True(t, ok)
	assert.Equal(t, 60, st.Note)
	assert.False(t, st.InPorta)
}

func TestSequencerRenderPacesTicks(t *testing.T) {
	s, d := newSeq(t, opl.ChipYM3812, `
		option("tick_rate", 100)
		note_on(0, 57)
		wait(10)
	`)
	bufs := opl.NewOutputBuffers(d.OutputCount(), 4096)
	total := 0
	for {
		n := s.Render(bufs, 4096)
		total += n
		if n < 4096 {
			break
		}
	}
	assert.True(t, s.Done())
	assert.Equal(t, 11, s.Tick())
	assert.Equal(t, int(s.tickFrame(11)), total)
}

func TestSequencerSamples(t *testing.T) {
	s, d := newSeq(t, opl.ChipY8950, `
		local pcm = {}
		for i = 1, 2000 do pcm[i] = math.floor(math.sin(i / 5) * 12000) end
		local kick = sample(pcm, 8000)
		trigger(9, kick)
		wait(5)
	`)
	require.True(t, d.SampleMemory().IsLoaded(0))
	s.Step()
	bufs := opl.NewOutputBuffers(1, 1000)
	d.Acquire(bufs, 1000)
	peak := 0
	for _, v := range bufs[0] {
		peak = max(peak, int(v), -int(v))
	}
	assert.Greater(t, peak, 500)
}

func TestSequencerReportsSampleOverflow(t *testing.T) {
	cfg := opl.DefaultConfig()
	cfg.Chip = opl.ChipY8950
	cfg.Core = opl.CoreYMFM
	d := opl.New(cfg, nil)
	song := &Song{Samples: [][]byte{make([]byte, opl.BankSize-10), make([]byte, 100)}}

	s, err := NewSequencer(d, song)
	assert.ErrorIs(t, err, opl.ErrOutOfMemory)
	require.NotNil(t, s)
	assert.True(t, d.SampleMemory().IsLoaded(0))
	assert.False(t, d.SampleMemory().IsLoaded(1))
}

func TestSampleFromWAV(t *testing.T) {
	dir := t.TempDir()
	f, err := os.Create(filepath.Join(dir, "hit.wav"))
	require.NoError(t, err)
	w := wavout.NewWriter(f, 22050)
	require.NoError(t, w.WriteFrames([]int16{100, 100, 2000, 2000, -3000, -3000, 50, 50}))
	require.NoError(t, w.Close())
	require.NoError(t, f.Close())

	script := filepath.Join(dir, "song.lua")
	require.NoError(t, os.WriteFile(script, []byte(`
		local s = sample("hit.wav")
		instrument{sample = s}
	`), 0o644))

	song, err := LoadFile(context.Background(), script)
	require.NoError(t, err)
	require.Len(t, song.Samples, 1)
	assert.Len(t, song.Samples[0], 2)
	assert.Equal(t, 22050, song.SampleRates[0])
	assert.Equal(t, 22050, song.Instruments[0].SampleRate)
}

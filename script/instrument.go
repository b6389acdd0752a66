package script

import (
	lua "github.com/yuin/gopher-lua"

	"github.com/user-none/emopl/opl"
)

// instrument{...} defines a patch and returns its index. Unset fields
// keep the default sine patch values.
func (c *compiler) instrument(L *lua.LState) int {
	t := L.CheckTable(1)
	ins := opl.DefaultInstrument()

	ins.Name = lua.LVAsString(t.RawGetString("name"))
	ins.Ops = optInt(t, "ops", ins.Ops)
	if ins.Ops != 2 && ins.Ops != 4 {
		L.ArgError(1, "ops must be 2 or 4")
	}
	ins.ALG = uint8(optInt(t, "alg", int(ins.ALG)))
	ins.FB = uint8(optInt(t, "fb", int(ins.FB)))

	if ops, ok := t.RawGetString("op").(*lua.LTable); ok {
		for i := 0; i < 4 && i < ops.Len(); i++ {
			if ot, ok := ops.RawGetInt(i + 1).(*lua.LTable); ok {
				readOperator(ot, &ins.Op[i])
			}
		}
	}

	ins.FixedDrums = optBool(t, "fixed_drums", false)
	ins.KickFreq = uint16(optInt(t, "kick", 0))
	ins.SnareHatFreq = uint16(optInt(t, "snare_hat", 0))
	ins.TomTopFreq = uint16(optInt(t, "tom_top", 0))

	m := &ins.Macros
	m.Vol = readMacro(t.RawGetString("vol"), m.Vol)
	m.Arp = readMacro(t.RawGetString("arp"), m.Arp)
	m.Pitch = readMacro(t.RawGetString("pitch"), m.Pitch)
	m.Pan = readMacro(t.RawGetString("pan"), m.Pan)
	m.Alg = readMacro(t.RawGetString("alg_macro"), m.Alg)
	m.FB = readMacro(t.RawGetString("fb_macro"), m.FB)
	m.ArpFixed = optBool(t, "arp_fixed", false)

	ins.Sample = optInt(t, "sample", ins.Sample)
	if ins.Sample >= 0 && ins.Sample < len(c.song.SampleRates) {
		ins.SampleRate = c.song.SampleRates[ins.Sample]
	}
	ins.SampleRate = optInt(t, "sample_rate", ins.SampleRate)
	ins.SampleLoop = optBool(t, "sample_loop", false)

	c.song.Instruments = append(c.song.Instruments, ins)
	L.Push(lua.LNumber(len(c.song.Instruments) - 1))
	return 1
}

func readOperator(t *lua.LTable, op *opl.Operator) {
	op.AM = optBool(t, "am", op.AM)
	op.VIB = optBool(t, "vib", op.VIB)
	op.SUS = optBool(t, "sus", op.SUS)
	op.KSR = optBool(t, "ksr", op.KSR)
	op.MULT = uint8(optInt(t, "mult", int(op.MULT)))
	op.KSL = uint8(optInt(t, "ksl", int(op.KSL)))
	op.TL = uint8(optInt(t, "tl", int(op.TL)))
	op.AR = uint8(optInt(t, "ar", int(op.AR)))
	op.DR = uint8(optInt(t, "dr", int(op.DR)))
	op.SL = uint8(optInt(t, "sl", int(op.SL)))
	op.RR = uint8(optInt(t, "rr", int(op.RR)))
	op.WS = uint8(optInt(t, "ws", int(op.WS)))
}

// readMacro accepts {v1, v2, ...} or {values = {...}, loop = n, release = n}
// with zero based positions.
func readMacro(v lua.LValue, def opl.Macro) opl.Macro {
	t, ok := v.(*lua.LTable)
	if !ok {
		return def
	}
	vals := t
	if inner, ok := t.RawGetString("values").(*lua.LTable); ok {
		vals = inner
	}
	values := make([]int, 0, vals.Len())
	for i := 1; i <= vals.Len(); i++ {
		values = append(values, int(lua.LVAsNumber(vals.RawGetInt(i))))
	}
	return opl.NewMacro(values, optInt(t, "loop", -1), optInt(t, "release", -1))
}

func optInt(t *lua.LTable, key string, def int) int {
	if n, ok := t.RawGetString(key).(lua.LNumber); ok {
		return int(n)
	}
	return def
}

func optBool(t *lua.LTable, key string, def bool) bool {
	if b, ok := t.RawGetString(key).(lua.LBool); ok {
		return bool(b)
	}
	return def
}

package opl

// macroRunner steps through one macro.
type macroRunner struct {
	m        *Macro
	pos      int
	val      int
	had      bool // A value was produced this tick
	released bool
	done     bool
}

func (r *macroRunner) init(m *Macro) {
	*r = macroRunner{m: m}
	if m == nil || len(m.Values) == 0 {
		r.done = true
	}
}

// active reports whether the runner has a macro to play.
func (r *macroRunner) active() bool {
	return r.m != nil && len(r.m.Values) > 0
}

// step produces the value for this tick. Before release the macro holds
// at the release point, or loops back when the loop lies before it.
func (r *macroRunner) step() {
	r.had = false
	if r.done {
		return
	}
	vals := r.m.Values
	if r.pos >= len(vals) {
		r.done = true
		return
	}
	r.val = vals[r.pos]
	r.had = true

	if !r.released && r.m.Release >= 0 && r.pos >= r.m.Release {
		if r.m.Loop >= 0 && r.m.Loop < r.m.Release {
			r.pos = r.m.Loop
		}
		return
	}

	r.pos++
	if r.pos >= len(vals) {
		if r.m.Loop >= 0 && r.m.Loop < len(vals) && (r.m.Release < 0 || r.m.Loop > r.m.Release) {
			r.pos = r.m.Loop
		} else {
			r.done = true
		}
	}
}

func (r *macroRunner) release() {
	r.released = true
}

// macroState is the set of macros running on a channel.
type macroState struct {
	vol, arp, pitch, pan, alg, fb macroRunner
}

func (s *macroState) runners() [6]*macroRunner {
	return [6]*macroRunner{&s.vol, &s.arp, &s.pitch, &s.pan, &s.alg, &s.fb}
}

func (s *macroState) init(ins *Instrument) {
	if ins == nil {
		for _, r := range s.runners() {
			r.init(nil)
		}
		return
	}
	s.vol.init(&ins.Macros.Vol)
	s.arp.init(&ins.Macros.Arp)
	s.pitch.init(&ins.Macros.Pitch)
	s.pan.init(&ins.Macros.Pan)
	s.alg.init(&ins.Macros.Alg)
	s.fb.init(&ins.Macros.FB)
}

func (s *macroState) step() {
	for _, r := range s.runners() {
		r.step()
	}
}

func (s *macroState) release() {
	for _, r := range s.runners() {
		r.release()
	}
}

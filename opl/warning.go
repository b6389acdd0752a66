package opl

import "fmt"

// WarningKind classifies a non-fatal condition.
type WarningKind int

const (
	WarnSampleNotResident WarningKind = iota // Trigger of an unloaded sample; plays silence
	WarnCoreFallback                         // Core cannot emulate the chip; ymfm used instead
	WarnOutOfSampleMemory                    // Sample did not fit in memory
)

func (k WarningKind) String() string {
	switch k {
	case WarnSampleNotResident:
		return "sample-not-resident"
	case WarnCoreFallback:
		return "core-fallback"
	case WarnOutOfSampleMemory:
		return "out-of-sample-memory"
	}
	return fmt.Sprintf("warning(%d)", int(k))
}

// Warning is a condition reported to the host instead of an error.
type Warning struct {
	Kind    WarningKind
	Channel int // -1 when not channel specific
	Sample  int // -1 when not sample specific
	Message string
}

// maxWarnings bounds the undrained warning list.
const maxWarnings = 256

func (d *Dispatcher) warn(w Warning) {
	d.log.Warn(w.Message, "kind", w.Kind.String(), "channel", w.Channel, "sample", w.Sample)
	if len(d.warnings) < maxWarnings {
		d.warnings = append(d.warnings, w)
	}
}

// Warnings returns and clears the pending warnings.
func (d *Dispatcher) Warnings() []Warning {
	w := d.warnings
	d.warnings = nil
	return w
}

package script

import (
	"fmt"
	"strconv"
	"strings"
)

var noteNames = map[string]int{
	"C": 0, "C#": 1, "DB": 1, "D": 2, "D#": 3, "EB": 3, "E": 4, "F": 5,
	"F#": 6, "GB": 6, "G": 7, "G#": 8, "AB": 8, "A": 9, "A#": 10, "BB": 10, "B": 11,
}

// ParseNote converts a tracker note name such as "C-4", "F#3" or "Bb2" to
// a note number. A-4 is 57.
func ParseNote(s string) (int, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	if len(s) < 2 {
		return 0, fmt.Errorf("script: bad note %q", s)
	}
	name := s[:1]
	rest := s[1:]
	switch rest[0] {
	case '#', 'B':
		if len(rest) > 1 {
			name += rest[:1]
			rest = rest[1:]
		}
	case '-':
		rest = rest[1:]
	}
	semi, ok := noteNames[name]
	if !ok {
		return 0, fmt.Errorf("script: bad note %q", s)
	}
	oct, err := strconv.Atoi(rest)
	if err != nil {
		return 0, fmt.Errorf("script: bad octave in note %q", s)
	}
	return oct*12 + semi, nil
}

package models

import "fmt"

// Summary holds assertion counters. All fields are non-negative.
type Summary struct {
	Right      int `json:"right" xml:"right"`
	Wrong      int `json:"wrong" xml:"wrong"`
	Ignores    int `json:"ignores" xml:"ignores"`
	Exceptions int `json:"exceptions" xml:"exceptions"`
}

// Add returns the field-wise sum of s and o.
func (s Summary) Add(o Summary) Summary {
	return Summary{
		Right:      s.Right + o.Right,
		Wrong:      s.Wrong + o.Wrong,
		Ignores:    s.Ignores + o.Ignores,
		Exceptions: s.Exceptions + o.Exceptions,
	}
}

// Failed reports whether any assertion was wrong or raised an exception.
func (s Summary) Failed() bool {
	return s.Wrong > 0 || s.Exceptions > 0
}

// Tally classifies a whole page: wrong, then exceptions, then ignores when
// nothing was right. Anything else, an all-zero summary included, is right.
func (s Summary) Tally() Summary {
	switch {
	case s.Wrong > 0:
		return Summary{Wrong: 1}
	case s.Exceptions > 0:
		return Summary{Exceptions: 1}
	case s.Ignores > 0 && s.Right == 0:
		return Summary{Ignores: 1}
	default:
		return Summary{Right: 1}
	}
}

// String renders "1 right, 2 wrong, 0 ignored, 0 exceptions".
func (s Summary) String() string {
	return fmt.Sprintf("%d right, %d wrong, %d ignored, %d exceptions", s.Right, s.Wrong, s.Ignores, s.Exceptions)
}

// ResultDateFormat formats run timestamps in history file names and
// resultDate query parameters.
const ResultDateFormat = "20060102150405"

package scoring

import "strconv"

// NoSelection marks a question the caller left unanswered. It is outside the
// range of any valid choice index, so it never matches a correct index.
const NoSelection = -1

// AnswerSheet holds submitted choices keyed by question position.
//
// Callers submit answers as a JSON object keyed by the decimal position of
// the question in the quiz's ordering ("0", "1", ...), not by question id.
// AnswerSheet makes that contract explicit: only keys that are exactly the
// canonical decimal form of a non-negative position are addressable.
type AnswerSheet struct {
	picks map[int]int
}

// NewAnswerSheet builds a sheet from the wire mapping. Keys that do not name
// a position ("01", "-1", "q1", " 2") are ignored.
func NewAnswerSheet(raw map[string]int) AnswerSheet {
	s := AnswerSheet{picks: make(map[int]int, len(raw))}
	for key, choice := range raw {
		pos, ok := parsePosition(key)
		if !ok {
			continue
		}
		s.picks[pos] = choice
	}
	return s
}

// Answer returns the choice submitted for position pos, or NoSelection.
func (s AnswerSheet) Answer(pos int) int {
	if choice, ok := s.picks[pos]; ok {
		return choice
	}
	return NoSelection
}

// Len returns the number of addressable answers on the sheet.
func (s AnswerSheet) Len() int {
	return len(s.picks)
}

func parsePosition(key string) (int, bool) {
	pos, err := strconv.Atoi(key)
	if err != nil || pos < 0 {
		return 0, false
	}
	if strconv.Itoa(pos) != key {
		return 0, false
	}
	return pos, true
}

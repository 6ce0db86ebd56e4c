package database

// Layer ranks are variable length strings over the ASCII range '0'..'z'
// that sort with plain byte comparison, so SQLite's default collation
// orders layers the same way Go does.
const (
	rankLow  byte = '0'
	rankHigh byte = 'z'
	rankMid  byte = 'U'

	// rankWidth is the length appended ranks are padded to before incrementing
	rankWidth = 4
)

// Next returns a rank sorting after prev. prev is padded to rankWidth and
// incremented with carry, so appending keeps ranks at rankWidth characters
// until every position is exhausted.
func Next(prev string) string {
	if prev == "" {
		return string(rankMid)
	}
	digits := []byte(prev)
	for len(digits) < rankWidth {
		digits = append(digits, rankLow)
	}
	for i := len(digits) - 1; i >= 0; i-- {
		if digits[i] < rankHigh {
			digits[i]++
			// the incremented digit already sorts after prev; drop the tail
			return string(digits[:i+1])
		}
	}
	return prev + string(rankMid)
}

// IsBetween reports whether rank sorts strictly between prev and next. An
// empty bound is open; with both bounds open it reports false so callers
// always assign a fresh rank.
func IsBetween(prev, rank, next string) bool {
	switch {
	case prev == "" && next == "":
		return false
	case prev == "":
		return rank < next
	case next == "":
		return prev < rank
	}
	return prev < rank && rank < next
}

// Between returns a rank strictly between prev and next. An empty next is
// treated as an open upper bound.
func Between(prev, next string) string {
	if next == "" {
		return Next(prev)
	}

	out := make([]byte, 0, len(prev)+1)
	for i := 0; ; i++ {
		lo := rankLow
		if i < len(prev) {
			lo = prev[i]
		}
		hi := rankHigh
		if i < len(next) {
			hi = next[i]
		}

		if hi > lo+1 {
			return string(append(out, lo+(hi-lo)/2))
		}
		// no room at this position; keep the lower digit and go deeper
		out = append(out, lo)
	}
}

// Reorder assigns ranks so that the IDs sort in the given order. Only IDs
// whose current rank violates the order are returned, mapped to new ranks.
func Reorder(existing map[string]string, order []string) map[string]string {
	updates := make(map[string]string)
	rankOf := func(i int) string {
		if i < 0 || i >= len(order) {
			return ""
		}
		id := order[i]
		if r, ok := updates[id]; ok {
			return r
		}
		return existing[id]
	}

	for i, id := range order {
		prev, next := rankOf(i-1), rankOf(i+1)
		if current := existing[id]; current != "" && IsBetween(prev, current, next) {
			continue
		}
		if next != "" && prev >= next {
			// the upper neighbour is out of place too; it gets a new rank on its turn
			next = ""
		}
		updates[id] = Between(prev, next)
	}
	return updates
}

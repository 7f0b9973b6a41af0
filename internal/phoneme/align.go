package phoneme

import "fmt"

// Cell is one position of an alignment. At least one of Target and Spoken is
// always non-empty: a cell with both sides set is either a match or a
// substitution, a cell with only Target set is a deletion (missing sound),
// and a cell with only Spoken set is an insertion (extra sound).
type Cell struct {
	// Target is the expected phoneme, empty for insertions.
	Target string

	// Spoken is the phoneme actually produced, empty for deletions.
	Spoken string

	// Match reports whether Target and Spoken are identical.
	Match bool

	// Tip is a didactic hint for mismatched cells, empty when Match is true.
	Tip string
}

// Alignment is the result of comparing a target phoneme sequence against a
// spoken one. It is a value object: computed per comparison, never stored.
type Alignment struct {
	// Cells holds the aligned positions in order. len(Cells) is at least
	// max(len(target tokens), len(spoken tokens)).
	Cells []Cell

	// MatchRatio is matches / max(target length, spoken length, 1),
	// always in [0,1]. Two empty sequences compare as 1.
	MatchRatio float64
}

// IsPerfect reports whether every cell matched.
func (a Alignment) IsPerfect() bool {
	for _, c := range a.Cells {
		if !c.Match {
			return false
		}
	}
	return true
}

// TipProvider supplies language-specific hints for phoneme substitutions,
// typically backed by a confusion-pair table. Lookup is by unordered pair.
// A return of ("", false) means no specific hint is known and a generic one
// will be synthesized instead.
type TipProvider interface {
	Tip(target, spoken string) (string, bool)
}

// Compare tokenizes both IPA strings and computes a minimal-edit-distance
// alignment between them. tips may be nil, in which case every mismatch gets
// a generic hint.
//
// Compare is deterministic and side-effect-free. Runtime is proportional to
// the product of the two sequence lengths, which is fine for the short
// phrases this system deals in.
func Compare(targetIPA, spokenIPA string, tips TipProvider) Alignment {
	target := Tokenize(targetIPA)
	spoken := Tokenize(spokenIPA)

	if len(target) == 0 && len(spoken) == 0 {
		return Alignment{Cells: []Cell{}, MatchRatio: 1}
	}

	cells := diff(target, spoken, tips)

	matches := 0
	for _, c := range cells {
		if c.Match {
			matches++
		}
	}
	denom := max(len(target), max(len(spoken), 1))
	return Alignment{
		Cells:      cells,
		MatchRatio: float64(matches) / float64(denom),
	}
}

// diff runs Wagner-Fischer over the two token sequences and backtraces the
// distance matrix into ordered cells.
func diff(target, spoken []string, tips TipProvider) []Cell {
	m, n := len(target), len(spoken)

	dist := make([][]int, m+1)
	for i := range dist {
		dist[i] = make([]int, n+1)
		dist[i][0] = i
	}
	for j := 0; j <= n; j++ {
		dist[0][j] = j
	}
	for i := 1; i <= m; i++ {
		for j := 1; j <= n; j++ {
			sub := dist[i-1][j-1]
			if target[i-1] != spoken[j-1] {
				sub++
			}
			dist[i][j] = min(sub, min(dist[i-1][j]+1, dist[i][j-1]+1))
		}
	}

	// Backtrace from the bottom-right corner, preferring diagonal moves so
	// substitutions stay position-paired.
	cells := make([]Cell, 0, max(m, n))
	i, j := m, n
	for i > 0 || j > 0 {
		switch {
		case i > 0 && j > 0 && target[i-1] == spoken[j-1] && dist[i][j] == dist[i-1][j-1]:
			cells = append(cells, Cell{Target: target[i-1], Spoken: spoken[j-1], Match: true})
			i--
			j--
		case i > 0 && j > 0 && dist[i][j] == dist[i-1][j-1]+1:
			cells = append(cells, Cell{
				Target: target[i-1],
				Spoken: spoken[j-1],
				Tip:    substitutionTip(target[i-1], spoken[j-1], tips),
			})
			i--
			j--
		case i > 0 && dist[i][j] == dist[i-1][j]+1:
			cells = append(cells, Cell{
				Target: target[i-1],
				Tip:    fmt.Sprintf("missing sound %q, make sure to pronounce it", target[i-1]),
			})
			i--
		default:
			cells = append(cells, Cell{
				Spoken: spoken[j-1],
				Tip:    fmt.Sprintf("extra sound %q that is not in the target word", spoken[j-1]),
			})
			j--
		}
	}

	// The backtrace produced cells in reverse order.
	for l, r := 0, len(cells)-1; l < r; l, r = l+1, r-1 {
		cells[l], cells[r] = cells[r], cells[l]
	}
	return cells
}

func substitutionTip(target, spoken string, tips TipProvider) string {
	if tips != nil {
		if tip, ok := tips.Tip(target, spoken); ok {
			return tip
		}
	}
	return fmt.Sprintf("you said %q instead of %q", spoken, target)
}

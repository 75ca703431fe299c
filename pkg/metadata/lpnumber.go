package metadata

import "fmt"

// LPNumber is the human-readable label printed on a license plate.
type LPNumber struct {
	prefix string
	year   int
	seq    int
}

const lpPrefix string = "LP"

func NewLPNumber(year, seq int) LPNumber {
	return LPNumber{prefix: lpPrefix, year: year, seq: seq}
}

func (lp LPNumber) String() string {
	return fmt.Sprintf("%s-%d-%05d", lp.prefix, lp.year, lp.seq)
}

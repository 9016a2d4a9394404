package model

import (
	"fmt"
	"time"
)

const idTimeFormat = "20060102T150405Z"

// ResultID derives the record key from the creation instant (UTC,
// second precision) and the analysis coordinates rounded to four
// decimals. Two analyses of the same spot within the same second
// produce the same ID; the store treats that as a replace.
func ResultID(ts time.Time, lat, lon float64) string {
	return fmt.Sprintf("%s_%.4f_%.4f", ts.UTC().Format(idTimeFormat), lat, lon)
}

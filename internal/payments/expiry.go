package payments

import "time"

// ExpiryYear expands a two digit card expiry year relative to now. A year
// below the current two digits rolls into the next century.
func ExpiryYear(twoDigit int, now time.Time) int {
	if twoDigit >= 100 {
		return twoDigit
	}
	year := now.Year()
	base := year / 100 * 100
	if twoDigit < year%100 {
		base += 100
	}
	return base + twoDigit
}

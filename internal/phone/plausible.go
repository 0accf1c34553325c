package phone

import "github.com/nyaruka/phonenumbers"

// Plausible reports whether a canonical number is valid under the real
// numbering plan. It is advisory only: Normalize never consults it.
func Plausible(canonical string) bool {
	num, err := phonenumbers.Parse(canonical, "")
	if err != nil {
		return false
	}
	return phonenumbers.IsValidNumber(num)
}

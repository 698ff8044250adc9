package shared

import (
	"strings"

	"github.com/nyaruka/phonenumbers"
)

// NormalizePhone formats raw as E.164 using region for national numbers.
// Unparseable input is returned trimmed rather than dropped.
func NormalizePhone(raw, region string) *string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	num, err := phonenumbers.Parse(raw, strings.ToUpper(region))
	if err != nil || !phonenumbers.IsValidNumber(num) {
		return &raw
	}
	out := phonenumbers.Format(num, phonenumbers.E164)
	return &out
}

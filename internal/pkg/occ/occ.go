// Package occ builds OCC-style option contract symbols,
// e.g. AFRM 03/21 40.50 call -> AFRM250321C00040500.
package occ

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// Format builds the contract symbol for an expiration in the current year.
// Expiration must carry month and day ("6/20" or "06/20").
func Format(ticker, expiration, optionType string, strike float64) (string, error) {
	return FormatAt(ticker, expiration, optionType, strike, time.Now())
}

// FormatAt is Format with an explicit reference time for the year component.
func FormatAt(ticker, expiration, optionType string, strike float64, now time.Time) (string, error) {
	ticker = strings.ToUpper(strings.TrimSpace(ticker))
	if ticker == "" {
		return "", fmt.Errorf("occ: ticker is empty")
	}
	exp, err := time.Parse("1/2", strings.TrimSpace(expiration))
	if err != nil {
		return "", fmt.Errorf("occ: invalid expiration %q, must include a day (MM/DD): %w", expiration, err)
	}
	optionType = strings.ToUpper(strings.TrimSpace(optionType))
	if optionType != "C" && optionType != "P" {
		return "", fmt.Errorf("occ: invalid option type %q", optionType)
	}
	if strike <= 0 {
		return "", fmt.Errorf("occ: invalid strike %v", strike)
	}
	// Strike is encoded as price*1000 zero-padded to 8 digits.
	strikeInt := int64(math.Round(strike * 1000))
	return fmt.Sprintf("%s%02d%02d%02d%s%08d",
		ticker, now.Year()%100, int(exp.Month()), exp.Day(), optionType, strikeInt), nil
}

// NearestFriday returns the upcoming Friday (today if today is Friday)
// formatted as MM/DD. Used when an alert omits the expiration.
func NearestFriday(now time.Time) string {
	days := (int(time.Friday) - int(now.Weekday()) + 7) % 7
	friday := now.AddDate(0, 0, days)
	return friday.Format("01/02")
}

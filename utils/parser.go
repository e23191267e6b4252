package utils

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// ErrNoPrice is returned when a price text holds no digit run.
var ErrNoPrice = errors.New("no price digits found")

// priceRegex finds the first run of digits and grouping commas ("12,345").
var priceRegex = regexp.MustCompile(`[\d,]+`)

// ParsePrice extracts the first whole-unit price from a text like "₩12,345".
// Prices on the listing have no decimals, so anything after the digit run is ignored.
func ParsePrice(priceStr string) (int, error) {
	text := strings.TrimSpace(priceStr)

	foundPrice := priceRegex.FindString(text)
	cleanedStr := strings.ReplaceAll(foundPrice, ",", "")
	if cleanedStr == "" {
		return 0, fmt.Errorf("invalid price text %q: %w", text, ErrNoPrice)
	}

	price, err := strconv.Atoi(cleanedStr)
	if err != nil {
		return 0, fmt.Errorf("invalid price text %q: %w", text, err)
	}
	return price, nil
}

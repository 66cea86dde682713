// Package scenario parses the strategy metadata embedded in order
// identifiers. Order ids generated by the strategy runner look like
// scenario_super_12_B_7f3a..., where 12 is the scenario number and B the
// sub-variant letter.
package scenario

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// tagRegex matches: scenario_super_{digits}_{letter}, with anything after.
var tagRegex = regexp.MustCompile(`^scenario_super_(\d+)_([A-Za-z])`)

var (
	ErrInvalidTag = errors.New("scenario: order id does not carry a scenario tag")
	ErrBadNumber  = errors.New("scenario: unparseable scenario number")
)

// Tag is the parsed scenario metadata of one order.
type Tag struct {
	Number int    `json:"number"`
	Letter string `json:"letter"`
}

// Parse extracts the scenario tag from an order identifier.
// The identifier must start with the literal "scenario" prefix and match
// scenario_super_{digits}_{letter}; everything after the letter is ignored.
// A parse failure excludes the record upstream — it is never fatal.
func Parse(orderID string) (Tag, error) {
	if !strings.HasPrefix(orderID, "scenario") {
		return Tag{}, fmt.Errorf("%w: %q", ErrInvalidTag, orderID)
	}
	matches := tagRegex.FindStringSubmatch(orderID)
	if matches == nil {
		return Tag{}, fmt.Errorf("%w: %q (expected scenario_super_{num}_{letter})", ErrInvalidTag, orderID)
	}
	num, err := strconv.Atoi(matches[1])
	if err != nil {
		return Tag{}, fmt.Errorf("%w: %q", ErrBadNumber, matches[1])
	}
	return Tag{Number: num, Letter: matches[2]}, nil
}

package tools

import (
	"regexp"
	"strconv"
	"strings"
)

var budgetNumber = regexp.MustCompile(`(\d+(?:\.\d+)?)\s*(k|m|thousand|million)?\b`)

// ParseBudget turns free-text budgets such as "$45k", "50,000" or "1.2m" into a
// number. The first number wins; text without digits yields 0.
func ParseBudget(s string) float64 {
	clean := strings.ReplaceAll(strings.ToLower(s), ",", "")
	m := budgetNumber.FindStringSubmatch(clean)
	if m == nil {
		return 0
	}
	n, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0
	}
	switch m[2] {
	case "k", "thousand":
		n *= 1_000
	case "m", "million":
		n *= 1_000_000
	}
	return n
}

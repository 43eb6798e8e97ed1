package exam

import "strconv"

// OrdinalSuffix renders a 1-based rank as its English ordinal ("1st", "2nd",
// "3rd", "11th", ...). Numbers ending in 11-13 always get "th".
func OrdinalSuffix(n int) string {
	s := strconv.Itoa(n)
	if rem := n % 100; rem >= 11 && rem <= 13 {
		return s + "th"
	}
	switch n % 10 {
	case 1:
		return s + "st"
	case 2:
		return s + "nd"
	case 3:
		return s + "rd"
	default:
		return s + "th"
	}
}

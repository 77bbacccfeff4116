package reconcile

import "strings"

var itemNumberSeparators = strings.NewReplacer("-", ".", "_", ".")

// NormalizeItemNumber canonicalizes a BOQ item number for exact comparison:
// all whitespace (tabs and NBSP included) is removed, '-' and '_' become '.',
// leading zeros are stripped and the result is upper-cased. Comparison of
// normalized keys is byte-wise.
func NormalizeItemNumber(raw string) string {
	s := strings.Join(strings.Fields(raw), "")
	if s == "" {
		return ""
	}
	s = itemNumberSeparators.Replace(s)
	s = strings.TrimLeft(s, "0")
	return strings.ToUpper(s)
}

package utils

import "strings"

// StringList normalises a JSON claim that may be encoded as an array or as a
// space delimited string. Non string array members are skipped. It returns
// nil when the value has neither shape.
func StringList(value any) []string {
	switch v := value.(type) {
	case []string:
		return v
	case []any:
		list := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				list = append(list, s)
			}
		}
		return list
	case string:
		return strings.Fields(v)
	}
	return nil
}

package store

import "strconv"

func itoa(v int64) string {
	return strconv.FormatInt(v, 10)
}

func atoi(s string) int64 {
	v, _ := strconv.ParseInt(s, 10, 64)
	return v
}

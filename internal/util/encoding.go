package util

import (
	"golang.org/x/text/unicode/norm"
)

func Normalize(s string) string {
	return norm.NFKD.String(s)
}

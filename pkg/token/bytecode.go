package token

import "strings"

const (
	wrappedBytesPrefix = `Bytes("`
	wrappedBytesSuffix = `")`
)

// UnwrapBytecode strips the Bytes("...") debug wrapper some clients put around
// code hex. Anything else is returned unchanged.
func UnwrapBytecode(code string) string {
	if inner, ok := extractWrappedHex(code); ok {
		return inner
	}
	return code
}

func extractWrappedHex(s string) (string, bool) {
	if len(s) < len(wrappedBytesPrefix)+len(wrappedBytesSuffix) {
		return "", false
	}
	if !strings.HasPrefix(s, wrappedBytesPrefix) || !strings.HasSuffix(s, wrappedBytesSuffix) {
		return "", false
	}
	return s[len(wrappedBytesPrefix) : len(s)-len(wrappedBytesSuffix)], true
}

package helpers

import (
	"errors"
	"strings"
)

func GetSplitPart(target string, separate string, index int) (string, error) {
	parts := strings.Split(target, separate)
	if index >= len(parts) {
		return "", errors.New("index out of range")
	}
	return parts[index], nil
}

// LastPathSegment returns the final path segment of a URL, ignoring any query
// string. "https://x.de/angebote/vw-golf-abc123?p=1" yields "vw-golf-abc123".
func LastPathSegment(link string) string {
	link = strings.Split(link, "?")[0]
	link = strings.TrimSuffix(link, "/")
	parts := strings.Split(link, "/")
	return parts[len(parts)-1]
}

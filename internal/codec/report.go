package codec

import "regexp"

// LineKind classifies one line of tool output.
type LineKind int

const (
	LinePlain    LineKind = iota // opaque passthrough
	LineDecoded                  // "Decoded message ...: '<payload>'"
	LineReceived                 // "Received sound data successfully: '<payload>'"
)

var (
	decodedPattern  = regexp.MustCompile(`Decoded message[^:]*:\s*'([^']*)'`)
	receivedPattern = regexp.MustCompile(`Received sound data successfully:\s*'([^']+)'`)
)

var linePatterns = []struct {
	kind LineKind
	re   *regexp.Regexp
}{
	{LineDecoded, decodedPattern},
	{LineReceived, receivedPattern},
}

// ClassifyLine maps a line of tool output to its kind and payload.
// Unknown shapes are LinePlain with an empty payload.
func ClassifyLine(line string) (LineKind, string) {
	for _, p := range linePatterns {
		if m := p.re.FindStringSubmatch(line); m != nil {
			return p.kind, m[1]
		}
	}
	return LinePlain, ""
}

// ExtractMessage returns the first decoded payload in a report, or "" when the
// tool found nothing.
func ExtractMessage(report string) string {
	if m := decodedPattern.FindStringSubmatch(report); m != nil {
		return m[1]
	}
	return ""
}

package telemetry

import (
	"strconv"
	"strings"
)

// protocolByVersion maps game versions to their network protocol
// numbers. Unlisted versions fall back by era: anything below 1.8 uses
// the last pre-netty protocol, everything newer a recent one.
var protocolByVersion = map[string]int{
	"1.7.2":  4,
	"1.7.10": 5,
	"1.8":    47,
	"1.8.9":  47,
	"1.9":    107,
	"1.10":   210,
	"1.11":   315,
	"1.12":   335,
	"1.12.2": 340,
	"1.13":   393,
	"1.14":   477,
	"1.15":   573,
	"1.16":   735,
	"1.16.5": 754,
	"1.17":   755,
	"1.18":   757,
	"1.19":   759,
	"1.20":   763,
	"1.20.4": 765,
	"1.21":   767,
}

// ProtocolVersion resolves a version string to a protocol number.
func ProtocolVersion(version string) int {
	if p, ok := protocolByVersion[version]; ok {
		return p
	}
	if olderThan18(version) {
		return 5
	}
	return 754
}

// olderThan18 compares the leading "major.minor" of a version string
// against 1.8. Unparseable versions are treated as modern.
func olderThan18(version string) bool {
	parts := strings.Split(version, ".")
	if len(parts) < 2 {
		return false
	}
	major, err1 := strconv.Atoi(parts[0])
	minor, err2 := strconv.Atoi(parts[1])
	if err1 != nil || err2 != nil {
		return false
	}
	return major == 1 && minor < 8
}

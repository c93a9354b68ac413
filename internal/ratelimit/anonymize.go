package ratelimit

import "strings"

// AnonymizeAddress reduces a client address to the coarse bucket stored
// with each attempt. IPv4 addresses lose their fourth octet ("a.b.c.d"
// becomes "a.b.c.0"); empty and "unknown" inputs collapse to the empty
// string; anything else, IPv6 included, passes through unchanged. The
// function is idempotent.
func AnonymizeAddress(raw string) string {
	addr := strings.TrimSpace(raw)
	if addr == "" || strings.EqualFold(addr, "unknown") {
		return ""
	}

	octets := strings.Split(addr, ".")
	if len(octets) != 4 {
		return addr
	}
	for _, octet := range octets {
		if !isDecimalOctet(octet) {
			return addr
		}
	}
	return octets[0] + "." + octets[1] + "." + octets[2] + ".0"
}

func isDecimalOctet(s string) bool {
	if len(s) == 0 || len(s) > 3 {
		return false
	}
	value := 0
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
		value = value*10 + int(s[i]-'0')
	}
	return value <= 255
}

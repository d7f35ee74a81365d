package ssdp

import "strings"

// ComposeUSN builds a type-scoped USN ("<UDN>::<NT>") or, when nt is
// empty, a root-device USN ("<UDN>").
func ComposeUSN(udn, nt string) string {
	if nt == "" {
		return udn
	}
	return udn + "::" + nt
}

// SplitUSN splits a USN into its UDN and NT parts. For a root-device USN
// (no "::"), nt is returned empty.
func SplitUSN(usn string) (udn, nt string) {
	idx := strings.Index(usn, "::")
	if idx < 0 {
		return usn, ""
	}
	return usn[:idx], usn[idx+2:]
}

// DeviceUDNFromUSN returns the UDN prefix of usn, i.e. the substring
// before "::" if present. This is the registry dedupe key.
func DeviceUDNFromUSN(usn string) string {
	udn, _ := SplitUSN(usn)
	return udn
}

// MatchST reports whether a search target st should be answered by a
// device whose UDN is udn and whose device type URN is deviceType. This
// is explicit root/UDN/type matching, not substring "contains": st must
// equal ssdp:all, upnp:rootdevice, the device's UDN, or its device type,
// exactly.
func MatchST(st, udn, deviceType string) bool {
	switch st {
	case STAll, STRootDevice:
		return true
	case udn:
		return true
	case deviceType:
		return true
	default:
		return false
	}
}

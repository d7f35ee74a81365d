package ssdp

import "strings"

// InboundReply is the control-point-side parsed representation of an
// incoming unicast M-SEARCH reply or multicast NOTIFY: consumed
// immediately by the Control Point's reconciliation pass, never
// re-emitted.
type InboundReply struct {
	// Alive is true for ssdp:alive NOTIFY and M-SEARCH replies; false for
	// ssdp:byebye NOTIFY.
	Alive     bool
	Location  string
	ST        string
	USN       string
	UDN       string
	NT        string
	MaxAgeSec int
}

// ParseInboundReply interprets a parsed SSDP Message as either an
// M-SEARCH reply or a NOTIFY, returning false if the message carries no
// USN (and so cannot be correlated to a device).
func ParseInboundReply(msg Message) (InboundReply, bool) {
	usn := msg.Header("USN")
	if usn == "" {
		return InboundReply{}, false
	}
	udn, nt := SplitUSN(usn)

	r := InboundReply{
		Location:  msg.Header("LOCATION"),
		USN:       usn,
		UDN:       udn,
		MaxAgeSec: parseMaxAge(msg.Header("CACHE-CONTROL")),
	}

	switch {
	case msg.IsReply():
		r.Alive = true
		r.ST = msg.Header("ST")
		r.NT = nt
	case msg.IsNotify():
		nts := msg.Header("NTS")
		r.Alive = nts != NTSByebye
		r.NT = msg.Header("NT")
		if r.NT == "" {
			r.NT = nt
		}
	default:
		return InboundReply{}, false
	}
	return r, true
}

func parseMaxAge(cacheControl string) int {
	const prefix = "max-age="
	idx := strings.Index(strings.ToLower(cacheControl), prefix)
	if idx < 0 {
		return 0
	}
	rest := cacheControl[idx+len(prefix):]
	n := 0
	for _, c := range rest {
		if c < '0' || c > '9' {
			break
		}
		n = n*10 + int(c-'0')
	}
	return n
}

// Package ssdp implements the SSDP protocol tasks: datagram parsing and
// encoding, USN composition/matching, and the scheduler.Task constructors
// for MSearch, MSearchReply, NotifyAlive, and NotifyByebye.
package ssdp

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
)

func httpDate() string {
	return time.Now().UTC().Format(http.TimeFormat)
}

// MulticastAddr is the standard SSDP multicast group and port.
const MulticastAddr = "239.255.255.250:1900"

// NTS values carried by NOTIFY datagrams.
const (
	NTSAlive  = "ssdp:alive"
	NTSByebye = "ssdp:byebye"
)

// Well-known search targets.
const (
	STAll        = "ssdp:all"
	STRootDevice = "upnp:rootdevice"
	ManDiscover  = `"ssdp:discover"`
)

// Message is a parsed SSDP datagram: either a request line
// ("M-SEARCH * HTTP/1.1" or "NOTIFY * HTTP/1.1") or a status line
// ("HTTP/1.1 200 OK"), plus its headers. Header lookup is
// case-insensitive, matching the HTTP-over-UDP wire format.
type Message struct {
	StartLine string
	Headers   map[string]string
}

// Header returns the value for key (case-insensitive), or "" if absent.
func (m Message) Header(key string) string {
	return m.Headers[strings.ToUpper(key)]
}

// ParseMessage parses a raw SSDP datagram. It is forgiving: lines that
// don't look like "Key: Value" are skipped rather than rejecting the
// whole datagram. Returns false only when the datagram has no usable
// start line.
func ParseMessage(data []byte) (Message, bool) {
	lines := strings.Split(strings.ReplaceAll(string(data), "\r\n", "\n"), "\n")
	if len(lines) == 0 || strings.TrimSpace(lines[0]) == "" {
		return Message{}, false
	}
	msg := Message{
		StartLine: strings.TrimSpace(lines[0]),
		Headers:   make(map[string]string),
	}
	for _, line := range lines[1:] {
		line = strings.TrimRight(line, "\r")
		if line == "" {
			continue
		}
		idx := strings.IndexByte(line, ':')
		if idx < 0 {
			continue
		}
		key := strings.ToUpper(strings.TrimSpace(line[:idx]))
		val := strings.TrimSpace(line[idx+1:])
		msg.Headers[key] = val
	}
	return msg, true
}

// IsMSearch reports whether msg's start line is an M-SEARCH request.
func (m Message) IsMSearch() bool {
	return strings.HasPrefix(m.StartLine, "M-SEARCH")
}

// IsNotify reports whether msg's start line is a NOTIFY request.
func (m Message) IsNotify() bool {
	return strings.HasPrefix(m.StartLine, "NOTIFY")
}

// IsReply reports whether msg's start line is an HTTP status line, i.e.
// a unicast M-SEARCH reply.
func (m Message) IsReply() bool {
	return strings.HasPrefix(m.StartLine, "HTTP/")
}

// EncodeMSearch builds the "M-SEARCH * HTTP/1.1" datagram for
// discovering searchTarget, with the given MX (seconds to scatter
// responses over).
func EncodeMSearch(searchTarget string, mx int) []byte {
	var b strings.Builder
	b.WriteString("M-SEARCH * HTTP/1.1\r\n")
	b.WriteString("HOST: " + MulticastAddr + "\r\n")
	b.WriteString("MAN: " + ManDiscover + "\r\n")
	b.WriteString("MX: " + strconv.Itoa(mx) + "\r\n")
	b.WriteString("ST: " + searchTarget + "\r\n")
	b.WriteString("\r\n")
	return []byte(b.String())
}

// EncodeMSearchReply builds the unicast "HTTP/1.1 200 OK" reply to an
// M-SEARCH, advertising location under usn/st with the given cache
// max-age in seconds.
func EncodeMSearchReply(location, st, usn string, maxAgeSec int) []byte {
	var b strings.Builder
	b.WriteString("HTTP/1.1 200 OK\r\n")
	b.WriteString(fmt.Sprintf("CACHE-CONTROL: max-age=%d\r\n", maxAgeSec))
	b.WriteString("DATE: " + httpDate() + "\r\n")
	b.WriteString("EXT:\r\n")
	b.WriteString("LOCATION: " + location + "\r\n")
	b.WriteString("SERVER: dlnacore/1.0 UPnP/1.0\r\n")
	b.WriteString("ST: " + st + "\r\n")
	b.WriteString("USN: " + usn + "\r\n")
	b.WriteString("\r\n")
	return []byte(b.String())
}

// EncodeNotify builds a multicast NOTIFY announcement (ssdp:alive or
// ssdp:byebye, per nts) for the given nt/usn, with LOCATION included
// only for ssdp:alive (byebye carries no location).
func EncodeNotify(nts, location, nt, usn string, maxAgeSec int) []byte {
	var b strings.Builder
	b.WriteString("NOTIFY * HTTP/1.1\r\n")
	b.WriteString("HOST: " + MulticastAddr + "\r\n")
	if nts == NTSAlive {
		b.WriteString(fmt.Sprintf("CACHE-CONTROL: max-age=%d\r\n", maxAgeSec))
		b.WriteString("LOCATION: " + location + "\r\n")
	}
	b.WriteString("NT: " + nt + "\r\n")
	b.WriteString("NTS: " + nts + "\r\n")
	b.WriteString("SERVER: dlnacore/1.0 UPnP/1.0\r\n")
	b.WriteString("USN: " + usn + "\r\n")
	b.WriteString("\r\n")
	return []byte(b.String())
}

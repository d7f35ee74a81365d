package ssdp

import (
	"time"

	"github.com/brightgrove/dlnacore/internal/scheduler"
)

// NewMSearchTask builds the control-point M-SEARCH task: it fires
// immediately and then every repeatInterval until endAt, multicasting an
// M-SEARCH for searchTarget.
func NewMSearchTask(searchTarget string, mx int, repeatInterval time.Duration, endAt time.Time) *scheduler.Task {
	datagram := EncodeMSearch(searchTarget, mx)
	return &scheduler.Task{
		Name:           "msearch:" + searchTarget,
		Kind:           scheduler.KindMSearch,
		DueAt:          time.Now(),
		EndAt:          endAt,
		RepeatInterval: repeatInterval,
		Process: func(udp scheduler.UDPSink, device any) {
			udp.Send(MulticastAddr, datagram)
		},
	}
}

// MSearchReplyPayload carries the per-reply fields a device's
// MSearchReply task needs: the unicast address of the requester and the
// fields of the HTTP 200 OK reply.
type MSearchReplyPayload struct {
	ReplyTo   string
	Location  string
	ST        string
	USN       string
	MaxAgeSec int
}

// NewMSearchReplyTask builds a one-shot task that unicasts a single
// M-SEARCH reply to payload.ReplyTo. It is enqueued fresh for every
// incoming M-SEARCH whose ST matched.
func NewMSearchReplyTask(payload MSearchReplyPayload) *scheduler.Task {
	return &scheduler.Task{
		Name:  "msearch_reply:" + payload.USN,
		Kind:  scheduler.KindMSearchReply,
		DueAt: time.Now(),
		Process: func(udp scheduler.UDPSink, device any) {
			udp.Send(payload.ReplyTo, EncodeMSearchReply(payload.Location, payload.ST, payload.USN, payload.MaxAgeSec))
		},
		Payload: payload,
	}
}

// NewNotifyAliveTask builds the repeating device task that multicasts
// ssdp:alive for one NT/USN scope in the device's announcement set.
func NewNotifyAliveTask(nt, usn, location string, maxAgeSec int, repeatInterval time.Duration) *scheduler.Task {
	return &scheduler.Task{
		Name:           "notify_alive:" + usn,
		Kind:           scheduler.KindNotifyAlive,
		DueAt:          time.Now(),
		RepeatInterval: repeatInterval,
		Process: func(udp scheduler.UDPSink, device any) {
			udp.Send(MulticastAddr, EncodeNotify(NTSAlive, location, nt, usn, maxAgeSec))
		},
	}
}

// NewNotifyByebyeTask builds a task that multicasts ssdp:byebye for one
// NT/USN scope, repetitions times, then deactivates. Used on device
// shutdown.
func NewNotifyByebyeTask(nt, usn string, repetitions int) *scheduler.Task {
	sent := 0
	task := &scheduler.Task{
		Name:  "notify_byebye:" + usn,
		Kind:  scheduler.KindNotifyByebye,
		DueAt: time.Now(),
	}
	task.Process = func(udp scheduler.UDPSink, device any) {
		udp.Send(MulticastAddr, EncodeNotify(NTSByebye, "", nt, usn, 0))
		sent++
		if sent >= repetitions {
			task.Active = false
		} else {
			task.RepeatInterval = 800 * time.Millisecond
			task.DueAt = time.Now().Add(task.RepeatInterval)
		}
	}
	return task
}

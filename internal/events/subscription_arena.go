// Package events implements the device-side and control-point-side
// event subscription managers: SUBSCRIBE/UNSUBSCRIBE/NOTIFY tracking,
// sequence numbering, expiry, and retrying delivery.
package events

// Ref is a weak, generation-tagged reference to a Subscription held in a
// subscriptionArena. A PendingNotification holds a Ref rather than a
// pointer so it never keeps a removed Subscription alive; resolving a
// stale Ref (wrong generation, or the slot was freed and reused) yields
// "gone" rather than a dangling or, worse, a silently wrong object.
type Ref struct {
	index      int
	generation int
}

type arenaSlot struct {
	sub        *Subscription
	generation int
}

// subscriptionArena owns every live Subscription. It is the only thing
// that constructs or frees a Subscription; everything else (pending
// notifications, SID lookups) holds a Ref or a SID string and resolves
// through the arena.
type subscriptionArena struct {
	slots    []arenaSlot
	freeList []int
}

func (a *subscriptionArena) alloc(sub *Subscription) Ref {
	if n := len(a.freeList); n > 0 {
		idx := a.freeList[n-1]
		a.freeList = a.freeList[:n-1]
		a.slots[idx].sub = sub
		a.slots[idx].generation++
		return Ref{index: idx, generation: a.slots[idx].generation}
	}
	a.slots = append(a.slots, arenaSlot{sub: sub, generation: 1})
	return Ref{index: len(a.slots) - 1, generation: 1}
}

func (a *subscriptionArena) free(ref Ref) {
	if ref.index < 0 || ref.index >= len(a.slots) {
		return
	}
	if a.slots[ref.index].generation != ref.generation {
		return
	}
	a.slots[ref.index].sub = nil
	a.freeList = append(a.freeList, ref.index)
}

func (a *subscriptionArena) resolve(ref Ref) (*Subscription, bool) {
	if ref.index < 0 || ref.index >= len(a.slots) {
		return nil, false
	}
	slot := a.slots[ref.index]
	if slot.generation != ref.generation || slot.sub == nil {
		return nil, false
	}
	return slot.sub, true
}

// live returns every currently allocated Subscription in slot order.
func (a *subscriptionArena) live() []*Subscription {
	var out []*Subscription
	for _, s := range a.slots {
		if s.sub != nil {
			out = append(out, s.sub)
		}
	}
	return out
}

package bus

import "github.com/careloop/icumesh/core"

// Filter decides whether a subscriber receives a given event. Filters must be
// pure: delivery is evaluated once per subscriber at publish time.
type Filter func(core.Event) bool

// MatchAll matches every event.
func MatchAll() Filter {
	return func(core.Event) bool { return true }
}

// MatchKinds matches events whose kind is in the given set.
func MatchKinds(kinds ...core.EventKind) Filter {
	set := make(map[core.EventKind]bool, len(kinds))
	for _, k := range kinds {
		set[k] = true
	}
	return func(ev core.Event) bool { return set[ev.EventKind()] }
}

// MatchInbox matches messages addressed to the role, either directly or by
// broadcast. Non-message events never match.
func MatchInbox(role core.Role) Filter {
	return func(ev core.Event) bool {
		me, ok := ev.(core.MessageEvent)
		if !ok {
			return false
		}
		return me.Message.Broadcast() || me.Message.Recipient == role
	}
}

// Any matches when at least one of the given filters matches.
func Any(filters ...Filter) Filter {
	return func(ev core.Event) bool {
		for _, f := range filters {
			if f(ev) {
				return true
			}
		}
		return false
	}
}

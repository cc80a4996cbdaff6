package chat

import (
	"cmp"
	"slices"
)

// normalizeFetch turns a newest-first page from the store into the
// authoritative window: oldest-first, one entry per server ID, at most limit
// newest messages. Equal timestamps are ordered by ascending ID.
func normalizeFetch(newestFirst []Message, limit int) []Message {
	out := make([]Message, 0, len(newestFirst))
	seen := make(map[int64]struct{}, len(newestFirst))
	for i := len(newestFirst) - 1; i >= 0; i-- {
		m := newestFirst[i]
		if _, dup := seen[m.ID]; dup {
			continue
		}
		seen[m.ID] = struct{}{}
		out = append(out, m)
	}

	slices.SortStableFunc(out, func(a, b Message) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})

	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out
}

// prunePending drops pending entries whose server copy is already in the
// authoritative window. When the window is full, a resolved entry older than
// its first message can no longer show up and is dropped as well.
func prunePending(window []Message, pending []*PendingEntry, limit int) []*PendingEntry {
	if len(pending) == 0 {
		return pending
	}
	ids := make(map[int64]struct{}, len(window))
	for _, m := range window {
		ids[m.ID] = struct{}{}
	}
	full := limit > 0 && len(window) >= limit

	kept := pending[:0]
	for _, p := range pending {
		if p.Status == StatusResolved {
			if _, ok := ids[p.ServerID]; ok {
				continue
			}
			if full && p.ServerID < window[0].ID {
				continue
			}
		}
		kept = append(kept, p)
	}
	for i := len(kept); i < len(pending); i++ {
		pending[i] = nil
	}
	return kept
}

// mergeVisible appends the pending entries, in submission order, after the
// authoritative window.
func mergeVisible(window []Message, pending []*PendingEntry) []Entry {
	ids := make(map[int64]struct{}, len(window))
	out := make([]Entry, 0, len(window)+len(pending))
	for _, m := range window {
		ids[m.ID] = struct{}{}
		out = append(out, Authoritative(m))
	}
	for _, p := range pending {
		if p.Status == StatusResolved {
			if _, ok := ids[p.ServerID]; ok {
				continue
			}
		}
		out = append(out, Pending(*p))
	}
	return out
}

package store

import (
	"encoding/json"
	"sort"

	"github.com/rcliao/guardia-ai/internal/model"
)

// Stats holds collection statistics.
type Stats struct {
	Backend      string      `json:"backend"`
	EncodedBytes int         `json:"encoded_bytes"`
	Total        int         `json:"total"`
	New          int         `json:"new"`
	Pending      int         `json:"pending"`
	Seen         int         `json:"seen"`
	WithNote     int         `json:"with_note"`
	PendingItems []ItemCount `json:"pending_items"`
}

// ItemCount counts open records waiting on one pending item.
type ItemCount struct {
	Item  string `json:"item"`
	Count int    `json:"count"`
}

// Stats returns collection statistics.
func (s *Store) Stats() *Stats {
	records := s.snapshot()
	st := &Stats{Backend: s.backend.Name(), Total: len(records), PendingItems: []ItemCount{}}

	if b, err := json.Marshal(records); err == nil {
		st.EncodedBytes = len(b)
	}

	items := map[string]int{}
	for _, r := range records {
		switch r.Status {
		case model.StatusPending:
			st.Pending++
			for _, it := range r.PendingItems {
				items[it]++
			}
		case model.StatusSeen:
			st.Seen++
		default:
			st.New++
		}
		if r.GeneratedClinicalHistory != "" {
			st.WithNote++
		}
	}

	for it, n := range items {
		st.PendingItems = append(st.PendingItems, ItemCount{Item: it, Count: n})
	}
	sort.Slice(st.PendingItems, func(i, j int) bool {
		if st.PendingItems[i].Count != st.PendingItems[j].Count {
			return st.PendingItems[i].Count > st.PendingItems[j].Count
		}
		return st.PendingItems[i].Item < st.PendingItems[j].Item
	})
	return st
}

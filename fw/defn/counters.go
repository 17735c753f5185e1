package defn

// FirewallCounters is a snapshot of the firewall packet counters.
type FirewallCounters struct {
	NInterestDrops      uint64 `json:"interest_drops"`
	NDataDrops          uint64 `json:"data_drops"`
	NInterestsForwarded uint64 `json:"interests_forwarded"`
	NDataForwarded      uint64 `json:"data_forwarded"`
}

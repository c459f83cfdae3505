package mpc

import (
	"sort"
	"sync"

	"go.dedis.ch/mpcsum/metrics"
	"go.dedis.ch/mpcsum/types"
)

// ShareStore is an append-only, thread-safe sequence of share records. A
// record from an origin already present is kept, readers of the protocol only
// use the latest one per origin.
type ShareStore struct {
	*sync.RWMutex
	records []types.ShareRecord
	origins map[types.PartyID]int
}

// add appends rec and tells if its origin was already present.
func (s *ShareStore) add(rec types.ShareRecord) bool {
	s.Lock()
	defer s.Unlock()

	_, dup := s.origins[rec.Origin]
	s.origins[rec.Origin] = len(s.records)
	s.records = append(s.records, rec)

	metrics.RecordsStored.WithLabelValues("shares").Inc()
	if dup {
		metrics.DuplicateRecords.WithLabelValues("shares").Inc()
	}
	return dup
}
func (s *ShareStore) getAll() []types.ShareRecord {
	s.RLock()
	defer s.RUnlock()
	records := make([]types.ShareRecord, len(s.records))
	copy(records, s.records)
	return records
}

// latest returns the last record of every origin, ordered by origin.
func (s *ShareStore) latest() []types.ShareRecord {
	s.RLock()
	records := make([]types.ShareRecord, 0, len(s.origins))
	for _, idx := range s.origins {
		records = append(records, s.records[idx])
	}
	s.RUnlock()

	sort.Slice(records, func(i, j int) bool { return records[i].Origin < records[j].Origin })
	return records
}
func (s *ShareStore) len() int {
	s.RLock()
	defer s.RUnlock()
	return len(s.records)
}
func NewShareStore() *ShareStore {
	return &ShareStore{&sync.RWMutex{}, []types.ShareRecord{}, map[types.PartyID]int{}}
}

// SumStore is the ShareStore of the second round, it holds partial sums.
type SumStore struct {
	*sync.RWMutex
	records []types.SumRecord
	origins map[types.PartyID]int
}

func (s *SumStore) add(rec types.SumRecord) bool {
	s.Lock()
	defer s.Unlock()

	_, dup := s.origins[rec.Origin]
	s.origins[rec.Origin] = len(s.records)
	s.records = append(s.records, rec)

	metrics.RecordsStored.WithLabelValues("sums").Inc()
	if dup {
		metrics.DuplicateRecords.WithLabelValues("sums").Inc()
	}
	return dup
}
func (s *SumStore) getAll() []types.SumRecord {
	s.RLock()
	defer s.RUnlock()
	records := make([]types.SumRecord, len(s.records))
	copy(records, s.records)
	return records
}
func (s *SumStore) latest() []types.SumRecord {
	s.RLock()
	records := make([]types.SumRecord, 0, len(s.origins))
	for _, idx := range s.origins {
		records = append(records, s.records[idx])
	}
	s.RUnlock()

	sort.Slice(records, func(i, j int) bool { return records[i].Origin < records[j].Origin })
	return records
}
func (s *SumStore) len() int {
	s.RLock()
	defer s.RUnlock()
	return len(s.records)
}
func NewSumStore() *SumStore {
	return &SumStore{&sync.RWMutex{}, []types.SumRecord{}, map[types.PartyID]int{}}
}

// SafeHandshakes records the peers that greeted this party.
type SafeHandshakes struct {
	*sync.RWMutex
	table map[string]types.PartyID
}

func (h *SafeHandshakes) add(addr string, id types.PartyID) {
	h.Lock()
	defer h.Unlock()
	h.table[addr] = id
}
func (h *SafeHandshakes) getAll() map[string]types.PartyID {
	h.RLock()
	defer h.RUnlock()
	table := make(map[string]types.PartyID, len(h.table))
	for k, v := range h.table {
		table[k] = v
	}
	return table
}
func NewSafeHandshakes() *SafeHandshakes {
	return &SafeHandshakes{&sync.RWMutex{}, map[string]types.PartyID{}}
}

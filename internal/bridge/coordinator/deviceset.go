package coordinator

import (
	"encoding/json"
	"slices"
)

// Record is one registered device as persisted under the "devices" key.
type Record struct {
	LogicalID    string `json:"logicMac"`
	WireName     string `json:"dn"`
	EntityID     string `json:"entity_id"`
	FriendlyName string `json:"friendly_name"`
	EntryID      string `json:"entry_id"`
	DeviceID     string `json:"device_id,omitempty"`
}

// DeviceSet is the ordered set of registered devices, keyed by logical id.
//
// Thread Safety: not safe for concurrent use. The coordinator only touches
// it from its event loop.
type DeviceSet struct {
	records []Record
}

// NewDeviceSet creates a set from records. Later duplicates of a logical id
// replace earlier ones.
func NewDeviceSet(records ...Record) *DeviceSet {
	s := &DeviceSet{}
	for _, r := range records {
		s.Put(r)
	}
	return s
}

// Len returns the number of records.
func (s *DeviceSet) Len() int { return len(s.records) }

// Records returns a copy of the records in order.
func (s *DeviceSet) Records() []Record { return slices.Clone(s.records) }

// ByEntity finds the record of a host entity.
func (s *DeviceSet) ByEntity(entityID string) (Record, bool) {
	return s.find(func(r Record) bool { return r.EntityID == entityID })
}

// ByWireName finds the record the cloud addresses as name.
func (s *DeviceSet) ByWireName(name string) (Record, bool) {
	return s.find(func(r Record) bool { return r.WireName == name })
}

// ByLogicalID finds a record by logical id.
func (s *DeviceSet) ByLogicalID(id string) (Record, bool) {
	return s.find(func(r Record) bool { return r.LogicalID == id })
}

// ByDevice returns the records backed by a host device.
func (s *DeviceSet) ByDevice(deviceID string) []Record {
	var out []Record
	for _, r := range s.records {
		if r.DeviceID != "" && r.DeviceID == deviceID {
			out = append(out, r)
		}
	}
	return out
}

// ByEntry returns the records owned by a host config entry.
func (s *DeviceSet) ByEntry(entryID string) []Record {
	var out []Record
	for _, r := range s.records {
		if r.EntryID == entryID {
			out = append(out, r)
		}
	}
	return out
}

// EntityIDs returns the entity ids of all records in order.
func (s *DeviceSet) EntityIDs() []string {
	out := make([]string, len(s.records))
	for i, r := range s.records {
		out[i] = r.EntityID
	}
	return out
}

// Put inserts r or replaces the record with the same logical id in place.
//
// Returns:
//   - bool: true if r is new to the set
func (s *DeviceSet) Put(r Record) bool {
	i := slices.IndexFunc(s.records, func(x Record) bool { return x.LogicalID == r.LogicalID })
	if i >= 0 {
		s.records[i] = r
		return false
	}
	s.records = append(s.records, r)
	return true
}

// RemoveFunc deletes every record matching fn and returns them.
func (s *DeviceSet) RemoveFunc(fn func(Record) bool) []Record {
	var removed []Record
	kept := s.records[:0]
	for _, r := range s.records {
		if fn(r) {
			removed = append(removed, r)
			continue
		}
		kept = append(kept, r)
	}
	s.records = kept
	return removed
}

// Clear removes every record.
func (s *DeviceSet) Clear() { s.records = nil }

// MarshalJSON encodes the set as an ordered list.
func (s *DeviceSet) MarshalJSON() ([]byte, error) {
	if s.records == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(s.records)
}

// UnmarshalJSON decodes an ordered list, dropping records without a
// logical id.
func (s *DeviceSet) UnmarshalJSON(data []byte) error {
	var records []Record
	if err := json.Unmarshal(data, &records); err != nil {
		return err
	}
	s.records = nil
	for _, r := range records {
		if r.LogicalID == "" {
			continue
		}
		s.Put(r)
	}
	return nil
}

func (s *DeviceSet) find(fn func(Record) bool) (Record, bool) {
	for _, r := range s.records {
		if fn(r) {
			return r, true
		}
	}
	return Record{}, false
}

func logicalIDs(records []Record) []string {
	out := make([]string, len(records))
	for i, r := range records {
		out[i] = r.LogicalID
	}
	return out
}

package model

// Point is the write model of a single time-series sample.
// Timestamp is a unix timestamp in nanoseconds.
type Point struct {
	Timestamp uint64 `json:"timestamp"`
	OwnerID   string `json:"owner_id"`
	Qualifier string `json:"qualifier"`
	Data      []byte `json:"data"`
}

// Record is a stored point addressed by its row key.
type Record struct {
	ID        RowKey `json:"id"`
	Timestamp uint64 `json:"timestamp"`
	OwnerID   string `json:"owner_id"`
	Qualifier string `json:"qualifier"`
	Data      []byte `json:"data"`
}

// Meta describes a stored point without its payload. It is what range queries return.
type Meta struct {
	ID        RowKey `json:"id"`
	Timestamp uint64 `json:"timestamp"`
	OwnerID   string `json:"owner_id"`
	Qualifier string `json:"qualifier"`
}

// Meta strips the payload from the record.
func (r Record) Meta() Meta {
	return Meta{
		ID:        r.ID,
		Timestamp: r.Timestamp,
		OwnerID:   r.OwnerID,
		Qualifier: r.Qualifier,
	}
}

// RangeQuery selects points with Start <= Timestamp < End.
// Empty OwnerID or Qualifier leave that dimension unrestricted.
type RangeQuery struct {
	Start     uint64 `json:"start"`
	End       uint64 `json:"end"`
	OwnerID   string `json:"owner_id"`
	Qualifier string `json:"qualifier"`
}

// Matches reports whether m passes the owner and qualifier filters of q.
func (q RangeQuery) Matches(m Meta) bool {
	if q.OwnerID != "" && m.OwnerID != q.OwnerID {
		return false
	}
	if q.Qualifier != "" && m.Qualifier != q.Qualifier {
		return false
	}
	return true
}

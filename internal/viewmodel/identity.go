package viewmodel

// Identity carries a record id under either name the remote service uses.
// Embed it in record types.
type Identity struct {
	MongoID string `json:"_id,omitempty"`
	PlainID string `json:"id,omitempty"`
}

func (i Identity) RecordID() string {
	if i.MongoID != "" {
		return i.MongoID
	}
	return i.PlainID
}

// WithID returns i pointing at id.
func (i Identity) WithID(id string) Identity {
	if i.MongoID == "" && i.PlainID != "" {
		return Identity{PlainID: id}
	}
	return Identity{MongoID: id}
}

package proto

import "routing-node/internal/types"

// FindGroupResponse lists the peers a node believes are authoritative for
// Target. Members carry full public credentials so the receiver can verify
// each of them without another round trip. The type does not cap the group
// size; callers apply their own policy.
type FindGroupResponse struct {
	_      struct{} `cbor:",toarray"`
	Target types.Name
	Group  []types.PublicID
}

func (FindGroupResponse) Tag() uint64 { return TagFindGroupResponse }

// Verify checks every member's name against its keys.
func (r *FindGroupResponse) Verify() error {
	for i := range r.Group {
		if err := r.Group[i].Validate(); err != nil {
			return err
		}
	}
	return nil
}

package model

import "time"

// ResponseKey identifies one answerable slot. A candidate may revise the
// response stored under a key until the session completes.
type ResponseKey struct {
	Phase  Phase  `json:"phase" bson:"phase"`
	ItemID string `json:"itemId" bson:"itemId"`
	Block  Block  `json:"block" bson:"block"`
}

// Response is the candidate's selection for one key. Exactly one of Trait
// or Axis is set, depending on the phase.
type Response struct {
	Phase      Phase     `json:"phase" bson:"phase"`
	ItemID     string    `json:"itemId" bson:"itemId"`
	Block      Block     `json:"block" bson:"block"`
	Trait      Trait     `json:"trait,omitempty" bson:"trait,omitempty"`
	Axis       Axis      `json:"axis,omitempty" bson:"axis,omitempty"`
	AnsweredAt time.Time `json:"answeredAt" bson:"answeredAt"`
}

// Key returns the ledger key of r
func (r Response) Key() ResponseKey {
	return ResponseKey{Phase: r.Phase, ItemID: r.ItemID, Block: r.Block}
}

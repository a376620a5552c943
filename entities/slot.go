package entities

import "time"

// SlotClaim marks one standing slot as used for one local calendar day.
// The (brand, day, slot) key is inserted with a uniqueness guarantee, which
// is the compare-and-set that stops two invocations claiming the same
// occurrence. Usage resets naturally when the day key rolls over.
type SlotClaim struct {
	Brand     Brand  `gorm:"primaryKey" json:"brand"`
	Day       string `gorm:"primaryKey" json:"day"` // local calendar day, YYYY-MM-DD
	SlotIndex int    `gorm:"primaryKey" json:"slot_index"`

	WorkflowID string    `json:"workflow_id"`
	PublishAt  time.Time `json:"publish_at"`
	CreatedAt  time.Time `json:"created_at"`
}

package models

// EntityType is the investor category a funds-flow observation aggregates.
type EntityType string

const (
	EntityIndividual EntityType = "individual"
	EntityLegal      EntityType = "legal"
)

// FlowDirection encodes the sign of a funds-flow amount.
type FlowDirection string

const (
	FlowInflow  FlowDirection = "inflow"
	FlowOutflow FlowDirection = "outflow"
)

// FundsFlowRecord is one aggregated money-movement observation.
// (Date, EntityType, SecID) is the natural key; re-ingesting the same date
// overwrites rather than accumulates. SecID is empty for market-wide totals —
// the empty string participates in the unique index so the total row dedupes.
type FundsFlowRecord struct {
	Base
	Date         string        `gorm:"size:10;not null;uniqueIndex:uq_funds_flow_natural" json:"date"` // YYYY-MM-DD
	EntityType   EntityType    `gorm:"not null;uniqueIndex:uq_funds_flow_natural" json:"entity_type"`
	SecID        string        `gorm:"uniqueIndex:uq_funds_flow_natural" json:"secid,omitempty"`
	Market       string        `json:"market,omitempty"`
	Amount       float64       `gorm:"not null" json:"amount"` // always >= 0, sign lives in Direction
	Direction    FlowDirection `gorm:"not null" json:"direction"`
	LastSyncedAt int64         `gorm:"not null" json:"last_synced_at"`
}

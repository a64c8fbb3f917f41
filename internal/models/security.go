package models

// SecurityCategory is the exchange instrument category a sync job owns.
type SecurityCategory string

const (
	CategoryShares  SecurityCategory = "shares"
	CategoryFutures SecurityCategory = "futures"
	CategoryOptions SecurityCategory = "options"
)

// Security is a tradable instrument snapshot keyed by its exchange SECID.
// Rows are created on first ingest and only ever patched afterwards; numeric
// market fields are NULL when the exchange did not report a finite value.
type Security struct {
	Base
	SecID         string           `gorm:"not null;uniqueIndex" json:"secid"`
	ShortName     string           `json:"shortname,omitempty"`
	Category      SecurityCategory `gorm:"not null;index" json:"category"`
	Engine        string           `json:"engine,omitempty"`
	Market        string           `gorm:"index" json:"market,omitempty"`
	Board         string           `json:"board,omitempty"`
	LastPrice     *float64         `json:"last_price,omitempty"`
	Change        *float64         `json:"change,omitempty"`
	ChangePercent *float64         `json:"change_percent,omitempty"`
	Volume        *float64         `json:"volume,omitempty"`
	Value         *float64         `json:"value,omitempty"`
	Extra         map[string]any   `gorm:"serializer:json" json:"extra,omitempty"`
	LastSyncedAt  int64            `gorm:"not null" json:"last_synced_at"` // epoch millis
}

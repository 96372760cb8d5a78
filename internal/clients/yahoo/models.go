package yahoo

import "time"

// DailyClose is a single day's closing price for a symbol
type DailyClose struct {
	Date  time.Time `json:"date"`
	Close float64   `json:"close"`
}

// CompanyInfo holds descriptive company metadata from the quote API
type CompanyInfo struct {
	Symbol   string `json:"symbol"`
	Name     string `json:"name"`
	Sector   string `json:"sector"`
	Industry string `json:"industry"`
	Exchange string `json:"exchange"`
	Currency string `json:"currency"`
}

package dto

// BranchResponse 分校
type BranchResponse struct {
	ID                int64   `json:"id"`
	Name              string  `json:"name"`
	DefaultHourlyRate *string `json:"default_hourly_rate,omitempty"`
}

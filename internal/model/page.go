package model

// Page is the envelope returned by every list endpoint.
type Page[T any] struct {
	Offset     int `json:"offset"`
	Limit      int `json:"limit"`
	TotalCount int `json:"totalCount"`
	Data       []T `json:"data"`
}

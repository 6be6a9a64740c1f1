package service

// Removed is the payload for delete-style operations.
type Removed struct {
	Removed int64 `json:"removed"`
}

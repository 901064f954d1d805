package user

// Record is the stored user document. ID mirrors the node key on reads
// and is never persisted inside the document.
type Record struct {
	ID           string  `json:"id,omitempty"`
	Email        string  `json:"email"`
	Name         string  `json:"name"`
	Role         string  `json:"role"`
	Tour         string  `json:"tour,omitempty"`
	Lat          float64 `json:"lat,omitempty"`
	Lng          float64 `json:"lng,omitempty"`
	LastSeen     int64   `json:"last_seen,omitempty"`
	Visible      bool    `json:"visible"`
	PasswordHash string  `json:"password_hash,omitempty"`
}

// clean strips server-only fields before a record leaves the service.
func (r Record) clean() Record {
	r.PasswordHash = ""
	return r
}

type CreateRequest struct {
	Email    string   `json:"email"`
	Name     string   `json:"name"`
	Role     string   `json:"role"`
	Password string   `json:"password"`
	Lat      float64  `json:"lat"`
	Lng      float64  `json:"lng"`
	Visible  *bool    `json:"visible"`
}

// Update carries only the fields the caller wants to change.
type Update struct {
	Email    *string  `json:"email"`
	Name     *string  `json:"name"`
	Role     *string  `json:"role"`
	Lat      *float64 `json:"lat"`
	Lng      *float64 `json:"lng"`
	Visible  *bool    `json:"visible"`
	Password *string  `json:"password"`
}

type LocationUpdate struct {
	Lat      float64 `json:"lat"`
	Lng      float64 `json:"lng"`
	LastSeen int64   `json:"last_seen"`
}

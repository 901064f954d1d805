package tour

type Tour struct {
	ID           string `json:"id,omitempty"`
	Name         string `json:"name"`
	GuideUID     string `json:"guide_uid"`
	Description  string `json:"description,omitempty"`
	ImageURL     string `json:"image_url,omitempty"`
	Announcement string `json:"announcement,omitempty"`
	StartTime    int64  `json:"start_time,omitempty"`
	EndTime      int64  `json:"end_time,omitempty"`
}

// Update carries only the fields the caller wants to change.
type Update struct {
	Name         *string `json:"name"`
	Description  *string `json:"description"`
	ImageURL     *string `json:"image_url"`
	Announcement *string `json:"announcement"`
	StartTime    *int64  `json:"start_time"`
	EndTime      *int64  `json:"end_time"`
}

type Spot struct {
	ID          string  `json:"id,omitempty"`
	Name        string  `json:"name"`
	Description string  `json:"description,omitempty"`
	Lat         float64 `json:"lat"`
	Lng         float64 `json:"lng"`
	ImageURL    string  `json:"image_url,omitempty"`
}

type SpotUpdate struct {
	Name        *string  `json:"name"`
	Description *string  `json:"description"`
	Lat         *float64 `json:"lat"`
	Lng         *float64 `json:"lng"`
	ImageURL    *string  `json:"image_url"`
}

type Invitation struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// HistorySample is one entry of the tour's append-only location history.
type HistorySample struct {
	ID         string  `json:"id,omitempty"`
	UserID     string  `json:"user_id"`
	Lat        float64 `json:"lat"`
	Lng        float64 `json:"lng"`
	At         int64   `json:"at"`
	DistanceKm float64 `json:"distance_km,omitempty"`
}

// Detail is the tour read model: the record plus its member and spot
// snapshots.
type Detail struct {
	Tour
	Members []string `json:"members"`
	Spots   []Spot   `json:"spots"`
}

package api

// FamiliesResponse lists the served record families.
type FamiliesResponse struct {
	Families []string `json:"families"`
}

// RecordListResponse lists the ids of one family.
type RecordListResponse struct {
	Family string   `json:"family"`
	IDs    []string `json:"ids"`
	Total  int      `json:"total"`
}

package audit

import "time"

// TimelineFilters holds the basic audit timeline filters.
type TimelineFilters struct {
	From     time.Time
	To       time.Time
	Actor    string
	Resource string
	Action   string
	Page     int
	PageSize int
}

// WindowParams selects one slice of the filtered timeline.
type WindowParams struct {
	TimelineFilters
	Offset int
	Limit  int
}

// PagingInfo stores simple pagination metadata.
type PagingInfo struct {
	Page     int  `json:"page"`
	HasNext  bool `json:"hasNext"`
	PageSize int  `json:"pageSize"`
	PrevPage int  `json:"prevPage,omitempty"`
	NextPage int  `json:"nextPage,omitempty"`
}

// Result wraps a timeline page with paging information.
type Result struct {
	Rows   []Entry    `json:"results"`
	Paging PagingInfo `json:"paging"`
}

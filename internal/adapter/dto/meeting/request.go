package meeting

// ListMeetingsRequest represents query parameters for listing meetings
type ListMeetingsRequest struct {
	Status   string `query:"status" json:"status" validate:"omitempty,oneof=open ended"`
	Search   string `query:"search" json:"search"`
	Page     int    `query:"page" json:"page" validate:"min=1"`
	PageSize int    `query:"page_size" json:"page_size" validate:"min=1,max=100"`
}

// ListUtterancesRequest represents query parameters for listing utterances
type ListUtterancesRequest struct {
	Final string `query:"final" json:"final" validate:"omitempty,oneof=true false"`
}

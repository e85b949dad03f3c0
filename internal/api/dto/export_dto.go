package dto

// Response is the envelope of every API response
type Response struct {
	Status  string      `json:"status"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

type ExportPlaylistRequest struct {
	TargetEmail string `json:"targetEmail" binding:"required,email"`
}

type ExportAcceptedData struct {
	JobID string `json:"job_id"`
}

type ListJobsRequest struct {
	Status   string `form:"status"`
	PageSize int    `form:"page_size"`
	Cursor   string `form:"cursor"`
}

type ListJobsResponse struct {
	Jobs       []JobDTO `json:"jobs"`
	NextCursor string   `json:"next_cursor,omitempty"`
}

type JobDTO struct {
	JobID          string `json:"job_id"`
	PlaylistID     string `json:"playlist_id"`
	RequesterEmail string `json:"requester_email"`
	Status         string `json:"status"`
	Attempts       int    `json:"attempts"`
	LastError      string `json:"last_error,omitempty"`
	CreatedAt      string `json:"created_at"`
	UpdatedAt      string `json:"updated_at"`
}

type LikesData struct {
	Likes int `json:"likes"`
}

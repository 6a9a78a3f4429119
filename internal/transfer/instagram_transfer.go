package transfer

type GraphErrorBody struct {
	Message        string `json:"message"`
	Type           string `json:"type"`
	Code           int    `json:"code"`
	ErrorSubcode   int    `json:"error_subcode"`
	IsTransient    bool   `json:"is_transient"`
	ErrorUserTitle string `json:"error_user_title"`
	ErrorUserMsg   string `json:"error_user_msg"`
	FbtraceID      string `json:"fbtrace_id"`
}

type GraphErrorResponse struct {
	Error *GraphErrorBody `json:"error"`
}

// GraphIDResponse is returned by both /media and /media_publish.
type GraphIDResponse struct {
	ID string `json:"id"`
}

// ContainerStatusResponse is returned by GET /{container-id}?fields=status_code,status.
type ContainerStatusResponse struct {
	ID         string `json:"id"`
	StatusCode string `json:"status_code"`
	Status     string `json:"status"`
}

const (
	ContainerFinished   = "FINISHED"
	ContainerInProgress = "IN_PROGRESS"
	ContainerError      = "ERROR"
	ContainerExpired    = "EXPIRED"
	ContainerPublished  = "PUBLISHED"
)

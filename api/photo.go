package api

type Photo struct {
	ID              int64  `json:"id"`
	Reference       string `json:"reference,omitempty"`
	PayloadURL      string `json:"payload_url"`
	Title           string `json:"title"`
	DisplayTitle    string `json:"display_title"`
	Description     string `json:"description"`
	DescriptionHTML string `json:"description_html,omitempty"`
	Snippet         string `json:"snippet,omitempty"`
	CreatedAt       string `json:"created_at"`
}

// PhotoProto is the body of a create request.
// Reference is used by reference deployments, Image by blob deployments.
type PhotoProto struct {
	Reference   string `json:"reference"`
	Image       []byte `json:"image"`
	Title       string `json:"title"`
	Description string `json:"description"`
	CreatedAt   string `json:"created_at,omitempty"`
}

type PhotoEdit struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

type Created struct {
	ID int64 `json:"id"`
}

type RowsAffected struct {
	RowsAffected int64 `json:"rows_affected"`
}

type Error struct {
	Error string `json:"error"`
}

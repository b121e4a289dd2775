package record

// Field names shared by the pipeline stages
const (
	FieldIssueNumber   = "issue_number"
	FieldTitle         = "title"
	FieldBody          = "body"
	FieldBodyClean     = "body_clean"
	FieldLabels        = "labels"
	FieldCategory      = "category"
	FieldCategoryLLM   = "category_llm"
	FieldFinalCategory = "final_category"
	FieldComments      = "comments"
	FieldSummary       = "summary"
	FieldInsightBatch  = "insight_batch"
)

// Issue is the typed view of a prepared issue record
type Issue struct {
	IssueNumber   int       `json:"issue_number"`
	Title         string    `json:"title"`
	Body          string    `json:"body,omitempty"`
	BodyClean     string    `json:"body_clean"`
	Emojis        []string  `json:"emojis,omitempty"`
	Labels        []string  `json:"labels"`
	Author        string    `json:"author,omitempty"`
	CreatedAt     string    `json:"created_at,omitempty"`
	State         string    `json:"state,omitempty"`
	Comments      []Comment `json:"comments"`
	URL           string    `json:"url,omitempty"`
	Category      string    `json:"category,omitempty"`
	CategoryLLM   string    `json:"category_llm,omitempty"`
	FinalCategory string    `json:"final_category,omitempty"`
	Summary       string    `json:"summary,omitempty"`
}

// Comment is one issue comment after cleaning
type Comment struct {
	CommentID int64    `json:"comment_id,omitempty"`
	Author    string   `json:"author"`
	CreatedAt string   `json:"created_at"`
	Body      string   `json:"body,omitempty"`
	BodyClean string   `json:"body_clean,omitempty"`
	Emojis    []string `json:"emojis,omitempty"`
}

// Text returns the cleaned body, falling back to the raw body
func (c Comment) Text() string {
	if c.BodyClean != "" {
		return c.BodyClean
	}
	return c.Body
}

// Labels returns the labels field; absent, null or misshapen labels read as none
func (r *Record) Labels() []string {
	var labels []string
	if ok, err := r.Get(FieldLabels, &labels); !ok || err != nil {
		return nil
	}
	return labels
}

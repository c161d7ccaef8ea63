package models

// Project represents a portfolio project entry. Order controls ascending display order.
type Project struct {
	ID              string   `json:"id"`
	Title           string   `json:"title"`
	Description     string   `json:"description"`
	LongDescription *string  `json:"longDescription"`
	Image           *string  `json:"image"`
	ImageData       *string  `json:"imageData"`
	Tags            []string `json:"tags"`
	LiveURL         *string  `json:"liveUrl"`
	GithubURL       *string  `json:"githubUrl"`
	Order           int      `json:"order"`
}

// ProjectFields is the request shape for creating or patching a project.
// A field that was not sent has Set == false.
type ProjectFields struct {
	Title           Optional[string]     `json:"title"`
	Description     Optional[string]     `json:"description"`
	LongDescription Optional[string]     `json:"longDescription"`
	Image           Optional[string]     `json:"image"`
	ImageData       Optional[string]     `json:"imageData"`
	Tags            Optional[TagList]    `json:"tags"`
	LiveURL         Optional[string]     `json:"liveUrl"`
	GithubURL       Optional[string]     `json:"githubUrl"`
	Order           Optional[OrderValue] `json:"order"`
}

// Clone returns a deep copy so callers never share slices with the stored document.
func (p Project) Clone() Project {
	out := p
	out.LongDescription = cloneString(p.LongDescription)
	out.Image = cloneString(p.Image)
	out.ImageData = cloneString(p.ImageData)
	out.LiveURL = cloneString(p.LiveURL)
	out.GithubURL = cloneString(p.GithubURL)
	out.Tags = append([]string{}, p.Tags...)
	return out
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

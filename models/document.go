package models

// Document is the single persisted structure holding the profile and all projects.
type Document struct {
	Profile  *Profile  `json:"profile"`
	Projects []Project `json:"projects"`
}

// EmptyDocument is what a fresh or unreadable store starts from.
func EmptyDocument() *Document {
	return &Document{Profile: nil, Projects: []Project{}}
}

func (d *Document) Clone() *Document {
	out := &Document{Projects: make([]Project, 0, len(d.Projects))}
	if d.Profile != nil {
		p := d.Profile.Clone()
		out.Profile = &p
	}
	for _, project := range d.Projects {
		out.Projects = append(out.Projects, project.Clone())
	}
	return out
}

// ProjectIndex returns the position of the project with the given id, or -1.
func (d *Document) ProjectIndex(id string) int {
	for i := range d.Projects {
		if d.Projects[i].ID == id {
			return i
		}
	}
	return -1
}

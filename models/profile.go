package models

// Profile is the singleton site owner record.
type Profile struct {
	ID           string  `json:"id"`
	Name         string  `json:"name"`
	Title        string  `json:"title"`
	Bio          string  `json:"bio"`
	ProfileImage *string `json:"profileImage"`
	Email        string  `json:"email"`
	Phone        string  `json:"phone"`
	Location     string  `json:"location"`
	Github       *string `json:"github"`
	Linkedin     *string `json:"linkedin"`
	Twitter      *string `json:"twitter"`
}

// ProfileInput is a full replacement of the profile. Empty strings mean "not set".
type ProfileInput struct {
	Name         string `json:"name"`
	Title        string `json:"title"`
	Bio          string `json:"bio"`
	ProfileImage string `json:"profileImage"`
	Email        string `json:"email"`
	Phone        string `json:"phone"`
	Location     string `json:"location"`
	Github       string `json:"github"`
	Linkedin     string `json:"linkedin"`
	Twitter      string `json:"twitter"`
}

// PublicProfile is the subset exposed by the public site config endpoint.
type PublicProfile struct {
	Name         string  `json:"name"`
	Title        string  `json:"title"`
	Bio          string  `json:"bio"`
	ProfileImage *string `json:"profileImage"`
	Email        string  `json:"email"`
	Phone        string  `json:"phone"`
	Location     string  `json:"location"`
	Github       *string `json:"github"`
	Linkedin     *string `json:"linkedin"`
	Twitter      *string `json:"twitter"`
}

func (p Profile) Public() PublicProfile {
	return PublicProfile{
		Name:         p.Name,
		Title:        p.Title,
		Bio:          p.Bio,
		ProfileImage: cloneString(p.ProfileImage),
		Email:        p.Email,
		Phone:        p.Phone,
		Location:     p.Location,
		Github:       cloneString(p.Github),
		Linkedin:     cloneString(p.Linkedin),
		Twitter:      cloneString(p.Twitter),
	}
}

func (p Profile) Clone() Profile {
	out := p
	out.ProfileImage = cloneString(p.ProfileImage)
	out.Github = cloneString(p.Github)
	out.Linkedin = cloneString(p.Linkedin)
	out.Twitter = cloneString(p.Twitter)
	return out
}

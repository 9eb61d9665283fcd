package models

// OnlineUser is one member of the presence set.
type OnlineUser struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// TeamMember represents a colleague on the team-chat surface.
type TeamMember struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	AvatarURL string `json:"avatar_url,omitempty"`
}

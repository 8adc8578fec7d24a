package gpu

// Report summarizes the GPU driver stage
type Report struct {
	Repository      string   `json:"repository"`
	RepositoryAdded bool     `json:"repository_added"`
	Packages        []string `json:"packages"`
	Group           string   `json:"group"`
	User            string   `json:"user"`
	GroupAdded      bool     `json:"group_added"`
}

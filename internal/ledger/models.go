package ledger

// Entry records one asset that was downloaded and extracted successfully
type Entry struct {
	Version []string `json:"version"`
	URL     string   `json:"url"`
}

// State is the persisted ledger document
type State struct {
	Downloaded []Entry `json:"downloaded"`
	Branch     *string `json:"branch"`
}

// NewState creates an empty ledger state
func NewState() *State {
	return &State{
		Downloaded: []Entry{},
	}
}

// IsDownloaded reports whether url has a recorded entry
func (s *State) IsDownloaded(url string) bool {
	for _, e := range s.Downloaded {
		if e.URL == url {
			return true
		}
	}
	return false
}

// BranchURL returns the recorded branch snapshot URL, or "" if none
func (s *State) BranchURL() string {
	if s.Branch == nil {
		return ""
	}
	return *s.Branch
}

// URLs returns the recorded asset URLs in order
func (s *State) URLs() []string {
	urls := make([]string, 0, len(s.Downloaded))
	for _, e := range s.Downloaded {
		urls = append(urls, e.URL)
	}
	return urls
}

func (s *State) normalize() {
	if s.Downloaded == nil {
		s.Downloaded = []Entry{}
	}
	for i := range s.Downloaded {
		if s.Downloaded[i].Version == nil {
			s.Downloaded[i].Version = []string{}
		}
	}
}

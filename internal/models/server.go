package models

// ServerStatus represents the Nightscout server status
type ServerStatus struct {
	Status            string         `json:"status"`
	Name              string         `json:"name"`
	Version           string         `json:"version"`
	ServerTime        string         `json:"serverTime"`
	APIEnabled        bool           `json:"apiEnabled"`
	CareportalEnabled bool           `json:"careportalEnabled"`
	Settings          ServerSettings `json:"settings,omitempty"`
}

// ServerSettings contains the Nightscout server settings relevant for uploads
type ServerSettings struct {
	Units       string `json:"units"`
	TimeFormat  int    `json:"timeFormat"`
	Language    string `json:"language"`
	ShowPlugins string `json:"showPlugins"`
}

// AcceptsTreatments returns true if the server can take careportal uploads
func (s *ServerStatus) AcceptsTreatments() bool {
	return s.APIEnabled && s.CareportalEnabled
}

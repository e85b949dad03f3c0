package domain

// Song is one exported playlist entry
type Song struct {
	ID        string `json:"id" db:"id"`
	Title     string `json:"title" db:"title"`
	Performer string `json:"performer" db:"performer"`
}

// ExportedPlaylist is the playlist section of an export document
type ExportedPlaylist struct {
	ID    string `json:"id" db:"id"`
	Name  string `json:"name" db:"name"`
	Songs []Song `json:"songs"`
}

// PlaylistExport is the document mailed to the requester
type PlaylistExport struct {
	Playlist ExportedPlaylist `json:"playlist"`
}

package worker

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/cuongbtq/openmusic/internal/domain"
	"github.com/cuongbtq/openmusic/shared/mailer"
)

// renderExport builds the export mail for a playlist
func renderExport(to string, export *domain.PlaylistExport) (*mailer.Message, error) {
	if export.Playlist.Songs == nil {
		export.Playlist.Songs = []domain.Song{}
	}

	data, err := json.Marshal(export)
	if err != nil {
		return nil, fmt.Errorf("failed to render playlist export: %w", err)
	}

	var body strings.Builder
	fmt.Fprintf(&body, "Your export of playlist %q is attached.\n", export.Playlist.Name)
	fmt.Fprintf(&body, "Songs: %d\n", len(export.Playlist.Songs))

	return &mailer.Message{
		To:      to,
		Subject: "Export Playlist: " + export.Playlist.Name,
		Body:    body.String(),
		Attachments: []mailer.Attachment{
			{Filename: export.Playlist.ID + ".json", Data: data},
		},
	}, nil
}

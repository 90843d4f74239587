// Package sheetdir reads the club's member directory from a Google Sheet
// and mirrors it into guild roles: one colored role per status, school and
// event column.
package sheetdir

import (
	"context"
	"fmt"

	"google.golang.org/api/option"
	sheets "google.golang.org/api/sheets/v4"
)

// Header names the parser recognizes, matched diacritics-insensitively.
var (
	headerDiscord = []string{"Discord", "Discord ID"}
	headerStatus  = []string{"Functie", "Funcție"}
	headerSchool  = []string{"Scoala", "Școala"}
)

// Row is one directory entry. Events holds the remaining sheet columns,
// keyed by header, with participation already decoded.
type Row struct {
	DiscordID string
	Status    string
	School    string
	Events    map[string]bool
}

// Directory reads rows from a single sheet range.
type Directory struct {
	service       *sheets.Service
	spreadsheetID string
	readRange     string
}

func NewDirectory(ctx context.Context, credentialsJSON []byte, spreadsheetID, readRange string) (*Directory, error) {
	service, err := sheets.NewService(ctx,
		option.WithCredentialsJSON(credentialsJSON),
		option.WithScopes(sheets.SpreadsheetsReadonlyScope))
	if err != nil {
		return nil, fmt.Errorf("unable to create sheets service: %w", err)
	}
	return &Directory{
		service:       service,
		spreadsheetID: spreadsheetID,
		readRange:     readRange,
	}, nil
}

// Rows fetches and parses the directory. The first sheet row is the header;
// rows without a Discord id are skipped.
func (d *Directory) Rows(ctx context.Context) ([]Row, error) {
	resp, err := d.service.Spreadsheets.Values.Get(d.spreadsheetID, d.readRange).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("unable to read directory sheet: %w", err)
	}
	if len(resp.Values) == 0 {
		return nil, fmt.Errorf("directory sheet %q is empty", d.readRange)
	}
	return parseRows(resp.Values)
}

func parseRows(values [][]interface{}) ([]Row, error) {
	header := make([]string, len(values[0]))
	for i, cell := range values[0] {
		header[i] = fmt.Sprint(cell)
	}

	discordCol, statusCol, schoolCol := -1, -1, -1
	eventCols := map[int]string{}
	for i, name := range header {
		switch {
		case canonicalName(name, headerDiscord) != "":
			discordCol = i
		case canonicalName(name, headerStatus) != "":
			statusCol = i
		case canonicalName(name, headerSchool) != "":
			schoolCol = i
		default:
			eventCols[i] = name
		}
	}
	if discordCol < 0 {
		return nil, fmt.Errorf("directory sheet has no Discord column, got header %v", header)
	}

	rows := []Row{}
	for _, raw := range values[1:] {
		cell := func(i int) string {
			if i < 0 || i >= len(raw) {
				return ""
			}
			return fmt.Sprint(raw[i])
		}

		row := Row{
			DiscordID: cell(discordCol),
			Status:    cell(statusCol),
			School:    cell(schoolCol),
			Events:    map[string]bool{},
		}
		if row.DiscordID == "" {
			continue
		}
		for i, event := range eventCols {
			if truthy(cell(i)) {
				row.Events[event] = true
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}

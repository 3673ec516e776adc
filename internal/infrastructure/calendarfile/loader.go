// Package calendarfile loads jurisdiction holiday calendars from YAML.
package calendarfile

import (
	"bytes"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/turtacn/NoticeFlow/internal/domain/calendar"
	pkgerrors "github.com/turtacn/NoticeFlow/pkg/errors"
)

// Holiday is one non-business day.
type Holiday struct {
	Date string `yaml:"date"`
	Name string `yaml:"name,omitempty"`
}

// UnmarshalYAML accepts either a bare date or a {date, name} mapping.
func (h *Holiday) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		h.Date = node.Value
		return nil
	}
	type plain Holiday
	return node.Decode((*plain)(h))
}

// File is the on-disk layout:
//
//	aliases:
//	  TJ-MG: TJMG
//	jurisdictions:
//	  TJMG:
//	    - 2025-01-01
//	    - date: 2025-04-21
//	      name: Tiradentes
type File struct {
	Aliases       map[string]string    `yaml:"aliases"`
	Jurisdictions map[string][]Holiday `yaml:"jurisdictions"`
}

// Load reads path and builds a Registry. extraAliases win over the file's
// own aliases. An empty path yields a weekends-only registry.
func Load(path string, extraAliases map[string]string) (*calendar.Registry, error) {
	if path == "" {
		return calendar.NewRegistry(nil, extraAliases), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, pkgerrors.Wrap(err, pkgerrors.ErrCodeCalendarSourceInvalid, "failed to open holiday file").
			WithDetail("path=" + path)
	}
	defer f.Close()
	return Decode(f, extraAliases)
}

// Decode parses a holiday file from r.
func Decode(r io.Reader, extraAliases map[string]string) (*calendar.Registry, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, pkgerrors.Wrap(err, pkgerrors.ErrCodeCalendarSourceInvalid, "failed to read holiday file")
	}

	var file File
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil && err != io.EOF {
		return nil, pkgerrors.Wrap(err, pkgerrors.ErrCodeCalendarSourceInvalid, "malformed holiday file")
	}

	holidays := make(map[string][]time.Time, len(file.Jurisdictions))
	for code, days := range file.Jurisdictions {
		dates := make([]time.Time, 0, len(days))
		for _, h := range days {
			d, err := time.Parse("2006-01-02", h.Date)
			if err != nil {
				return nil, pkgerrors.Wrap(err, pkgerrors.ErrCodeCalendarSourceInvalid, "invalid holiday date").
					WithDetail("jurisdiction=" + code + " date=" + h.Date)
			}
			dates = append(dates, d)
		}
		holidays[code] = dates
	}

	aliases := make(map[string]string, len(file.Aliases)+len(extraAliases))
	for k, v := range file.Aliases {
		aliases[k] = v
	}
	for k, v := range extraAliases {
		aliases[k] = v
	}
	return calendar.NewRegistry(holidays, aliases), nil
}

// Package source reads the court notification feed, live over HTTP or
// replayed from the response archive.
package source

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/turtacn/NoticeFlow/internal/domain/notice"
	"github.com/turtacn/NoticeFlow/pkg/errors"
)

type feedResponse struct {
	Status string     `json:"status"`
	Count  int        `json:"count"`
	Items  []feedItem `json:"items"`
}

type feedItem struct {
	ID                     flexString  `json:"id"`
	PublicationDate        string      `json:"data_disponibilizacao"`
	CourtCode              string      `json:"siglaTribunal"`
	CommunicationType      string      `json:"tipoComunicacao"`
	Text                   string      `json:"texto"`
	ProcessNumber          string      `json:"numero_processo"`
	FormattedProcessNumber string      `json:"numeroprocessocommascara"`
	OrganName              string      `json:"nomeOrgao"`
	ClassName              string      `json:"nomeClasse"`
	CommunicationNumber    int         `json:"numeroComunicacao"`
	Hash                   string      `json:"hash"`
	DocumentType           string      `json:"tipoDocumento"`
	Medium                 string      `json:"meio"`
	MediumFull             string      `json:"meiocompleto"`
	Link                   string      `json:"link"`
	Parties                []feedParty `json:"destinatarios"`
}

type feedParty struct {
	Pole string `json:"polo"`
	Name string `json:"nome"`
}

// flexString accepts a JSON string or number. The feed has served ids as both.
type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}
	if string(b) == "null" {
		*f = ""
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*f = flexString(n.String())
	return nil
}

// publicationLayouts are tried in order; the feed uses the first.
var publicationLayouts = []string{"2006-01-02", time.RFC3339, "02/01/2006"}

func parsePublicationDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range publicationLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), nil
		}
	}
	return time.Time{}, errors.New(errors.ErrCodeSourceBadResponse, "unparseable publication date").WithDetail(s)
}

// Decode parses a feed response body. Items without an id or with a bad
// publication date fail the whole response: the feed either answers
// coherently or not at all.
func Decode(body []byte) (*notice.FetchResult, error) {
	var resp feedResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSourceBadResponse, "malformed feed response")
	}

	out := &notice.FetchResult{
		Status:  resp.Status,
		Count:   resp.Count,
		Records: make([]notice.RawRecord, 0, len(resp.Items)),
		Body:    body,
	}
	for i, it := range resp.Items {
		if it.ID == "" {
			return nil, errors.New(errors.ErrCodeSourceBadResponse, "feed item without id").WithDetail("index=" + strconv.Itoa(i))
		}
		pub, err := parsePublicationDate(it.PublicationDate)
		if err != nil {
			return nil, err
		}
		rec := notice.RawRecord{
			ExternalID:             string(it.ID),
			PublicationDate:        pub,
			CourtCode:              it.CourtCode,
			CommunicationType:      it.CommunicationType,
			Text:                   it.Text,
			ProcessNumber:          it.ProcessNumber,
			FormattedProcessNumber: it.FormattedProcessNumber,
			OrganName:              it.OrganName,
			ClassName:              it.ClassName,
			CommunicationNumber:    it.CommunicationNumber,
			Hash:                   it.Hash,
			DocumentType:           it.DocumentType,
			Medium:                 it.Medium,
			MediumFull:             it.MediumFull,
			Link:                   it.Link,
		}
		for _, p := range it.Parties {
			rec.Parties = append(rec.Parties, notice.Party{Pole: p.Pole, Name: p.Name})
		}
		out.Records = append(out.Records, rec)
	}
	if out.Count == 0 {
		out.Count = len(out.Records)
	}
	return out, nil
}

package ingestion

import (
	"strings"

	"github.com/turtacn/NoticeFlow/internal/domain/deadline"
	"github.com/turtacn/NoticeFlow/internal/domain/notice"
)

// Party poles used by the feed.
const (
	poleActive  = "A"
	polePassive = "P"
)

// BuildRecords maps a fetched record and its deadline into the rows persisted
// for it. Appearance-anchored records carry appearance fields and no due
// date; all others carry a due date and no appearance fields.
func BuildRecords(r notice.Recipient, rec *notice.RawRecord, res notice.ExtractionResult, det deadline.Determination, ch notice.Channel) (*notice.Case, *notice.Notification, *notice.Dispatch) {
	plaintiff, defendant := parties(rec.Parties)
	if defendant == "" {
		defendant = res.Defendant
	}

	c := &notice.Case{
		ProcessNumber:          rec.ProcessNumber,
		FormattedProcessNumber: rec.FormattedProcessNumber,
		OrganName:              rec.OrganName,
		Jurisdiction:           det.Jurisdiction,
		ClassName:              rec.ClassName,
		Plaintiff:              plaintiff,
		Defendant:              defendant,
		Instance:               res.Instance,
		Category:               res.Category,
	}
	if c.FormattedProcessNumber == "" {
		c.FormattedProcessNumber = rec.ProcessNumber
	}

	n := &notice.Notification{
		ExternalID:            rec.ExternalID,
		RecipientID:           r.ID,
		PublicationDate:       rec.PublicationDate,
		DeadlineDays:          det.Days,
		RuleID:                det.RuleID,
		Text:                  rec.Text,
		ActType:               res.ActType,
		LegalBasis:            res.LegalBasis,
		Summary:               res.Summary,
		PracticalConsequences: res.PracticalConsequences,
		SuggestedActions:      res.SuggestedActions,
		SystemStatus:          res.SystemStatus,
		SmallClaimsCourt:      res.SmallClaimsCourt,
		SmallClaimsAppeal:     res.SmallClaimsAppeal,
		SmallClaimsCounter:    res.SmallClaimsCounterArguments,
		Hash:                  rec.Hash,
		CommunicationNumber:   rec.CommunicationNumber,
		Link:                  rec.Link,
		DocumentType:          rec.DocumentType,
		Status:                notice.StatusPending,
	}
	if det.Anchor == deadline.AnchorAppearance {
		n.AppearanceType = res.AppearanceType
		n.AppearanceDate = res.AppearanceDate
		n.AppearanceTime = res.AppearanceTime
	} else {
		n.DueDate = det.DueDate
	}

	d := &notice.Dispatch{
		Channel: ch,
		Status:  notice.DispatchPending,
	}
	return c, n, d
}

// parties joins the names on each pole of the record.
func parties(ps []notice.Party) (plaintiff, defendant string) {
	var active, passive []string
	for _, p := range ps {
		name := strings.TrimSpace(p.Name)
		if name == "" {
			continue
		}
		switch strings.ToUpper(strings.TrimSpace(p.Pole)) {
		case poleActive:
			active = append(active, name)
		case polePassive:
			passive = append(passive, name)
		}
	}
	return strings.Join(active, ", "), strings.Join(passive, ", ")
}

package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/turtacn/NoticeFlow/internal/domain/calendar"
	"github.com/turtacn/NoticeFlow/internal/domain/notice"
	"github.com/turtacn/NoticeFlow/pkg/errors"
)

const dateLayout = "2006-01-02"

// RecipientReader resolves recipients by id.
type RecipientReader interface {
	GetByID(ctx context.Context, id string) (*notice.Recipient, error)
}

// NotificationReader lists a recipient's notifications by publication day.
type NotificationReader interface {
	ListByPublicationDate(ctx context.Context, recipientID string, day time.Time) ([]notice.NotificationView, error)
}

// NotificationHandler serves the notification query endpoint.
type NotificationHandler struct {
	recipients    RecipientReader
	notifications NotificationReader
	loc           *time.Location
	now           func() time.Time
}

// NewNotificationHandler creates a handler resolving "today" in loc.
func NewNotificationHandler(recipients RecipientReader, notifications NotificationReader, loc *time.Location) *NotificationHandler {
	if loc == nil {
		loc = time.UTC
	}
	return &NotificationHandler{recipients: recipients, notifications: notifications, loc: loc, now: time.Now}
}

// RegisterRoutes registers the query routes on an /api/v1 group.
func (h *NotificationHandler) RegisterRoutes(r gin.IRoutes) {
	r.GET("/notifications", h.List)
}

// NotificationDTO is the wire form of a NotificationView.
type NotificationDTO struct {
	ID               string     `json:"id"`
	ExternalID       string     `json:"external_id"`
	ProcessNumber    string     `json:"process_number"`
	Court            string     `json:"court,omitempty"`
	OrganName        string     `json:"organ_name,omitempty"`
	PublicationDate  string     `json:"publication_date"`
	DeadlineDays     int        `json:"deadline_days"`
	RuleID           string     `json:"rule_id,omitempty"`
	DueDate          string     `json:"due_date,omitempty"`
	AppearanceType   string     `json:"appearance_type,omitempty"`
	AppearanceDate   string     `json:"appearance_date,omitempty"`
	AppearanceTime   string     `json:"appearance_time,omitempty"`
	ActType          string     `json:"act_type,omitempty"`
	Summary          string     `json:"summary,omitempty"`
	SuggestedActions []string   `json:"suggested_actions,omitempty"`
	Status           string     `json:"status"`
	Link             string     `json:"link,omitempty"`
	CreatedAt        *time.Time `json:"created_at,omitempty"`
}

// NotificationListResponse is returned by List.
type NotificationListResponse struct {
	RecipientID   string            `json:"recipient_id"`
	Date          string            `json:"date"`
	Count         int               `json:"count"`
	Notifications []NotificationDTO `json:"notifications"`
}

// List handles GET /notifications?recipientId=&date=YYYY-MM-DD. The date
// defaults to today.
func (h *NotificationHandler) List(c *gin.Context) {
	recipientID := c.Query("recipientId")
	if recipientID == "" {
		respondError(c, errors.InvalidParam("recipientId is required"))
		return
	}

	day := calendar.Day(h.now().In(h.loc))
	if raw := c.Query("date"); raw != "" {
		parsed, err := time.Parse(dateLayout, raw)
		if err != nil {
			respondError(c, errors.InvalidParam("date must be formatted as YYYY-MM-DD").WithDetail(raw))
			return
		}
		day = parsed
	}

	ctx := c.Request.Context()
	if _, err := h.recipients.GetByID(ctx, recipientID); err != nil {
		respondError(c, err)
		return
	}
	views, err := h.notifications.ListByPublicationDate(ctx, recipientID, day)
	if err != nil {
		respondError(c, err)
		return
	}

	resp := NotificationListResponse{
		RecipientID:   recipientID,
		Date:          day.Format(dateLayout),
		Count:         len(views),
		Notifications: make([]NotificationDTO, 0, len(views)),
	}
	for _, v := range views {
		resp.Notifications = append(resp.Notifications, toNotificationDTO(v))
	}
	respondOK(c, http.StatusOK, resp)
}

func toNotificationDTO(v notice.NotificationView) NotificationDTO {
	dto := NotificationDTO{
		ID:               v.ID,
		ExternalID:       v.ExternalID,
		ProcessNumber:    v.Case.FormattedProcessNumber,
		Court:            v.Case.Jurisdiction,
		OrganName:        v.Case.OrganName,
		PublicationDate:  v.PublicationDate.Format(dateLayout),
		DeadlineDays:     v.DeadlineDays,
		RuleID:           v.RuleID,
		AppearanceTime:   v.AppearanceTime,
		ActType:          v.ActType,
		Summary:          v.Summary,
		SuggestedActions: v.SuggestedActions,
		Status:           string(v.Status),
		Link:             v.Link,
	}
	if dto.ProcessNumber == "" {
		dto.ProcessNumber = v.Case.ProcessNumber
	}
	if v.DueDate != nil {
		dto.DueDate = v.DueDate.Format(dateLayout)
	}
	if v.IsAppearance() {
		dto.AppearanceType = string(v.AppearanceType)
		dto.AppearanceDate = v.AppearanceDate.Format(dateLayout)
	}
	if !v.CreatedAt.IsZero() {
		created := v.CreatedAt
		dto.CreatedAt = &created
	}
	return dto
}

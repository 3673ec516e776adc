package notice

import "time"

// Party is one addressee listed on a source record.
type Party struct {
	Pole string
	Name string
}

// RawRecord is one item returned by the court notification feed.
type RawRecord struct {
	ExternalID             string
	PublicationDate        time.Time
	CourtCode              string
	CommunicationType      string
	Text                   string
	ProcessNumber          string
	FormattedProcessNumber string
	OrganName              string
	ClassName              string
	CommunicationNumber    int
	Hash                   string
	DocumentType           string
	Medium                 string
	MediumFull             string
	Link                   string
	Parties                []Party
}

// FetchQuery selects the records published for one recipient on one day.
type FetchQuery struct {
	RecipientName string
	From          time.Time
	To            time.Time
}

// FetchResult is the feed's answer to a FetchQuery.
type FetchResult struct {
	// Status is the feed's own status flag; anything but "success" is a failure.
	Status     string
	Count      int
	Records    []RawRecord
	HTTPStatus int
	RequestID  string
	Latency    time.Duration
	// Params are the query parameters sent, recorded on the QueryLog.
	Params map[string]string
	// Body is the undecoded response, kept for the archive.
	Body []byte
}

// OK reports whether the feed flagged the response as successful.
func (r *FetchResult) OK() bool {
	return r != nil && r.Status == "success"
}

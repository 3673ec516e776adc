package notice

import "time"

// AppearanceType is a scheduled in-person obligation. The zero value means
// the record carries no appearance.
type AppearanceType string

const (
	AppearanceNone       AppearanceType = ""
	AppearanceHearing    AppearanceType = "HEARING"
	AppearanceExpertExam AppearanceType = "EXPERT_EXAM"
	AppearanceTrial      AppearanceType = "TRIAL"
)

// Valid reports whether a is one of the known appearance kinds.
func (a AppearanceType) Valid() bool {
	switch a {
	case AppearanceHearing, AppearanceExpertExam, AppearanceTrial:
		return true
	}
	return false
}

// Instance is the court instance handling the case.
type Instance string

const (
	InstanceFirst  Instance = "FIRST"
	InstanceSecond Instance = "SECOND"
)

// Category is the case category used by the deadline table.
type Category string

const (
	CategoryCivil       Category = "CIVIL"
	CategorySmallClaims Category = "SMALL_CLAIMS"
	CategoryCriminal    Category = "CRIMINAL"
	CategoryLabor       Category = "LABOR"
)

// ExtractionResult is the structured reading of one record's text.
type ExtractionResult struct {
	ActType string `json:"act_type"`
	// ExplicitDeadlineDays is set when the text states the deadline itself.
	ExplicitDeadlineDays        *int           `json:"explicit_deadline_days,omitempty"`
	LegalBasis                  string         `json:"legal_basis"`
	Summary                     string         `json:"summary"`
	Defendant                   string         `json:"defendant"`
	PracticalConsequences       string         `json:"practical_consequences"`
	SuggestedActions            []string       `json:"suggested_actions"`
	SystemStatus                string         `json:"system_status"`
	SmallClaimsCourt            bool           `json:"small_claims_court"`
	SmallClaimsAppeal           bool           `json:"small_claims_appeal"`
	SmallClaimsCounterArguments bool           `json:"small_claims_counter_arguments"`
	AppearanceType              AppearanceType `json:"appearance_type,omitempty"`
	AppearanceDate              *time.Time     `json:"appearance_date,omitempty"`
	// AppearanceTime is "HH:MM" local time, empty when unknown.
	AppearanceTime string   `json:"appearance_time,omitempty"`
	Instance       Instance `json:"instance"`
	Category       Category `json:"category"`
}

// HasAppearance reports whether the result describes a dated appearance.
func (r ExtractionResult) HasAppearance() bool {
	return r.AppearanceType.Valid() && r.AppearanceDate != nil
}

// ExtractionUsage is the accounting attached to every extraction call.
type ExtractionUsage struct {
	Model            string
	PromptTokens     int
	CompletionTokens int
	Latency          time.Duration
}

// ExtractionFailure explains why a record could not be read.
type ExtractionFailure struct {
	Reason string
	// Raw is the collaborator's reply, kept for diagnosis.
	Raw string
}

// ExtractionOutcome is either a result or a failure, never both. Callers
// narrow it once with Result.
type ExtractionOutcome struct {
	result  *ExtractionResult
	failure *ExtractionFailure
	Usage   ExtractionUsage
}

// Extracted wraps a successful result.
func Extracted(r ExtractionResult, usage ExtractionUsage) ExtractionOutcome {
	return ExtractionOutcome{result: &r, Usage: usage}
}

// ExtractionFailed wraps a failure.
func ExtractionFailed(reason, raw string, usage ExtractionUsage) ExtractionOutcome {
	return ExtractionOutcome{failure: &ExtractionFailure{Reason: reason, Raw: raw}, Usage: usage}
}

// Result returns the result and true, or the failure and false.
func (o ExtractionOutcome) Result() (ExtractionResult, ExtractionFailure, bool) {
	if o.result != nil {
		return *o.result, ExtractionFailure{}, true
	}
	if o.failure != nil {
		return ExtractionResult{}, *o.failure, false
	}
	return ExtractionResult{}, ExtractionFailure{Reason: "empty outcome"}, false
}

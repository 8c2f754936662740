package pipeline

import (
	"fmt"
	"strconv"
	"strings"

	"leadnest/models"

	"github.com/badoux/checkmail"
	"gorm.io/gorm"
)

// Fixed CSV column order for lead imports.
const (
	colName = iota
	colEmail
	colPhone
	colAge
	colJob
	colMarital
	colEducation
	colBalance
	colHousing
	colLoan
	colContact
	colDay
	colMonth
	colDuration
	colCampaign
	colPDays
	colPrevious
	colPOutcome

	// NumColumns is the expected field count of one lead row.
	NumColumns = 18
)

var monthIndex = map[string]int{
	"jan": 1, "feb": 2, "mar": 3, "apr": 4, "may": 5, "jun": 6,
	"jul": 7, "aug": 8, "sep": 9, "oct": 10, "nov": 11, "dec": 12,
}

// DetailInput carries the normalized demographic/history features of one row.
type DetailInput struct {
	Balance           int
	HousingLoan       bool
	PersonalLoan      bool
	LastContactDay    int
	LastContactMonth  int
	CallDuration      int
	CampaignContacts  int
	PreviousDays      int
	PreviousContacts  int
	PreviousOutcomeID *uint
}

// LeadInput is the normalized candidate lead produced from one CSV record.
type LeadInput struct {
	Name            string
	Email           string
	Phone           string
	Age             int
	JobID           *uint
	MaritalStatusID *uint
	EducationID     *uint
	ContactMethodID *uint
	Detail          DetailInput
}

// FeatureVector flattens the row into the feature map sent to the scoring model.
func (in *LeadInput) FeatureVector() map[string]interface{} {
	features := map[string]interface{}{
		"age":                in.Age,
		"balance":            in.Detail.Balance,
		"housing_loan":       boolToInt(in.Detail.HousingLoan),
		"personal_loan":      boolToInt(in.Detail.PersonalLoan),
		"last_contact_day":   in.Detail.LastContactDay,
		"last_contact_month": in.Detail.LastContactMonth,
		"call_duration":      in.Detail.CallDuration,
		"campaign_contacts":  in.Detail.CampaignContacts,
		"previous_days":      in.Detail.PreviousDays,
		"previous_contacts":  in.Detail.PreviousContacts,
	}
	features["job_id"] = derefOrZero(in.JobID)
	features["marital_status_id"] = derefOrZero(in.MaritalStatusID)
	features["education_id"] = derefOrZero(in.EducationID)
	features["previous_outcome_id"] = derefOrZero(in.Detail.PreviousOutcomeID)
	return features
}

// LookupSet holds the pre-loaded, case-insensitive name→id maps used to
// coerce categorical CSV text into foreign keys.
type LookupSet struct {
	Jobs       map[string]uint
	Maritals   map[string]uint
	Educations map[string]uint
	Contacts   map[string]uint
	Outcomes   map[string]uint
}

// LoadLookups reads the lookup tables once per upload.
func LoadLookups(db *gorm.DB) (*LookupSet, error) {
	set := &LookupSet{
		Jobs:       make(map[string]uint),
		Maritals:   make(map[string]uint),
		Educations: make(map[string]uint),
		Contacts:   make(map[string]uint),
		Outcomes:   make(map[string]uint),
	}

	var jobs []models.Job
	if err := db.Find(&jobs).Error; err != nil {
		return nil, err
	}
	for _, row := range jobs {
		set.Jobs[strings.ToLower(row.Name)] = row.ID
	}

	var maritals []models.MaritalStatus
	if err := db.Find(&maritals).Error; err != nil {
		return nil, err
	}
	for _, row := range maritals {
		set.Maritals[strings.ToLower(row.Name)] = row.ID
	}

	var educations []models.Education
	if err := db.Find(&educations).Error; err != nil {
		return nil, err
	}
	for _, row := range educations {
		set.Educations[strings.ToLower(row.Name)] = row.ID
	}

	var contacts []models.ContactMethod
	if err := db.Find(&contacts).Error; err != nil {
		return nil, err
	}
	for _, row := range contacts {
		set.Contacts[strings.ToLower(row.Name)] = row.ID
	}

	var outcomes []models.PreviousOutcome
	if err := db.Find(&outcomes).Error; err != nil {
		return nil, err
	}
	for _, row := range outcomes {
		set.Outcomes[strings.ToLower(row.Name)] = row.ID
	}

	return set, nil
}

// coerce maps categorical text to its lookup id. Blank text maps to no id;
// unrecognized text falls back to the table's "unknown" row if one exists.
func coerce(table map[string]uint, raw string) (*uint, bool) {
	name := strings.ToLower(strings.TrimSpace(raw))
	if name == "" {
		return nil, true
	}
	if id, ok := table[name]; ok {
		return &id, true
	}
	if id, ok := table[models.UnknownName]; ok {
		return &id, true
	}
	return nil, false
}

// IsHeaderRow reports whether a record looks like the import header.
func IsHeaderRow(record []string) bool {
	if len(record) == 0 {
		return false
	}
	first := strings.ToLower(strings.TrimSpace(record[0]))
	return first == "name" || first == "lead_name"
}

// ParseRow validates and normalizes one CSV record. It is pure: all lookup
// data is pre-loaded. It returns either a normalized input or a RowError
// naming the offending line and reason.
func ParseRow(line int, record []string, lookups *LookupSet) (*LeadInput, *RowError) {
	if len(record) != NumColumns {
		return nil, &RowError{Line: line, Reason: fmt.Sprintf("expected %d columns, got %d", NumColumns, len(record))}
	}

	name := strings.TrimSpace(record[colName])
	if name == "" {
		return nil, &RowError{Line: line, Reason: "lead_name is required"}
	}

	email := strings.ToLower(strings.TrimSpace(record[colEmail]))
	if email == "" {
		return nil, &RowError{Line: line, Reason: "lead_email is required"}
	}
	if err := checkmail.ValidateFormat(email); err != nil {
		return nil, &RowError{Line: line, Reason: "lead_email is not a valid email address"}
	}

	input := &LeadInput{
		Name:  name,
		Email: email,
		Phone: strings.TrimSpace(record[colPhone]),
	}

	if raw := strings.TrimSpace(record[colAge]); raw != "" {
		age, err := strconv.Atoi(raw)
		if err != nil || age <= 0 {
			return nil, &RowError{Line: line, Reason: "age must be a positive integer"}
		}
		input.Age = age
	}

	var ok bool
	if input.JobID, ok = coerce(lookups.Jobs, record[colJob]); !ok {
		return nil, &RowError{Line: line, Reason: fmt.Sprintf("unknown job %q", record[colJob])}
	}
	if input.MaritalStatusID, ok = coerce(lookups.Maritals, record[colMarital]); !ok {
		return nil, &RowError{Line: line, Reason: fmt.Sprintf("unknown marital status %q", record[colMarital])}
	}
	if input.EducationID, ok = coerce(lookups.Educations, record[colEducation]); !ok {
		return nil, &RowError{Line: line, Reason: fmt.Sprintf("unknown education %q", record[colEducation])}
	}
	// Contact methods carry no "unknown" row, so unrecognized text rejects the row.
	if input.ContactMethodID, ok = coerce(lookups.Contacts, record[colContact]); !ok {
		return nil, &RowError{Line: line, Reason: fmt.Sprintf("unknown contact method %q", record[colContact])}
	}
	if input.Detail.PreviousOutcomeID, ok = coerce(lookups.Outcomes, record[colPOutcome]); !ok {
		return nil, &RowError{Line: line, Reason: fmt.Sprintf("unknown previous outcome %q", record[colPOutcome])}
	}

	var err *RowError
	if input.Detail.Balance, err = parseIntField(line, "balance", record[colBalance], 0); err != nil {
		return nil, err
	}
	input.Detail.HousingLoan = parseYes(record[colHousing])
	input.Detail.PersonalLoan = parseYes(record[colLoan])
	if input.Detail.LastContactDay, err = parseIntField(line, "last_contact_day", record[colDay], 0); err != nil {
		return nil, err
	}
	if input.Detail.LastContactMonth, err = parseMonth(line, record[colMonth]); err != nil {
		return nil, err
	}
	if input.Detail.CallDuration, err = parseIntField(line, "call_duration", record[colDuration], 0); err != nil {
		return nil, err
	}
	if input.Detail.CampaignContacts, err = parseIntField(line, "campaign_contacts", record[colCampaign], 0); err != nil {
		return nil, err
	}
	if input.Detail.PreviousDays, err = parseIntField(line, "previous_days", record[colPDays], -1); err != nil {
		return nil, err
	}
	if input.Detail.PreviousContacts, err = parseIntField(line, "previous_contacts", record[colPrevious], 0); err != nil {
		return nil, err
	}

	return input, nil
}

func parseIntField(line int, field, raw string, blank int) (int, *RowError) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return blank, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, &RowError{Line: line, Reason: fmt.Sprintf("%s must be an integer", field)}
	}
	return value, nil
}

func parseMonth(line int, raw string) (int, *RowError) {
	name := strings.ToLower(strings.TrimSpace(raw))
	if name == "" {
		return 0, nil
	}
	if len(name) > 3 {
		name = name[:3]
	}
	if idx, ok := monthIndex[name]; ok {
		return idx, nil
	}
	return 0, &RowError{Line: line, Reason: fmt.Sprintf("unknown month %q", raw)}
}

func parseYes(raw string) bool {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "yes", "y", "true", "1":
		return true
	}
	return false
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func derefOrZero(id *uint) uint {
	if id == nil {
		return 0
	}
	return *id
}

package biometry

import (
	"encoding/json"
	"time"
)

// Candidate is one ranked match from a search.
type Candidate struct {
	PetID                int64   `json:"pet_id" validate:"required,gt=0"`
	Name                 string  `json:"pet_name"`
	Species              string  `json:"species"`
	Breed                string  `json:"breed,omitempty"`
	OwnerName            string  `json:"owner_name,omitempty"`
	OwnerPhone           string  `json:"owner_phone,omitempty"`
	Similarity           float64 `json:"similarity" validate:"gte=0,lte=1"`
	HasContactPermission bool    `json:"has_contact_permission"`
}

// SearchResult is the decoded search response. Candidates are ordered by
// descending similarity.
type SearchResult struct {
	Found      bool        `json:"found"`
	Candidates []Candidate `json:"results" validate:"dive"`
	Message    string      `json:"message"`
}

// Best returns the highest ranked candidate.
func (r *SearchResult) Best() (Candidate, bool) {
	if r == nil || len(r.Candidates) == 0 {
		return Candidate{}, false
	}
	return r.Candidates[0], true
}

type searchRequest struct {
	ImageBase64 string  `json:"image_base64" validate:"required,base64"`
	Threshold   float64 `json:"threshold" validate:"gte=0.5,lte=1"`
	MaxResults  int     `json:"max_results" validate:"gte=1,lte=20"`
}

type registerRequest struct {
	PetID       int64  `json:"pet_id" validate:"required,gt=0"`
	ImageBase64 string `json:"image_base64" validate:"required,base64"`
}

// Vaccine is a vaccination entry on an identified profile.
type Vaccine struct {
	Title     string `json:"title"`
	EventDate string `json:"event_date"`
}

// Date parses EventDate. The registry emits ISO timestamps with or without a
// zone.
func (v Vaccine) Date() (time.Time, bool) {
	return parseTimestamp(v.EventDate)
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

func parseTimestamp(value string) (time.Time, bool) {
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// Timestamp decodes registry datetimes, which may omit the zone.
type Timestamp struct {
	time.Time
}

func (t *Timestamp) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw == "" {
		t.Time = time.Time{}
		return nil
	}
	parsed, ok := parseTimestamp(raw)
	if !ok {
		return &time.ParseError{Layout: time.RFC3339, Value: raw, Message: ": unrecognized timestamp"}
	}
	t.Time = parsed
	return nil
}

// Medication is an active treatment on an identified profile.
type Medication struct {
	Name      string `json:"name"`
	Dosage    string `json:"dosage,omitempty"`
	Frequency string `json:"frequency,omitempty"`
	IsActive  bool   `json:"is_active"`
}

// Profile is the identification profile of a matched pet.
type Profile struct {
	ID                int64        `json:"id" validate:"required,gt=0"`
	Name              string       `json:"name"`
	Species           string       `json:"species"`
	Breed             string       `json:"breed,omitempty"`
	Sex               string       `json:"sex,omitempty"`
	PhotoURL          string       `json:"photo_url,omitempty"`
	IsLost            bool         `json:"is_lost"`
	OwnerName         string       `json:"owner_name,omitempty"`
	OwnerPhone        string       `json:"owner_phone,omitempty"`
	HasBiometry       bool         `json:"has_biometry"`
	Vaccines          []Vaccine    `json:"vaccines"`
	ActiveMedications []Medication `json:"active_medications"`
}

// Clone returns a deep copy so cached profiles are never mutated by callers.
func (p *Profile) Clone() *Profile {
	if p == nil {
		return nil
	}
	cp := *p
	cp.Vaccines = append([]Vaccine(nil), p.Vaccines...)
	cp.ActiveMedications = append([]Medication(nil), p.ActiveMedications...)
	return &cp
}

// RedactOwner clears the owner contact fields.
func (p *Profile) RedactOwner() {
	if p == nil {
		return
	}
	p.OwnerName = ""
	p.OwnerPhone = ""
}

// Enrollment is the stored nose-print record for a pet.
type Enrollment struct {
	ID           int64     `json:"id"`
	PetID        int64     `json:"pet_id"`
	QualityScore *float64  `json:"quality_score,omitempty"`
	IsActive     bool      `json:"is_active"`
	CreatedAt    Timestamp `json:"created_at"`
}

// Package model defines the data shapes flowing through the scrape pipeline.
package model

// EntryReference identifies one directory listing entry by its profile URL.
// References are deduplicated per walk and sorted for reproducible output.
type EntryReference struct {
	URL string `json:"url"`
}

// ProfileRecord is the partially-filled extraction target for one entry.
// Every field except SourceURL is independently optional: a nil pointer means
// the page did not expose the field, which is distinct from an empty string.
type ProfileRecord struct {
	Name           *string  `json:"name,omitempty"`
	Rating         *float64 `json:"rating,omitempty"`
	Phone          *string  `json:"phone,omitempty"`
	Address        *string  `json:"address,omitempty"`
	About          *string  `json:"about,omitempty"`
	Certifications []string `json:"certifications"`
	Services       []string `json:"services"`
	Reviews        []string `json:"reviews"`
	SourceURL      string   `json:"source_url"`
}

// OutputRecord is a frozen ProfileRecord plus its generated insight.
// Insight is always non-empty: a real summary or the assembler's placeholder.
type OutputRecord struct {
	ProfileRecord
	Insight string `json:"insight"`
}

// Contractor is the persisted record shape expected by the datastore and the
// upload collaborator.
type Contractor struct {
	Name           string   `json:"name,omitempty"`
	Phone          string   `json:"phone,omitempty"`
	Address        string   `json:"address,omitempty"`
	Rating         *float64 `json:"rating,omitempty"`
	Certifications []string `json:"certifications"`
	Services       []string `json:"services"`
	About          string   `json:"about,omitempty"`
	Insight        string   `json:"insight"`
	ProfileURL     string   `json:"profile_url"`
}

// Insight is one row of the read API response.
type Insight struct {
	Name    string   `json:"name"`
	Rating  *float64 `json:"rating"`
	Insight string   `json:"insight"`
}

// ToContractor flattens an OutputRecord into the persisted shape. Absent
// scalar fields become empty strings; Rating stays nullable since the
// destination schema distinguishes "unrated" from zero.
func (r OutputRecord) ToContractor() Contractor {
	return Contractor{
		Name:           deref(r.Name),
		Phone:          deref(r.Phone),
		Address:        deref(r.Address),
		Rating:         r.Rating,
		Certifications: r.Certifications,
		Services:       r.Services,
		About:          deref(r.About),
		Insight:        r.Insight,
		ProfileURL:     r.SourceURL,
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

package destination

import "strings"

// Season labels accepted for Season.SeasonName.
const (
	SeasonPeak     = "peak"
	SeasonShoulder = "shoulder"
	SeasonOff      = "off"
)

// City is a travel destination. (Name, CountryCode) is unique.
type City struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	CountryCode string `json:"country_code"`
	Currency    string `json:"currency"`
}

// Season is a travel window for a city. A city has at most one season per label.
// StartMonth may be greater than EndMonth for windows that wrap around the new year.
type Season struct {
	ID         string `json:"id"`
	CityID     string `json:"city_id"`
	SeasonName string `json:"season_name"`
	StartMonth int    `json:"start_month"`
	EndMonth   int    `json:"end_month"`
}

// CityInput is the payload for creating a city. ID is optional; the server
// generates one when it is blank.
type CityInput struct {
	ID          string `json:"id" validate:"omitempty,uuid"`
	Name        string `json:"name" validate:"required,max=100"`
	CountryCode string `json:"country_code" validate:"required,len=2,alpha"`
	Currency    string `json:"currency" validate:"required,len=3,alpha"`
}

// Normalize trims every field, lowercases the id and uppercases the country and
// currency codes.
func (in *CityInput) Normalize() {
	in.ID = strings.ToLower(strings.TrimSpace(in.ID))
	in.Name = strings.TrimSpace(in.Name)
	in.CountryCode = strings.ToUpper(strings.TrimSpace(in.CountryCode))
	in.Currency = strings.ToUpper(strings.TrimSpace(in.Currency))
}

// CityPatch is a partial city update. Nil fields are left untouched.
type CityPatch struct {
	Name        *string `json:"name" validate:"omitempty,min=1,max=100"`
	CountryCode *string `json:"country_code" validate:"omitempty,len=2,alpha"`
	Currency    *string `json:"currency" validate:"omitempty,len=3,alpha"`
}

// Normalize applies the CityInput rules to the supplied fields.
func (p *CityPatch) Normalize() {
	if p.Name != nil {
		v := strings.TrimSpace(*p.Name)
		p.Name = &v
	}
	if p.CountryCode != nil {
		v := strings.ToUpper(strings.TrimSpace(*p.CountryCode))
		p.CountryCode = &v
	}
	if p.Currency != nil {
		v := strings.ToUpper(strings.TrimSpace(*p.Currency))
		p.Currency = &v
	}
}

// IsEmpty reports whether the patch changes nothing.
func (p CityPatch) IsEmpty() bool {
	return p.Name == nil && p.CountryCode == nil && p.Currency == nil
}

// Apply returns c with the supplied fields replaced.
func (p CityPatch) Apply(c City) City {
	if p.Name != nil {
		c.Name = *p.Name
	}
	if p.CountryCode != nil {
		c.CountryCode = *p.CountryCode
	}
	if p.Currency != nil {
		c.Currency = *p.Currency
	}
	return c
}

// SeasonInput is the payload for creating a season.
type SeasonInput struct {
	CityID     string `json:"city_id" validate:"required,uuid"`
	SeasonName string `json:"season_name" validate:"required,oneof=peak shoulder off"`
	StartMonth int    `json:"start_month" validate:"required,min=1,max=12"`
	EndMonth   int    `json:"end_month" validate:"required,min=1,max=12"`
}

// Normalize trims the ids and lowercases the season label.
func (in *SeasonInput) Normalize() {
	in.CityID = strings.ToLower(strings.TrimSpace(in.CityID))
	in.SeasonName = strings.ToLower(strings.TrimSpace(in.SeasonName))
}

// SeasonPatch is a partial season update. Nil fields are left untouched.
type SeasonPatch struct {
	CityID     *string `json:"city_id" validate:"omitempty,uuid"`
	SeasonName *string `json:"season_name" validate:"omitempty,oneof=peak shoulder off"`
	StartMonth *int    `json:"start_month" validate:"omitempty,min=1,max=12"`
	EndMonth   *int    `json:"end_month" validate:"omitempty,min=1,max=12"`
}

// Normalize applies the SeasonInput rules to the supplied fields.
func (p *SeasonPatch) Normalize() {
	if p.CityID != nil {
		v := strings.ToLower(strings.TrimSpace(*p.CityID))
		p.CityID = &v
	}
	if p.SeasonName != nil {
		v := strings.ToLower(strings.TrimSpace(*p.SeasonName))
		p.SeasonName = &v
	}
}

// IsEmpty reports whether the patch changes nothing.
func (p SeasonPatch) IsEmpty() bool {
	return p.CityID == nil && p.SeasonName == nil && p.StartMonth == nil && p.EndMonth == nil
}

// Apply returns s with the supplied fields replaced.
func (p SeasonPatch) Apply(s Season) Season {
	if p.CityID != nil {
		s.CityID = *p.CityID
	}
	if p.SeasonName != nil {
		s.SeasonName = *p.SeasonName
	}
	if p.StartMonth != nil {
		s.StartMonth = *p.StartMonth
	}
	if p.EndMonth != nil {
		s.EndMonth = *p.EndMonth
	}
	return s
}

// CityFilter narrows and pages a city listing. Empty strings mean "no filter".
type CityFilter struct {
	CountryCode string
	Currency    string
	Search      string
	Page        int
	Limit       int
}

// Offset returns the number of rows skipped before the requested page.
func (f CityFilter) Offset() int {
	if f.Page < 1 {
		return 0
	}
	return (f.Page - 1) * f.Limit
}

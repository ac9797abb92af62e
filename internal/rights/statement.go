package rights

import "strings"

// Grant is a single granted-right sub-record within a rights statement.
// Upstream systems are inconsistent about key names, so both the short and
// prefixed forms are accepted and resolved through the accessor methods.
type Grant struct {
	Act              string `json:"act"`
	Restriction      string `json:"restriction,omitempty"`
	GrantRestriction string `json:"grant_restriction,omitempty"`
	StartDate        string `json:"start_date,omitempty"`
	EndDate          string `json:"end_date,omitempty"`
	Note             string `json:"note,omitempty"`
	GrantedNote      string `json:"granted_note,omitempty"`
}

// RestrictionValue resolves the restriction regardless of which key the
// upstream payload used.
func (g Grant) RestrictionValue() string {
	if v := strings.TrimSpace(g.Restriction); v != "" {
		return v
	}
	return strings.TrimSpace(g.GrantRestriction)
}

// NoteValue resolves the grant note regardless of which key the upstream
// payload used.
func (g Grant) NoteValue() string {
	if v := strings.TrimSpace(g.GrantedNote); v != "" {
		return v
	}
	return strings.TrimSpace(g.Note)
}

// Statement is a structured record of a legal permission or restriction with
// zero or more granted rights.
type Statement struct {
	RightsBasis       string  `json:"rights_basis"`
	Status            string  `json:"status,omitempty"`
	CopyrightStatus   string  `json:"copyright_status,omitempty"`
	DeterminationDate string  `json:"determination_date,omitempty"`
	Jurisdiction      string  `json:"jurisdiction,omitempty"`
	StartDate         string  `json:"start_date,omitempty"`
	EndDate           string  `json:"end_date,omitempty"`
	Terms             string  `json:"terms,omitempty"`
	Citation          string  `json:"citation,omitempty"`
	Note              string  `json:"note,omitempty"`
	BasisNote         string  `json:"basis_note,omitempty"`
	DocIDType         string  `json:"doc_id_type,omitempty"`
	DocIDValue        string  `json:"doc_id_value,omitempty"`
	DocIDRole         string  `json:"doc_id_role,omitempty"`
	RightsGranted     []Grant `json:"rights_granted"`
}

// StatusValue resolves the copyright status regardless of which key the
// upstream payload used.
func (s Statement) StatusValue() string {
	if v := strings.TrimSpace(s.Status); v != "" {
		return v
	}
	return strings.TrimSpace(s.CopyrightStatus)
}

// NoteValue resolves the basis note regardless of which key the upstream
// payload used.
func (s Statement) NoteValue() string {
	if v := strings.TrimSpace(s.BasisNote); v != "" {
		return v
	}
	return strings.TrimSpace(s.Note)
}

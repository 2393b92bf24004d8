package lms

import (
	"bytes"
	"encoding/json"
	"strings"
)

// ID tolerates the API serving identifiers as either JSON numbers or
// strings; downstream code always compares them as trimmed strings.
type ID string

func (id *ID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" {
		*id = ""
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*id = ID(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*id = ID(n.String())
	return nil
}

func (id ID) String() string { return string(id) }

func (id ID) IsZero() bool { return id == "" }

// CourseType is matched against filter selections case-insensitively.
type CourseType struct {
	Name string `json:"name"`
}

type Author struct {
	Name     string `json:"name"`
	LastName string `json:"last_name"`
}

// FullName joins "lastname firstname", trimming each part.
func (a Author) FullName() string {
	return strings.TrimSpace(strings.TrimSpace(a.LastName) + " " + strings.TrimSpace(a.Name))
}

// Course is the list-view record; Sections is populated only by the
// detail endpoint.
type Course struct {
	ID        ID           `json:"id"`
	Name      string       `json:"name"`
	CreatedAt string       `json:"created_at"`
	OwnerName string       `json:"owner_name"`
	Types     []CourseType `json:"types"`
	Authors   []Author     `json:"authors"`
	Sections  []Section    `json:"sections"`
}

// TypeNames joins the course type names with ", ".
func (c Course) TypeNames() string {
	if len(c.Types) == 0 {
		return ""
	}
	names := make([]string, 0, len(c.Types))
	for _, t := range c.Types {
		names = append(names, t.Name)
	}
	return strings.Join(names, ", ")
}

// AuthorNames joins "lastname firstname" per author with ", ",
// dropping authors whose parts are all empty.
func (c Course) AuthorNames() string {
	var names []string
	for _, a := range c.Authors {
		if full := a.FullName(); full != "" {
			names = append(names, full)
		}
	}
	return strings.Join(names, ", ")
}

type Session struct {
	ID       ID     `json:"id"`
	Name     string `json:"name"`
	CourseID ID     `json:"course_id"`
}

type Participant struct {
	ID       ID     `json:"id"`
	Fullname string `json:"fullname"`
	RoleName string `json:"role_name"`
}

// SessionDetail is the per-session detail payload. Course carries the
// owner/author breakdown the list view lacks.
type SessionDetail struct {
	Participants []Participant `json:"participants"`
	Course       *Course       `json:"course"`
}

type Section struct {
	ID            ID         `json:"id"`
	Name          string     `json:"name"`
	Materials     []Material `json:"materials"`
	Tasks         []Material `json:"tasks"`
	Quizzes       []Material `json:"quizzes"`
	ScormPackages []Material `json:"scorm_packages"`
}

// Material covers all four section child collections; tasks and
// quizzes simply leave the file fields empty.
type Material struct {
	ID          ID     `json:"id"`
	Name        string `json:"name"`
	FileName    string `json:"file_name"`
	Category    string `json:"category"`
	CreatedAt   string `json:"created_at"`
	ResourceURL string `json:"resource_url"`
}

// decodePage normalizes a list payload: the API serves either a bare
// array or an object wrapping it in "data".
func decodePage(body []byte, out any) error {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || string(trimmed) == "null" {
		return nil
	}
	if trimmed[0] == '[' {
		return json.Unmarshal(trimmed, out)
	}
	var wrap struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(trimmed, &wrap); err != nil {
		return err
	}
	if len(bytes.TrimSpace(wrap.Data)) == 0 || string(bytes.TrimSpace(wrap.Data)) == "null" {
		return nil
	}
	return json.Unmarshal(wrap.Data, out)
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
}

type sectionRequest struct {
	Section sectionPayload `json:"section"`
}

type sectionPayload struct {
	Name          string `json:"name"`
	IconRemoteURL string `json:"icon_remote_url"`
}

type sectionResponse struct {
	ID ID `json:"id"`
}

type materialRequest struct {
	Material materialPayload `json:"material"`
}

type materialPayload struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Content     materialContent `json:"content"`
}

type materialContent struct {
	Blocks  []contentBlock `json:"blocks"`
	Version string         `json:"version"`
	Time    int64          `json:"time"`
}

type contentBlock struct {
	Type string    `json:"type"`
	ID   string    `json:"id"`
	Data blockData `json:"data"`
}

type blockData struct {
	Text string `json:"text"`
}

func pageSizeOrDefault(n int) int {
	if n <= 0 {
		return 100
	}
	return n
}

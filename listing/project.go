package listing

import (
	"encoding/json"
	"strings"
)

// Project is a listing as returned by the remote listings API.
type Project struct {
	Name            string        `json:"name"`
	Rera            string        `json:"rera"`
	Coordinates     string        `json:"coordinates"`
	CoverPhotoLink  string        `json:"coverPhotoLink"`
	ProjectType     []string      `json:"projectType"`
	LocalityNames   []string      `json:"localityNames"`
	Configuration   Configuration `json:"configuration"`
	BHK             []string      `json:"bhk"`
	BrochureLink    string        `json:"brochureLink"`
	CertificateLink string        `json:"certificateLink"`
	Price           Price         `json:"price"`
	ProjectStatus   string        `json:"projectStatus"`
	ProjectAddress  string        `json:"projectAddress"`
	PromoterName    string        `json:"promoterName"`
	Mobile          string        `json:"mobile"`
	StartDate       string        `json:"startDate"`
	EndDate         string        `json:"endDate"`
	AboutProject    string        `json:"aboutProject"`
}

type Configuration struct {
	Value string `json:"value"`
}

// Price is served as {"value": "..."}; older payloads carry the bare string.
type Price struct {
	Value string `json:"value"`
}

func (p *Price) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		return json.Unmarshal(data, &p.Value)
	}
	type plain Price
	return json.Unmarshal(data, (*plain)(p))
}

// UnmarshalJSON accepts the coordinate string under either "coordinates" or
// "Coordinates"; both spellings are served by the API.
func (p *Project) UnmarshalJSON(data []byte) error {
	type plain Project
	aux := struct {
		*plain
		UpperCoordinates string `json:"Coordinates"`
	}{plain: (*plain)(p)}

	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	if strings.TrimSpace(p.Coordinates) == "" {
		p.Coordinates = aux.UpperCoordinates
	}
	return nil
}

// Page is one page of the remote paginated contract.
type Page struct {
	Projects []Project `json:"projects"`
	Total    int       `json:"total"`
	HasMore  bool      `json:"has_more"`
	Page     int       `json:"page"`
	Limit    int       `json:"limit"`

	// Rejected lists the projects that could not be decoded. They are left
	// out of Projects instead of failing the page.
	Rejected []Rejected `json:"-"`
}

type Rejected struct {
	Index int
	ID    string
	Err   error
}

func (p *Page) UnmarshalJSON(data []byte) error {
	type plain Page
	aux := struct {
		*plain
		Projects []json.RawMessage `json:"projects"`
	}{plain: (*plain)(p)}

	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	p.Projects = make([]Project, 0, len(aux.Projects))
	p.Rejected = nil
	for i, raw := range aux.Projects {
		var project Project
		if err := json.Unmarshal(raw, &project); err != nil {
			var id struct {
				Rera string `json:"rera"`
			}
			_ = json.Unmarshal(raw, &id)
			p.Rejected = append(p.Rejected, Rejected{Index: i, ID: id.Rera, Err: err})
			continue
		}
		p.Projects = append(p.Projects, project)
	}
	return nil
}

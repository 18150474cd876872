package listing

import (
	"strings"

	"github.com/royalcat/listingmap/georect"
)

// Summary is the listing card shown next to the map.
type Summary struct {
	ID              string   `json:"rera"`
	Name            string   `json:"name"`
	Locality        string   `json:"locality"`
	PropertyType    string   `json:"propertyType"`
	UnitSizes       string   `json:"unitSizes"`
	BHK             []string `json:"bhk"`
	Price           string   `json:"price"`
	Status          string   `json:"projectStatus"`
	Promoter        string   `json:"promoterName"`
	Address         string   `json:"projectAddress"`
	CoverPhotoLink  string   `json:"coverPhotoLink"`
	BrochureLink    string   `json:"brochureLink"`
	CertificateLink string   `json:"certificateLink"`
	Coordinates     string   `json:"coordinates"`

	position georect.LatLng
	located  bool
}

func (s Summary) Key() string              { return s.ID }
func (s Summary) Location() georect.LatLng { return s.position }

// Located reports whether the card carried parseable coordinates.
func (s Summary) Located() bool { return s.located }

func NewSummary(p Project) Summary {
	s := Summary{
		ID:              p.Rera,
		Name:            p.Name,
		Locality:        strings.Join(p.LocalityNames, ", "),
		UnitSizes:       p.Configuration.Value,
		BHK:             p.BHK,
		Price:           p.Price.Value,
		Status:          p.ProjectStatus,
		Promoter:        p.PromoterName,
		Address:         p.ProjectAddress,
		CoverPhotoLink:  p.CoverPhotoLink,
		BrochureLink:    p.BrochureLink,
		CertificateLink: p.CertificateLink,
		Coordinates:     p.Coordinates,
	}
	if s.BHK == nil {
		s.BHK = []string{}
	}
	if len(p.ProjectType) > 0 {
		s.PropertyType = p.ProjectType[0]
	}
	if pos, err := ParseCoordinates(p.Coordinates); err == nil {
		s.position = pos
		s.located = true
	}
	return s
}

package store

import "time"

const (
	StateDraft     = "Draft"
	StateSubmitted = "Submitted"
)

type Advisor struct {
	ID           int64
	FirstName    string
	LastName     string
	Role         string
	Phone        string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
}

// Media is an uploaded image (service banner, company logo).
type Media struct {
	ID              int64
	Name            string
	AlternativeText string
	Caption         string
	Width           int
	Height          int
	Ext             string
	Mime            string
	Size            float64
	URL             string
}

type Motivator struct {
	ID          int64
	Title       string
	Slug        string
	Color       string
	Description string
	Banner      *Media
}

// AudienceFlags says who a service is aimed at.
type AudienceFlags struct {
	Collaborator bool
	Company      bool
}

type Service struct {
	ID               int64
	Title            string
	ShortDescription string
	LongDescription  string
	BulletPoints     string
	Banner           *Media
	Motivator        *Motivator
	CompanyID        *int64
	Audience         *AudienceFlags
}

type Company struct {
	ID    int64
	Name  string
	Image *Media
}

type ValueAddedAsset struct {
	ID             int64
	OwnerUserID    int64
	Title          string
	PrivateFileURL string
	CreatedAt      time.Time
}

type Presentation struct {
	ID                      int64
	OwnerUserID             int64
	State                   string
	ResponsibleContactName  string
	ResponsibleContactTitle string
	ResponsibleContactPhone string
	ResponsibleContactEmail string
	CompanyName             string
	DownloadURL             *string
	ValueAddedID            *int64
	ValueAddedURL           *string
	CompanyID               *int64
	CreatedAt               time.Time
	UpdatedAt               time.Time

	// Populated on read. Writes only look at the service ids.
	Services   []Service
	Company    *Company
	ValueAdded *ValueAddedAsset
}

// ServiceIDs returns the ids of the associated services in association order.
func (p Presentation) ServiceIDs() []int64 {
	ids := make([]int64, 0, len(p.Services))
	for _, service := range p.Services {
		ids = append(ids, service.ID)
	}
	return ids
}

// CompanyPatch carries the company fields present in an update payload.
type CompanyPatch struct {
	ID      int64
	Name    *string
	ImageID *int64
}

// ServicePatch carries the service fields present in an update payload.
type ServicePatch struct {
	ID               int64
	Title            *string
	ShortDescription *string
	LongDescription  *string
	BulletPoints     *string
}

// AudienceMotivator is a motivator as seen from an audience, with its services.
type AudienceMotivator struct {
	Motivator
	Services []Service
}

// Audience groups motivators by target public.
type Audience struct {
	ID         int64
	Name       string
	Motivators []AudienceMotivator
}

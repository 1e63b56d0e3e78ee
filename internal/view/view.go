// Package view builds the denormalized read models returned by the API.
// Every function here is pure: it never mutates its inputs.
package view

import (
	"time"

	"showcase/api/internal/store"
)

type MediaNode struct {
	ID              int64   `json:"id"`
	Name            string  `json:"name"`
	AlternativeText string  `json:"alternativeText"`
	Caption         string  `json:"caption"`
	Width           int     `json:"width"`
	Height          int     `json:"height"`
	Ext             string  `json:"ext"`
	Mime            string  `json:"mime"`
	Size            float64 `json:"size"`
	URL             string  `json:"url"`
}

// MediaData wraps an optional media list. A nil Data renders as {"data": null}.
type MediaData struct {
	Data []MediaNode `json:"data"`
}

type AudienceNode struct {
	Collaborator bool `json:"collaborator"`
	Company      bool `json:"company"`
}

type MotivatorRef struct {
	ID    int64  `json:"id"`
	Title string `json:"title"`
	Slug  string `json:"slug"`
	Color string `json:"color"`
}

type ServiceNode struct {
	ID               int64         `json:"id"`
	Title            string        `json:"title"`
	ShortDescription string        `json:"shortDescription"`
	LongDescription  string        `json:"longDescription"`
	BulletPoints     string        `json:"bulletPoints"`
	Banner           MediaData     `json:"banner"`
	Audience         *AudienceNode `json:"audience"`
	Motivator        *MotivatorRef `json:"motivator,omitempty"`
}

// MotivatorNode is one group of the single presentation view.
type MotivatorNode struct {
	ID          int64         `json:"id"`
	Title       string        `json:"title"`
	Slug        string        `json:"slug"`
	Color       string        `json:"color"`
	Description string        `json:"description,omitempty"`
	Services    []ServiceNode `json:"services"`
}

type CompanyNode struct {
	ID    int64       `json:"id"`
	Name  string      `json:"name"`
	Image []MediaNode `json:"image"`
}

type ValueAddedNode struct {
	ID             int64     `json:"id"`
	OwnerUserID    int64     `json:"ownerUserId"`
	Title          string    `json:"title"`
	PrivateFileURL string    `json:"privateFileUrl"`
	CreatedAt      time.Time `json:"createdAt"`
}

// PresentationFields are the scalar columns shared by the single and list views.
type PresentationFields struct {
	ID                      int64     `json:"id"`
	OwnerUserID             int64     `json:"ownerUserId"`
	State                   string    `json:"state"`
	ResponsibleContactName  string    `json:"responsibleContactName"`
	ResponsibleContactTitle string    `json:"responsibleContactTitle"`
	ResponsibleContactPhone string    `json:"responsibleContactPhone"`
	ResponsibleContactEmail string    `json:"responsibleContactEmail"`
	CompanyName             string    `json:"companyName"`
	DownloadURL             *string   `json:"downloadUrl"`
	ValueAddedURL           *string   `json:"valueAddedUrl"`
	CreatedAt               time.Time `json:"createdAt"`
	UpdatedAt               time.Time `json:"updatedAt"`
}

type PresentationView struct {
	PresentationFields
	Motivators []MotivatorNode `json:"motivators"`
	Company    *CompanyNode    `json:"company"`
	ValueAdded *ValueAddedNode `json:"valueAdded"`
}

type PresentationListItem struct {
	PresentationFields
	Services   []ServiceNode   `json:"services"`
	Company    *CompanyNode    `json:"company"`
	ValueAdded *ValueAddedNode `json:"valueAdded"`
}

// BuildPresentationView groups the presentation's services by motivator in order of
// first occurrence, drops services without a motivator, and appends every catalogue
// motivator not referenced yet as an empty node, in catalogue order.
func BuildPresentationView(p store.Presentation, catalogue []store.Motivator) PresentationView {
	groups := make([]MotivatorNode, 0, len(catalogue))
	index := map[int64]int{}

	for _, svc := range p.Services {
		if svc.Motivator == nil {
			continue
		}
		pos, ok := index[svc.Motivator.ID]
		if !ok {
			m := svc.Motivator
			groups = append(groups, MotivatorNode{
				ID:          m.ID,
				Title:       m.Title,
				Slug:        m.Slug,
				Color:       m.Color,
				Description: m.Description,
				Services:    []ServiceNode{},
			})
			pos = len(groups) - 1
			index[m.ID] = pos
		}
		groups[pos].Services = append(groups[pos].Services, serviceNode(svc, false))
	}

	for _, m := range catalogue {
		if _, ok := index[m.ID]; ok {
			continue
		}
		index[m.ID] = len(groups)
		groups = append(groups, MotivatorNode{
			ID:       m.ID,
			Title:    m.Title,
			Slug:     m.Slug,
			Color:    m.Color,
			Services: []ServiceNode{},
		})
	}

	return PresentationView{
		PresentationFields: fields(p),
		Motivators:         groups,
		Company:            companyNode(p.Company),
		ValueAdded:         valueAddedNode(p.ValueAdded),
	}
}

// BuildPresentationList keeps each presentation's flat service list, motivator-less
// services included, and does no catalogue padding.
func BuildPresentationList(items []store.Presentation) []PresentationListItem {
	out := make([]PresentationListItem, 0, len(items))
	for _, p := range items {
		services := make([]ServiceNode, 0, len(p.Services))
		for _, svc := range p.Services {
			services = append(services, serviceNode(svc, true))
		}
		out = append(out, PresentationListItem{
			PresentationFields: fields(p),
			Services:           services,
			Company:            companyNode(p.Company),
			ValueAdded:         valueAddedNode(p.ValueAdded),
		})
	}
	return out
}

func fields(p store.Presentation) PresentationFields {
	return PresentationFields{
		ID:                      p.ID,
		OwnerUserID:             p.OwnerUserID,
		State:                   p.State,
		ResponsibleContactName:  p.ResponsibleContactName,
		ResponsibleContactTitle: p.ResponsibleContactTitle,
		ResponsibleContactPhone: p.ResponsibleContactPhone,
		ResponsibleContactEmail: p.ResponsibleContactEmail,
		CompanyName:             p.CompanyName,
		DownloadURL:             p.DownloadURL,
		ValueAddedURL:           p.ValueAddedURL,
		CreatedAt:               p.CreatedAt,
		UpdatedAt:               p.UpdatedAt,
	}
}

func serviceNode(svc store.Service, withMotivator bool) ServiceNode {
	node := ServiceNode{
		ID:               svc.ID,
		Title:            svc.Title,
		ShortDescription: svc.ShortDescription,
		LongDescription:  svc.LongDescription,
		BulletPoints:     svc.BulletPoints,
		Banner:           mediaData(svc.Banner),
	}
	if svc.Audience != nil {
		node.Audience = &AudienceNode{Collaborator: svc.Audience.Collaborator, Company: svc.Audience.Company}
	}
	if withMotivator && svc.Motivator != nil {
		node.Motivator = &MotivatorRef{
			ID:    svc.Motivator.ID,
			Title: svc.Motivator.Title,
			Slug:  svc.Motivator.Slug,
			Color: svc.Motivator.Color,
		}
	}
	return node
}

func mediaNode(m store.Media) MediaNode {
	return MediaNode{
		ID:              m.ID,
		Name:            m.Name,
		AlternativeText: m.AlternativeText,
		Caption:         m.Caption,
		Width:           m.Width,
		Height:          m.Height,
		Ext:             m.Ext,
		Mime:            m.Mime,
		Size:            m.Size,
		URL:             m.URL,
	}
}

func mediaData(m *store.Media) MediaData {
	if m == nil {
		return MediaData{}
	}
	return MediaData{Data: []MediaNode{mediaNode(*m)}}
}

func companyNode(c *store.Company) *CompanyNode {
	if c == nil {
		return nil
	}
	node := &CompanyNode{ID: c.ID, Name: c.Name}
	if c.Image != nil {
		node.Image = []MediaNode{mediaNode(*c.Image)}
	}
	return node
}

func valueAddedNode(a *store.ValueAddedAsset) *ValueAddedNode {
	if a == nil {
		return nil
	}
	return &ValueAddedNode{
		ID:             a.ID,
		OwnerUserID:    a.OwnerUserID,
		Title:          a.Title,
		PrivateFileURL: a.PrivateFileURL,
		CreatedAt:      a.CreatedAt,
	}
}

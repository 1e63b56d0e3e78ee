package view

import "showcase/api/internal/store"

type CatalogMotivator struct {
	ID          int64         `json:"id"`
	Title       string        `json:"title"`
	Slug        string        `json:"slug"`
	Color       string        `json:"color"`
	Description string        `json:"description"`
	Banner      MediaData     `json:"banner"`
	Services    []ServiceNode `json:"services,omitempty"`
}

type CatalogAudience struct {
	ID         int64              `json:"id"`
	Name       string             `json:"name"`
	Motivators []CatalogMotivator `json:"motivators"`
}

type Pagination struct {
	Page      int `json:"page"`
	PageSize  int `json:"pageSize"`
	PageCount int `json:"pageCount"`
	Total     int `json:"total"`
}

type Meta struct {
	Pagination Pagination `json:"pagination"`
}

type AudienceCatalog struct {
	Data []CatalogAudience `json:"data"`
	Meta Meta              `json:"meta"`
}

// BuildAudienceCatalog lists every audience with its motivators and their services.
// The catalogue is never paged, so the pagination block always describes one page.
func BuildAudienceCatalog(audiences []store.Audience) AudienceCatalog {
	data := make([]CatalogAudience, 0, len(audiences))
	for _, a := range audiences {
		motivators := make([]CatalogMotivator, 0, len(a.Motivators))
		for _, m := range a.Motivators {
			node := catalogMotivator(m.Motivator)
			node.Services = make([]ServiceNode, 0, len(m.Services))
			for _, svc := range m.Services {
				node.Services = append(node.Services, serviceNode(svc, false))
			}
			motivators = append(motivators, node)
		}
		data = append(data, CatalogAudience{ID: a.ID, Name: a.Name, Motivators: motivators})
	}
	return AudienceCatalog{
		Data: data,
		Meta: Meta{Pagination: Pagination{Page: 1, PageSize: len(data), PageCount: 1, Total: len(data)}},
	}
}

func BuildMotivatorCatalog(motivators []store.Motivator) []CatalogMotivator {
	out := make([]CatalogMotivator, 0, len(motivators))
	for _, m := range motivators {
		out = append(out, catalogMotivator(m))
	}
	return out
}

func catalogMotivator(m store.Motivator) CatalogMotivator {
	return CatalogMotivator{
		ID:          m.ID,
		Title:       m.Title,
		Slug:        m.Slug,
		Color:       m.Color,
		Description: m.Description,
		Banner:      mediaData(m.Banner),
	}
}

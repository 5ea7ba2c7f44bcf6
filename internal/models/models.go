package models

import "strings"

type Status string

const (
	StatusActive   Status = "active"
	StatusInactive Status = "inactive"
	StatusDeleted  Status = "deleted"
)

func (s Status) Valid() bool {
	switch s {
	case StatusActive, StatusInactive, StatusDeleted:
		return true
	}
	return false
}

// LinkType names the tenant a link belongs to. The empty type selects the
// default tenant, when one is configured.
type LinkType string

const (
	LinkTypeDefault       LinkType = ""
	LinkTypeCRM           LinkType = "crm"
	LinkTypeCRMDemo       LinkType = "crm_demo"
	LinkTypeMentalaba     LinkType = "mentalaba"
	LinkTypeMentalabaDemo LinkType = "mentalaba_demo"
)

type Link struct {
	ID          int64    `json:"id"`
	OriginalURL string   `json:"original_url"`
	ShortID     string   `json:"short_id"`
	Type        LinkType `json:"type,omitempty"`
	Status      Status   `json:"status"`
	Clicks      int64    `json:"clicks"`
}

// Visit is the ledger entry proving that a visitor was counted for a link.
type Visit struct {
	LinkID    int64
	VisitorID string
	IPAddress string
}

type Visitor struct {
	ID string
	IP string
}

type Tenant struct {
	BaseURL string
	Token   string
}

func (t Tenant) UpdateCountURL() string {
	return strings.TrimSuffix(t.BaseURL, "/") + "/links/update-count"
}

type Tenants map[LinkType]Tenant

func (t Tenants) Lookup(linkType LinkType) (Tenant, bool) {
	tenant, ok := t[linkType]
	return tenant, ok
}

type CreateRequest struct {
	OriginalURL string   `json:"original_url"`
	ShortID     string   `json:"short_id,omitempty"`
	Type        LinkType `json:"type,omitempty"`
}

type CreateResponse struct {
	ShortID string `json:"short_id"`
	URL     string `json:"url"`
}

type ChangeStatusRequest struct {
	Status  Status   `json:"status"`
	ShortID string   `json:"short_id"`
	Type    LinkType `json:"type,omitempty"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

// UpdateCountRequest is the body sent to a tenant's update-count endpoint.
type UpdateCountRequest struct {
	ShortID string `json:"short_id"`
	Count   int64  `json:"count"`
}

package models

import (
	"sort"
	"time"
)

// IssuePlaceUnassigned is the sentinel the backend uses for an order that no
// production facility currently holds.
const IssuePlaceUnassigned = "unassigned"

// Ref is a reference to another server entity. The backend accepts a bare
// {"id": ...} on writes and returns the expanded form on reads.
type Ref struct {
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`
}

// Valid reports whether the reference actually points at something.
func (r *Ref) Valid() bool {
	return r != nil && r.ID != ""
}

// Order is the server-side facility/order entity. Updates go through PATCH
// with the id and the version the client last saw; the backend rejects stale
// versions.
type Order struct {
	ID               string  `json:"id,omitempty"`
	Version          int     `json:"version"`
	Code             string  `json:"code,omitempty"`
	IDNumber         string  `json:"idNumber,omitempty"`
	Name             string  `json:"name,omitempty"`
	Address          string  `json:"address,omitempty"`
	Phone            string  `json:"phone,omitempty"`
	Email            string  `json:"email,omitempty"`
	Area             float64 `json:"area,omitempty"`
	AreaAdmin        string  `json:"areaAdmin,omitempty"`
	LabelingStandard string  `json:"labelingStandard,omitempty"`
	Lat              float64 `json:"lat,omitempty"`
	Lon              float64 `json:"lon,omitempty"`
	// Refs marshal as explicit null when unset; the backend treats a
	// missing key and null differently on submit.
	FacilityType *Ref `json:"facilityType"`
	StateOpt     *Ref `json:"stateOpt"`
	OrgUnit      *Ref `json:"orgUnit"`
	SkuOpt       *Ref `json:"skuOpt"`
	OwnerName        string `json:"ownerName,omitempty"`
	OwnerPhoneNumber string `json:"ownerPhoneNumber,omitempty"`
	IsPriority       bool   `json:"isPriority"`
	Note             string `json:"note,omitempty"`
	Attr1            string `json:"attr1,omitempty"`
	Attr2            string `json:"attr2,omitempty"`
	Attr3            string `json:"attr3,omitempty"`
	Attr4            string `json:"attr4,omitempty"`
	Attr5            string `json:"attr5,omitempty"`
	IssuePlace       string `json:"issuePlace,omitempty"`
	SampleSource     string `json:"sampleSource,omitempty"`

	CreatedDate time.Time `json:"createdDate,omitempty"`
}

// Unassigned reports whether no facility holds the order.
func (o *Order) Unassigned() bool {
	return o.IssuePlace == "" || o.IssuePlace == IssuePlaceUnassigned
}

// AssignedTo reports whether the given user currently holds the order. The
// backend stores either the display name or the username depending on which
// client wrote it, so both are checked.
func (o *Order) AssignedTo(u *User) bool {
	if u == nil || o.Unassigned() {
		return false
	}
	return o.IssuePlace == u.Name || o.IssuePlace == u.Username
}

// SortOrdersByCreatedDesc sorts newest first. Ties keep their relative order.
func SortOrdersByCreatedDesc(orders []Order) {
	sort.SliceStable(orders, func(i, j int) bool {
		return orders[i].CreatedDate.After(orders[j].CreatedDate)
	})
}

// OrderPage is the backend's Spring-style page envelope for /facility/find.
type OrderPage struct {
	Content       []Order `json:"content"`
	TotalElements int     `json:"totalElements"`
	TotalPages    int     `json:"totalPages"`
	Last          bool    `json:"last"`
	First         bool    `json:"first"`
	Number        int     `json:"number"`
	Size          int     `json:"size"`
}

// FacilityStat is one row of the dashboard facility-statistic report.
type FacilityStat struct {
	FacilityType Ref `json:"facilityType"`
	Count        int `json:"count"`
}

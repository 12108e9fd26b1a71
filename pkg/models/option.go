package models

// Option is one entry of a server-defined option group (sizes, order types,
// SKU designs, labeling standards).
type Option struct {
	ID    string `json:"id"`
	Code  string `json:"code,omitempty"`
	Name  string `json:"name"`
	Group string `json:"optionGroupCode,omitempty"`
}

// OrgUnit is one node of the org-unit hierarchy. Level 1 is store types,
// level 2 countries, level 3 stores.
type OrgUnit struct {
	ID    string `json:"id"`
	Code  string `json:"code,omitempty"`
	Name  string `json:"name"`
	Level int    `json:"lvl,omitempty"`
}

// OptionPage is the page envelope for /option/find and /org-unit/search.
type OptionPage struct {
	Content       []Option `json:"content"`
	TotalElements int      `json:"totalElements"`
}

// OrgUnitPage is the page envelope for /org-unit/search.
type OrgUnitPage struct {
	Content       []OrgUnit `json:"content"`
	TotalElements int       `json:"totalElements"`
}

// UploadResult is returned by POST /file/upload.
type UploadResult struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

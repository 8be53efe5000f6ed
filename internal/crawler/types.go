// Package crawler defines core types shared across subsystems.
package crawler

// Vacancy is one job advertisement after its detail page has been processed.
// Technologies is deduplicated and sorted.
type Vacancy struct {
	Title        string   `json:"title"`
	Company      string   `json:"company"`
	Technologies []string `json:"technologies"`
}

// ListingSummary references one listing found on an index page.
type ListingSummary struct {
	// Index is the listing's position on its page, in document order.
	Index     int
	Title     string
	Company   string
	DetailURL string
}

// Schema names the CSS selectors used to pull data out of the target site.
// Title, Company and DetailLink are evaluated relative to a ListingItem;
// PaginationItem relative to Pagination.
type Schema struct {
	ListingItem    string `mapstructure:"listing_item"`
	Title          string `mapstructure:"title"`
	Company        string `mapstructure:"company"`
	DetailLink     string `mapstructure:"detail_link"`
	Description    string `mapstructure:"description"`
	Pagination     string `mapstructure:"pagination"`
	PaginationItem string `mapstructure:"pagination_item"`
}

// DefaultSchema returns the selectors of the job board the crawler was built for.
func DefaultSchema() Schema {
	return Schema{
		ListingItem:    ".job-list-item",
		Title:          ".job-list-item__title",
		Company:        "a.mr-2",
		DetailLink:     "a.job-list-item__link",
		Description:    ".col-sm-8",
		Pagination:     ".pagination",
		PaginationItem: "li",
	}
}

// WithDefaults fills empty selectors from DefaultSchema.
func (s Schema) WithDefaults() Schema {
	d := DefaultSchema()
	if s.ListingItem == "" {
		s.ListingItem = d.ListingItem
	}
	if s.Title == "" {
		s.Title = d.Title
	}
	if s.Company == "" {
		s.Company = d.Company
	}
	if s.DetailLink == "" {
		s.DetailLink = d.DetailLink
	}
	if s.Description == "" {
		s.Description = d.Description
	}
	if s.Pagination == "" {
		s.Pagination = d.Pagination
	}
	if s.PaginationItem == "" {
		s.PaginationItem = d.PaginationItem
	}
	return s
}

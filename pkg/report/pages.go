package report

// Page is a named view of the main table with a fixed base condition.
type Page struct {
	Name   string `json:"name"`
	Title  string `json:"title"`
	Filter string `json:"filter,omitempty"`
	// Category selects the crash component breakdown shown on the page.
	Category string `json:"category,omitempty"`
}

var pages = []Page{
	{Name: "all", Title: "Overview"},
	{Name: "failures", Title: "Failures", Filter: "status = 'FAILED'"},
	{Name: "crashes", Title: "Crashes", Filter: "status = 'CRASHED'", Category: "CRASHED"},
	{Name: "timeouts", Title: "Timeouts", Filter: "status = 'TIMED_OUT'", Category: "TIMED_OUT"},
	{Name: "ooms", Title: "OOMs", Filter: "status = 'OOM'"},
	{Name: "successes", Title: "Successes", Filter: "status = 'OK'"},
}

// Pages returns every page in navigation order.
func Pages() []Page {
	out := make([]Page, len(pages))
	copy(out, pages)

	return out
}

// FindPage returns the page with the given name.
func FindPage(name string) (Page, bool) {
	for _, p := range pages {
		if p.Name == name {
			return p, true
		}
	}

	return Page{}, false
}

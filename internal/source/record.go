package source

// AuthorRef is an author as reported by one source. Key is the source-specific
// external identity (OpenLibrary author key), empty when the source only knows
// the display name.
type AuthorRef struct {
	Name string `json:"name"`
	Key  string `json:"key,omitempty"`
}

// RawRecord contains partially-populated book attributes from one source.
// Pointer fields distinguish "not set" from "empty"/zero. A RawRecord lives
// only for the duration of one job and is consumed by the reconciler.
type RawRecord struct {
	// Source is the tag of the adapter that produced this record.
	Source Name `json:"source"`

	// ISBN13 is the normalized 13-digit identifier, when the source knows it.
	ISBN13 *string `json:"isbn13,omitempty"`

	// Descriptive attributes.
	Title         *string `json:"title,omitempty"`
	Subtitle      *string `json:"subtitle,omitempty"`
	Description   *string `json:"description,omitempty"`
	Publisher     *string `json:"publisher,omitempty"`
	PublishedDate *string `json:"published_date,omitempty"`
	PageCount     *int    `json:"page_count,omitempty"`
	CoverURL      *string `json:"cover_url,omitempty"`
	WorkKey       *string `json:"work_key,omitempty"`

	// Languages are raw language codes as reported (2- or 3-letter).
	Languages []string `json:"languages,omitempty"`

	// Set-valued attributes.
	Authors []AuthorRef `json:"authors,omitempty"`
	Genres  []string    `json:"genres,omitempty"`

	// Metric attributes. Each is authoritative for exactly one source:
	// ratings/pricing/availability from Google Books, edition count from
	// Open Library.
	RatingAvg    *float64 `json:"rating_avg,omitempty"`
	RatingCount  *int     `json:"rating_count,omitempty"`
	EditionCount *int     `json:"edition_count,omitempty"`
	ListPrice    *float64 `json:"list_price,omitempty"`
	RetailPrice  *float64 `json:"retail_price,omitempty"`
	CurrencyCode *string  `json:"currency_code,omitempty"`
	IsEbook      *bool    `json:"is_ebook,omitempty"`
	Saleability  *string  `json:"saleability,omitempty"`
}

package domain

// Paper is one curated item of a daily batch.
type Paper struct {
	Title       string   `json:"title"`
	Link        string   `json:"link"`
	Description string   `json:"description"`
	Authors     []string `json:"authors"`
	Date        string   `json:"date"` // owning date key, see DateKey
}

// ContentBatch is the day's ordered paper set. At most one batch exists per
// date key; the fetcher upserts by date.
type ContentBatch struct {
	Date   string
	Papers []Paper
}

func (b ContentBatch) Empty() bool { return len(b.Papers) == 0 }

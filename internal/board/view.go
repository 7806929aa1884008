package board

import (
	"slices"
	"sort"

	"github.com/sujalbistaa/blurtbox/internal/models"
)

const DefaultPageSize = 10

// DefaultCategories are offered before any confession has been seen.
var DefaultCategories = []string{"Funny", "Regret", "Love", "Crime", "Sad", "NSFW", "General", "Work"}

// Tab selects between the main list and the most upvoted list.
type Tab string

const (
	TabAll Tab = "all"
	TabTop Tab = "top"
)

// FilterState is a set of selected categories. The empty set shows
// everything. The zero value is ready to use.
type FilterState struct {
	set map[string]struct{}
}

func NewFilter(categories ...string) FilterState {
	var f FilterState
	f.Set(categories...)
	return f
}

func (f *FilterState) add(category string) {
	if category == "" {
		return
	}
	if f.set == nil {
		f.set = make(map[string]struct{})
	}
	f.set[category] = struct{}{}
}

// Toggle flips category and reports whether it is now selected.
func (f *FilterState) Toggle(category string) bool {
	if f.Has(category) {
		delete(f.set, category)
		return false
	}
	f.add(category)
	return f.Has(category)
}

// Set replaces the selection.
func (f *FilterState) Set(categories ...string) {
	f.set = nil
	for _, c := range categories {
		f.add(c)
	}
}

func (f *FilterState) Clear() { f.set = nil }

func (f FilterState) Has(category string) bool {
	_, ok := f.set[category]
	return ok
}

func (f FilterState) Empty() bool { return len(f.set) == 0 }

// Matches reports whether an item with category passes the filter.
// Uncategorised items only pass an empty filter.
func (f FilterState) Matches(category string) bool {
	if f.Empty() {
		return true
	}
	return category != "" && f.Has(category)
}

// Slice returns the selection sorted.
func (f FilterState) Slice() []string {
	out := make([]string, 0, len(f.set))
	for c := range f.set {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

// Page is the visible slice of the filtered collection.
type Page struct {
	Items   []models.Confession `json:"items"`
	Total   int                 `json:"total"`
	HasMore bool                `json:"hasMore"`
}

// Visible filters items and returns the first page*pageSize of them.
// Items are copied; the caller may modify the result freely.
func Visible(items []models.Confession, filter FilterState, page, pageSize int) Page {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = DefaultPageSize
	}

	filtered := make([]models.Confession, 0, len(items))
	for _, item := range items {
		if filter.Matches(item.Category) {
			filtered = append(filtered, item)
		}
	}

	limit := min(page*pageSize, len(filtered))
	shown := make([]models.Confession, limit)
	for i := range shown {
		shown[i] = filtered[i].Clone()
	}
	return Page{
		Items:   shown,
		Total:   len(filtered),
		HasMore: len(filtered) > page*pageSize,
	}
}

// mergeCategories appends categories seen on items that are not known yet.
func mergeCategories(known []string, items []models.Confession) []string {
	for _, item := range items {
		if item.Category != "" && !slices.Contains(known, item.Category) {
			known = append(known, item.Category)
		}
	}
	return known
}

// sortByUpvotes orders the top list, most upvoted first.
func sortByUpvotes(items []models.Confession) {
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].Upvotes > items[j].Upvotes
	})
}

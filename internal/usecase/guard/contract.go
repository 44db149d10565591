package guard

import "context"

// TitleLister returns every title stored in the catalog.
type TitleLister interface {
	ListTitles(ctx context.Context) ([]string, error)
}

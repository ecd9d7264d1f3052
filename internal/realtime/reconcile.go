package realtime

import "github.com/Makepad-fr/todos/internal/model"

// Apply returns the Collection that results from ev. The input page is
// never modified. A nil page (nothing fetched yet) stays nil: the next full
// fetch is authoritative and will include the change.
func Apply(page *model.TodoPage, ev Event) *model.TodoPage {
	if page == nil {
		return nil
	}
	next := *page
	switch ev.Kind {
	case KindDelete:
		next.Data = make([]model.Todo, 0, len(page.Data))
		for _, t := range page.Data {
			if t.ID != ev.ID {
				next.Data = append(next.Data, t)
			}
		}
	case KindUpsert:
		next.Data = make([]model.Todo, 0, len(page.Data)+1)
		replaced := false
		for _, t := range page.Data {
			if t.ID != ev.ID {
				next.Data = append(next.Data, t)
				continue
			}
			if !replaced {
				next.Data = append(next.Data, ev.Todo)
				replaced = true
			}
		}
		if !replaced {
			next.Data = append(next.Data, ev.Todo)
		}
	default:
		return page
	}
	next.Total += len(next.Data) - len(page.Data)
	next.Count = len(next.Data)
	return &next
}

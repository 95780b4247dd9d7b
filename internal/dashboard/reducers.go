package dashboard

type keyed interface {
	Key() int64
}

func (slice *Slice[T]) begin() {
	slice.IsLoading = true
	slice.Error = ""
}

func (slice *Slice[T]) fail(message string) {
	slice.IsLoading = false
	slice.Error = message
}

func (slice *Slice[T]) replaceAll(items []T) {
	slice.IsLoading = false
	if items == nil {
		items = []T{}
	}
	slice.List = items
}

func prependItem[T keyed](slice *Slice[T], item T) {
	slice.IsLoading = false
	slice.List = append([]T{item}, slice.List...)
	if slice.Meta != nil {
		slice.Meta.Total++
	}
}

func replaceItem[T keyed](slice *Slice[T], item T) {
	slice.IsLoading = false
	for index := range slice.List {
		if slice.List[index].Key() == item.Key() {
			slice.List[index] = item
			return
		}
	}
}

func removeItem[T keyed](slice *Slice[T], id int64) {
	slice.IsLoading = false
	kept := make([]T, 0, len(slice.List))
	for _, existing := range slice.List {
		if existing.Key() != id {
			kept = append(kept, existing)
		}
	}
	slice.List = kept
	if slice.Meta != nil && slice.Meta.Total > 0 {
		slice.Meta.Total--
	}
}

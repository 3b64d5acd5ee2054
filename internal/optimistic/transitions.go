package optimistic

// Чистые переходы состояния коллекции. Ни один не меняет входной срез:
// поэтому предыдущий срез целиком служит снимком для отката.

func applyCreate[T Entity](items []Item[T], it Item[T], prepend bool) []Item[T] {
	out := make([]Item[T], 0, len(items)+1)
	if prepend {
		out = append(out, it)
		return append(out, items...)
	}
	out = append(out, items...)
	return append(out, it)
}

// applyUpdate заменяет подтверждённый элемент с тем же id на месте.
func applyUpdate[T Entity](items []Item[T], e T) ([]Item[T], bool) {
	id := e.EntityID()
	out := make([]Item[T], len(items))
	copy(out, items)
	for i := range out {
		if !out[i].IsPending() && out[i].ID() == id {
			out[i] = Confirmed(e)
			return out, true
		}
	}
	return items, false
}

func applyDelete[T Entity](items []Item[T], id string) ([]Item[T], bool) {
	for i := range items {
		if !items[i].IsPending() && items[i].ID() == id {
			out := make([]Item[T], 0, len(items)-1)
			out = append(out, items[:i]...)
			return append(out, items[i+1:]...), true
		}
	}
	return items, false
}

// commitCreate подменяет ожидающий элемент сущностью от сервера.
func commitCreate[T Entity](items []Item[T], localID string, saved T) []Item[T] {
	out := make([]Item[T], len(items))
	copy(out, items)
	for i := range out {
		if out[i].IsPending() && out[i].LocalID == localID {
			out[i] = Confirmed(saved)
			return out
		}
	}
	// элемент пропал (например, коллекцию перезагрузили) — просто добавляем
	return append(out, Confirmed(saved))
}

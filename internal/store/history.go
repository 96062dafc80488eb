package store

import "fmt"

// HistoryStore keeps one Transcript document per (token, section) pair.
type HistoryStore struct {
	files *FileStore
}

func NewHistoryStore(files *FileStore) *HistoryStore {
	return &HistoryStore{files: files}
}

func historyDocument(token string, section int) string {
	return fmt.Sprintf("history_%s_%d.json", token, section)
}

// Load returns the transcript for (token, section). found is false when the
// section has never been written; callers decide what an absent transcript
// defaults to.
func (h *HistoryStore) Load(token string, section int) (Transcript, bool, error) {
	var t Transcript
	found, err := h.files.Load(historyDocument(token, section), &t)
	if err != nil {
		return Transcript{}, false, err
	}
	return t, found, nil
}

// Append adds one turn to the end of the transcript. The read-modify-write
// cycle runs under the document's lock so concurrent appends to the same
// (token, section) all land; appends to other keys are not blocked. If the
// stored title is still unset and titleIfNew is non-nil, the title is set in
// the same write. A previously set title is never overwritten.
func (h *HistoryStore) Append(token string, section int, turn Turn, titleIfNew *string) error {
	doc := historyDocument(token, section)
	unlock := h.files.Lock(doc)
	defer unlock()

	var t Transcript
	if _, err := h.files.Load(doc, &t); err != nil {
		return err
	}

	t.History = append(t.History, turn)
	if t.Title == nil && titleIfNew != nil {
		t.Title = titleIfNew
	}

	return h.files.Save(doc, t)
}

// Delete removes the transcript entirely and reports whether one existed.
// Deleting an absent transcript is not an error.
func (h *HistoryStore) Delete(token string, section int) (bool, error) {
	doc := historyDocument(token, section)
	unlock := h.files.Lock(doc)
	defer unlock()

	return h.files.Delete(doc)
}

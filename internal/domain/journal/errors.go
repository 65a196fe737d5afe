package journal

import "errors"

// Domain errors for the journal
var (
	ErrInvalidEntry  = errors.New("invalid journal entry")
	ErrJournalFull   = errors.New("journal buffer full")
	ErrJournalClosed = errors.New("journal closed")
)

// Validate checks the fields every stored entry needs
func (e *Entry) Validate() error {
	if e == nil || e.ID == "" || e.Group == "" || e.Cause == "" {
		return ErrInvalidEntry
	}
	return nil
}

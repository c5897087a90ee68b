package console

import (
	"context"
	"fmt"
	"sync"

	"github.com/wondertwin-ai/twin-qwikbasket/internal/catalog"
)

// FormSpec describes how a form for T builds and submits its patch P.
type FormSpec[T, P any] struct {
	// Defaults returns the patch for a create session.
	Defaults func() P
	// Hydrate returns the patch for an edit session.
	Hydrate func(T) P
	// Validate runs before any store call.
	Validate func(p P, creating bool) error
	// Create is nil for entities without a create flow.
	Create func(ctx context.Context, p P) (T, error)
	Update func(ctx context.Context, id string, p P) (T, error)
	ID     func(T) string
	// SetImage is nil for forms without an image field.
	SetImage func(p *P, uri string)
	// SetDocument is nil for forms without an attachment.
	SetDocument func(p *P, doc catalog.DocumentRef)
	// DocumentTypes are the accepted MIME types for SetDocument.
	DocumentTypes []string
}

// Form is one modal create or edit session. Only one form is open per
// screen at a time.
type Form[T, P any] struct {
	screen *Screen[T]
	spec   FormSpec[T, P]
	id     string

	mu     sync.Mutex
	draft  P
	closed bool
}

// OpenForm starts a session on s, hydrated from existing or seeded with
// defaults when existing is nil.
func OpenForm[T, P any](s *Screen[T], spec FormSpec[T, P], existing *T) (*Form[T, P], error) {
	if existing == nil && spec.Create == nil {
		return nil, fmt.Errorf("create %s: %w", s.Name(), ErrNotSupported)
	}
	if err := s.acquireForm(); err != nil {
		return nil, err
	}
	f := &Form[T, P]{screen: s, spec: spec}
	if existing != nil {
		f.id = spec.ID(*existing)
		f.draft = spec.Hydrate(*existing)
	} else {
		f.draft = spec.Defaults()
	}
	return f, nil
}

// Creating reports whether the session creates a new record.
func (f *Form[T, P]) Creating() bool { return f.id == "" }

// Draft returns the current patch.
func (f *Form[T, P]) Draft() P {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.draft
}

// Edit changes the draft in place.
func (f *Form[T, P]) Edit(fn func(p *P)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fn(&f.draft)
}

// Validate runs the required-field checks without submitting.
func (f *Form[T, P]) Validate() error {
	return f.spec.Validate(f.Draft(), f.Creating())
}

// Submit validates, then adds or updates the record. On success the form
// closes and the owning screen re-fetches. A validation failure never
// reaches the store and the form stays open, as it does on a store failure.
func (f *Form[T, P]) Submit(ctx context.Context) (T, error) {
	var zero T
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return zero, ErrFormClosed
	}
	draft := f.draft
	f.mu.Unlock()

	if err := f.spec.Validate(draft, f.Creating()); err != nil {
		return zero, err
	}

	var (
		saved T
		err   error
	)
	if f.Creating() {
		saved, err = f.spec.Create(ctx, draft)
	} else {
		saved, err = f.spec.Update(ctx, f.id, draft)
	}
	if err != nil {
		f.screen.cfg.Logger.Warn("save failed", "screen", f.screen.Name(), "id", f.id, "err", err)
		return zero, fmt.Errorf("%w: %w", ErrSaveFailed, err)
	}

	f.close()
	if err := f.screen.Refresh(ctx); err != nil {
		f.screen.cfg.Logger.Warn("refresh after save failed", "screen", f.screen.Name(), "err", err)
	}
	return saved, nil
}

// Cancel closes the form without saving.
func (f *Form[T, P]) Cancel() {
	f.close()
}

// Closed reports whether the session has ended.
func (f *Form[T, P]) Closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

func (f *Form[T, P]) close() {
	f.mu.Lock()
	already := f.closed
	f.closed = true
	f.mu.Unlock()
	if !already {
		f.screen.releaseForm()
	}
}

// PickImage asks the picker for an image and stores its URI in the draft.
// It reports false and keeps the previous image when the user cancels.
func (f *Form[T, P]) PickImage(ctx context.Context, picker ImagePicker) (bool, error) {
	if f.spec.SetImage == nil {
		return false, ErrNotSupported
	}
	granted, err := picker.RequestPermission(ctx)
	if err != nil {
		return false, err
	}
	if !granted {
		return false, ErrPermissionDenied
	}
	ref, ok, err := picker.PickImage(ctx, ImageOptions{AspectRatio: [2]int{1, 1}, AllowEdit: true})
	if err != nil || !ok {
		return false, err
	}
	f.Edit(func(p *P) { f.spec.SetImage(p, ref.URI) })
	return true, nil
}

// PickInvoice asks the picker for a document and attaches it to the draft.
// It reports false when the user cancels.
func (f *Form[T, P]) PickInvoice(ctx context.Context, picker DocumentPicker) (bool, error) {
	if f.spec.SetDocument == nil {
		return false, ErrNotSupported
	}
	doc, ok, err := picker.PickDocument(ctx, f.spec.DocumentTypes)
	if err != nil || !ok {
		return false, err
	}
	f.Edit(func(p *P) { f.spec.SetDocument(p, doc) })
	return true, nil
}

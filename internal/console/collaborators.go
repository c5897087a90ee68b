package console

import (
	"context"

	"github.com/wondertwin-ai/twin-qwikbasket/internal/catalog"
)

// ImageOptions are passed through to the device image picker.
type ImageOptions struct {
	AspectRatio [2]int
	AllowEdit   bool
}

// ImageRef is a picked image.
type ImageRef struct {
	URI string
}

// ImagePicker is the device image gallery. PickImage reports false when the
// user cancelled.
type ImagePicker interface {
	RequestPermission(ctx context.Context) (bool, error)
	PickImage(ctx context.Context, opts ImageOptions) (ImageRef, bool, error)
}

// DocumentPicker is the device file browser. PickDocument reports false
// when the user cancelled.
type DocumentPicker interface {
	PickDocument(ctx context.Context, accepted []string) (catalog.DocumentRef, bool, error)
}

// Confirmer is a two-choice dialog.
type Confirmer interface {
	Confirm(ctx context.Context, message string) (bool, error)
}

// ConfirmFunc adapts a function to Confirmer.
type ConfirmFunc func(ctx context.Context, message string) (bool, error)

// Confirm calls f.
func (f ConfirmFunc) Confirm(ctx context.Context, message string) (bool, error) {
	return f(ctx, message)
}

// AlwaysConfirm proceeds with every action. Used by non-interactive callers.
var AlwaysConfirm Confirmer = ConfirmFunc(func(context.Context, string) (bool, error) {
	return true, nil
})

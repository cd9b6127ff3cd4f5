package ports

import "context"

// RegistryService defines operations for publishing locally built images.
type RegistryService interface {
	// TagImage applies targetRef to the image currently known as sourceRef.
	TagImage(ctx context.Context, sourceRef string, targetRef string) error
	// PushImage uploads the referenced image to its registry.
	PushImage(ctx context.Context, ref string) error
	// RemoveImage deletes a local image reference.
	RemoveImage(ctx context.Context, ref string) error
}

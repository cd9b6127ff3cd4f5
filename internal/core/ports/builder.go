package ports

import "context"

// BuilderService defines operations for building container images from source code.
type BuilderService interface {
	// BuildImage builds a Docker image from the given source, which is either
	// a git clone URL or a local build-context directory. It returns the
	// reference the image was tagged with, or an error.
	BuildImage(ctx context.Context, source string, imageRef string) (string, error)
}

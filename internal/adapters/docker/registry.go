package docker

import (
	"context"
	"fmt"
	"io"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/pkg/jsonmessage"
)

// TagImage applies targetRef to the image currently known as sourceRef.
func (a *Adapter) TagImage(ctx context.Context, sourceRef string, targetRef string) error {
	if err := a.cli.ImageTag(ctx, sourceRef, targetRef); err != nil {
		return fmt.Errorf("failed to tag %s as %s: %w", sourceRef, targetRef, err)
	}
	return nil
}

// PushImage uploads the referenced image to its registry. Push errors arrive
// inside the progress stream, not as a transport error, so the stream has to
// be decoded rather than drained.
func (a *Adapter) PushImage(ctx context.Context, ref string) error {
	reader, err := a.cli.ImagePush(ctx, ref, types.ImagePushOptions{RegistryAuth: a.auth})
	if err != nil {
		return fmt.Errorf("failed to push %s: %w", ref, err)
	}
	defer reader.Close()

	if err := jsonmessage.DisplayJSONMessagesStream(reader, io.Discard, 0, false, nil); err != nil {
		return fmt.Errorf("push of %s failed: %w", ref, err)
	}
	return nil
}

// RemoveImage deletes a local image reference.
func (a *Adapter) RemoveImage(ctx context.Context, ref string) error {
	if _, err := a.cli.ImageRemove(ctx, ref, types.ImageRemoveOptions{}); err != nil {
		return fmt.Errorf("failed to remove image %s: %w", ref, err)
	}
	return nil
}

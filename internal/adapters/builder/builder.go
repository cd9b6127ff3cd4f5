// Package builder implements ports.BuilderService: it turns a source tree
// (git URL or local directory) into a locally tagged Docker image.
package builder

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/archive"
	"github.com/docker/docker/pkg/jsonmessage"
	"github.com/go-git/go-git/v5"
	"github.com/sirupsen/logrus"
)

type Adapter struct {
	cli *client.Client
	log logrus.FieldLogger
}

func NewBuilderAdapter(log logrus.FieldLogger) (*Adapter, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("failed to create docker client: %w", err)
	}
	return &Adapter{cli: cli, log: log}, nil
}

// BuildImage builds imageRef from source. A source that looks like a git URL
// is shallow-cloned into a temporary directory first; anything else is used
// as a local build-context directory.
func (a *Adapter) BuildImage(ctx context.Context, source string, imageRef string) (string, error) {
	contextDir := source

	if isGitURL(source) {
		tmpDir, err := os.MkdirTemp("", "slipway-build-*")
		if err != nil {
			return "", fmt.Errorf("failed to create temp dir: %w", err)
		}
		defer os.RemoveAll(tmpDir) // Clean up after build

		a.log.WithFields(logrus.Fields{"repo": source, "dir": tmpDir}).Info("cloning source")
		_, err = git.PlainCloneContext(ctx, tmpDir, false, &git.CloneOptions{
			URL:   source,
			Depth: 1, // Shallow clone for speed
		})
		if err != nil {
			return "", fmt.Errorf("failed to clone repo: %w", err)
		}
		contextDir = tmpDir
	}

	tar, err := archive.TarWithOptions(contextDir, &archive.TarOptions{})
	if err != nil {
		return "", fmt.Errorf("failed to create build context: %w", err)
	}

	a.log.WithField("image", imageRef).Info("building image")
	resp, err := a.cli.ImageBuild(ctx, tar, types.ImageBuildOptions{
		Tags:       []string{imageRef},
		Dockerfile: "Dockerfile",
		Remove:     true, // Remove intermediate containers
	})
	if err != nil {
		return "", fmt.Errorf("failed to build image: %w", err)
	}
	defer resp.Body.Close()

	// Build failures are reported inside the message stream; decoding it is
	// the only way to see them (a drained stream swallows the error).
	if err := jsonmessage.DisplayJSONMessagesStream(resp.Body, io.Discard, 0, false, nil); err != nil {
		return "", fmt.Errorf("build of %s failed: %w", imageRef, err)
	}

	return imageRef, nil
}

func isGitURL(source string) bool {
	return strings.HasPrefix(source, "http://") ||
		strings.HasPrefix(source, "https://") ||
		strings.HasPrefix(source, "git@") ||
		strings.HasSuffix(source, ".git")
}

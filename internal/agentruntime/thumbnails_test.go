package agentruntime

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractThumbnailsDegradesGracefullyWithoutFfprobe(t *testing.T) {
	runtime := &Runtime{cfg: Config{ThumbnailCount: 4}}

	thumbs, offsets := runtime.extractThumbnails(context.Background(), "/nonexistent/video.mkv")

	assert.Nil(t, thumbs, "a probe failure should degrade to no thumbnails rather than error out the rip job")
	assert.Nil(t, offsets)
}

package publisher

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/reelcast/reelcast/internal/service/media"
	"github.com/reelcast/reelcast/pkg/util"
)

const (
	facebookGraphVideoURL = "https://graph-video.facebook.com/v19.0"
	facebookHashtagLimit  = 15
)

// FacebookPublisher uploads the video to a page feed with a single
// multipart call against the graph-video host.
type FacebookPublisher struct {
	accessToken string
	pageID      string
	client      *http.Client
	logger      *zap.Logger

	graphURL string
}

func NewFacebookPublisher(accessToken, pageID string, logger *zap.Logger) *FacebookPublisher {
	return &FacebookPublisher{
		accessToken: accessToken,
		pageID:      pageID,
		client:      newHTTPClient(),
		logger:      logger,
		graphURL:    facebookGraphVideoURL,
	}
}

func (p *FacebookPublisher) Name() string { return "facebook" }

func (p *FacebookPublisher) Publish(ctx context.Context, artifact *media.Artifact, caption string, hashtags []string) (string, error) {
	description := caption
	if tags := util.FormatHashtags(hashtags, facebookHashtagLimit); tags != "" {
		description = caption + "\n\n" + tags
	}

	body, contentType, err := p.buildForm(artifact.Path, description)
	if err != nil {
		return "", fmt.Errorf("%w: build upload form: %v", ErrTransient, err)
	}

	endpoint := fmt.Sprintf("%s/%s/videos", p.graphURL, p.pageID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, body)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrTransient, err)
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := p.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: facebook upload: %v", ErrTransient, err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return "", classifyGraphError(p.Name(), resp.StatusCode, respBody)
	}

	var result struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(respBody, &result); err != nil || result.ID == "" {
		return "", fmt.Errorf("%w: facebook response missing video id", ErrTransient)
	}

	p.logger.Info("facebook video published", zap.String("video_id", result.ID))
	return result.ID, nil
}

func (p *FacebookPublisher) buildForm(videoPath, description string) (io.Reader, string, error) {
	f, err := os.Open(videoPath)
	if err != nil {
		return nil, "", err
	}
	defer f.Close()

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	if err := w.WriteField("description", description); err != nil {
		return nil, "", err
	}
	if err := w.WriteField("access_token", p.accessToken); err != nil {
		return nil, "", err
	}

	part, err := w.CreateFormFile("source", filepath.Base(videoPath))
	if err != nil {
		return nil, "", err
	}
	if _, err := io.Copy(part, f); err != nil {
		return nil, "", err
	}

	if err := w.Close(); err != nil {
		return nil, "", err
	}

	return &buf, w.FormDataContentType(), nil
}

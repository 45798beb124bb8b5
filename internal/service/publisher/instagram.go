package publisher

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/reelcast/reelcast/internal/service/media"
	"github.com/reelcast/reelcast/pkg/util"
)

const (
	instagramGraphURL   = "https://graph.facebook.com/v19.0"
	instagramRuploadURL = "https://rupload.facebook.com/ig-api-upload/v19.0"

	instagramCaptionLimit = 2200
	instagramHashtagLimit = 30

	instagramPollInterval = 5 * time.Second
	instagramPollBudget   = 5 * time.Minute
)

// InstagramPublisher posts Reels through the Instagram Graph API resumable
// flow: create a media container, upload the bytes, wait for server-side
// processing, then publish the container.
type InstagramPublisher struct {
	accessToken string
	accountID   string
	client      *http.Client
	logger      *zap.Logger

	graphURL     string
	ruploadURL   string
	pollInterval time.Duration
}

func NewInstagramPublisher(accessToken, accountID string, logger *zap.Logger) *InstagramPublisher {
	return &InstagramPublisher{
		accessToken:  accessToken,
		accountID:    accountID,
		client:       newHTTPClient(),
		logger:       logger,
		graphURL:     instagramGraphURL,
		ruploadURL:   instagramRuploadURL,
		pollInterval: instagramPollInterval,
	}
}

func (p *InstagramPublisher) Name() string { return "instagram" }

func (p *InstagramPublisher) Publish(ctx context.Context, artifact *media.Artifact, caption string, hashtags []string) (string, error) {
	fullCaption := caption
	if tags := util.FormatHashtags(hashtags, instagramHashtagLimit); tags != "" {
		fullCaption = caption + "\n\n" + tags
	}
	fullCaption = util.Truncate(fullCaption, instagramCaptionLimit)

	containerID, err := p.createContainer(ctx, fullCaption)
	if err != nil {
		return "", err
	}

	if err := p.uploadVideo(ctx, containerID, artifact.Path); err != nil {
		return "", err
	}

	if err := p.waitForProcessing(ctx, containerID); err != nil {
		return "", err
	}

	mediaID, err := p.publishContainer(ctx, containerID)
	if err != nil {
		return "", err
	}

	p.logger.Info("instagram reel published", zap.String("media_id", mediaID))
	return mediaID, nil
}

func (p *InstagramPublisher) createContainer(ctx context.Context, caption string) (string, error) {
	form := url.Values{
		"media_type":   {"REELS"},
		"upload_type":  {"resumable"},
		"caption":      {caption},
		"access_token": {p.accessToken},
	}

	var result struct {
		ID string `json:"id"`
	}
	if err := p.postForm(ctx, fmt.Sprintf("%s/%s/media", p.graphURL, p.accountID), form, &result); err != nil {
		return "", err
	}
	if result.ID == "" {
		return "", fmt.Errorf("%w: instagram container response missing id", ErrTransient)
	}
	return result.ID, nil
}

func (p *InstagramPublisher) uploadVideo(ctx context.Context, containerID, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("%w: read artifact: %v", ErrTransient, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		fmt.Sprintf("%s/%s", p.ruploadURL, containerID), bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrTransient, err)
	}
	req.Header.Set("Authorization", "OAuth "+p.accessToken)
	req.Header.Set("offset", "0")
	req.Header.Set("file_size", strconv.Itoa(len(data)))
	req.Header.Set("Content-Type", "application/octet-stream")

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: instagram upload: %v", ErrTransient, err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return classifyStatus(p.Name(), resp.StatusCode, string(body))
	}
	return nil
}

// waitForProcessing polls the container status until Instagram finishes
// transcoding. A container stuck past the budget is treated as transient.
func (p *InstagramPublisher) waitForProcessing(ctx context.Context, containerID string) error {
	deadline := time.Now().Add(instagramPollBudget)

	for time.Now().Before(deadline) {
		statusURL := fmt.Sprintf("%s/%s?fields=status_code,status&access_token=%s",
			p.graphURL, containerID, url.QueryEscape(p.accessToken))

		var result struct {
			StatusCode string `json:"status_code"`
			Status     string `json:"status"`
		}
		if err := p.getJSON(ctx, statusURL, &result); err != nil {
			return err
		}

		switch result.StatusCode {
		case "FINISHED":
			return nil
		case "ERROR", "EXPIRED":
			return &PlatformRejectedError{Platform: p.Name(), Reason: "container status " + result.StatusCode + ": " + result.Status}
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: %v", ErrTransient, ctx.Err())
		case <-time.After(p.pollInterval):
		}
	}

	return fmt.Errorf("%w: instagram container %s still processing after %s", ErrTransient, containerID, instagramPollBudget)
}

func (p *InstagramPublisher) publishContainer(ctx context.Context, containerID string) (string, error) {
	form := url.Values{
		"creation_id":  {containerID},
		"access_token": {p.accessToken},
	}

	var result struct {
		ID string `json:"id"`
	}
	if err := p.postForm(ctx, fmt.Sprintf("%s/%s/media_publish", p.graphURL, p.accountID), form, &result); err != nil {
		return "", err
	}
	if result.ID == "" {
		return "", fmt.Errorf("%w: instagram publish response missing id", ErrTransient)
	}
	return result.ID, nil
}

func (p *InstagramPublisher) postForm(ctx context.Context, endpoint string, form url.Values, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrTransient, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: instagram request: %v", ErrTransient, err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return classifyGraphError(p.Name(), resp.StatusCode, body)
	}
	return json.Unmarshal(body, out)
}

func (p *InstagramPublisher) getJSON(ctx context.Context, endpoint string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrTransient, err)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: instagram request: %v", ErrTransient, err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return classifyGraphError(p.Name(), resp.StatusCode, body)
	}
	return json.Unmarshal(body, out)
}

// classifyGraphError refines classifyStatus with the Graph API error object:
// code 190 is an invalidated token regardless of the HTTP status.
func classifyGraphError(platform string, status int, body []byte) error {
	var payload struct {
		Error struct {
			Message string `json:"message"`
			Code    int    `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err == nil && payload.Error.Code == 190 {
		return fmt.Errorf("%w: %s: %s", ErrAuthExpired, platform, payload.Error.Message)
	}
	return classifyStatus(platform, status, string(body))
}

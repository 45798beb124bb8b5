package publisher

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"os"
	"strings"

	"go.uber.org/zap"

	"github.com/reelcast/reelcast/internal/service/media"
	"github.com/reelcast/reelcast/pkg/util"
)

const (
	youtubeTokenURL  = "https://oauth2.googleapis.com/token"
	youtubeUploadURL = "https://www.googleapis.com/upload/youtube/v3/videos?uploadType=multipart&part=snippet,status"

	youtubeTitleLimit   = 100
	youtubeHashtagLimit = 10
)

// YouTubePublisher uploads Shorts via the YouTube Data API, minting a fresh
// access token from the stored refresh token on every publish.
type YouTubePublisher struct {
	clientID     string
	clientSecret string
	refreshToken string
	client       *http.Client
	logger       *zap.Logger

	// Overridable in tests.
	tokenURL  string
	uploadURL string
}

func NewYouTubePublisher(clientID, clientSecret, refreshToken string, logger *zap.Logger) *YouTubePublisher {
	return &YouTubePublisher{
		clientID:     clientID,
		clientSecret: clientSecret,
		refreshToken: refreshToken,
		client:       newHTTPClient(),
		logger:       logger,
		tokenURL:     youtubeTokenURL,
		uploadURL:    youtubeUploadURL,
	}
}

func (p *YouTubePublisher) Name() string { return "youtube" }

func (p *YouTubePublisher) Publish(ctx context.Context, artifact *media.Artifact, caption string, hashtags []string) (string, error) {
	accessToken, err := p.mintAccessToken(ctx)
	if err != nil {
		return "", err
	}

	title := util.Truncate(caption, youtubeTitleLimit)
	description := caption
	if tags := util.FormatHashtags(hashtags, youtubeHashtagLimit); tags != "" {
		description = caption + "\n\n" + tags
	}

	snippet := map[string]any{
		"snippet": map[string]any{
			"title":       title,
			"description": description,
			"categoryId":  "25", // News & Politics
		},
		"status": map[string]any{
			"privacyStatus":           "public",
			"selfDeclaredMadeForKids": false,
		},
	}

	body, contentType, err := buildUploadBody(snippet, artifact.Path)
	if err != nil {
		return "", fmt.Errorf("%w: build upload body: %v", ErrTransient, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.uploadURL, body)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrTransient, err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Content-Type", contentType)

	resp, err := p.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: youtube upload: %v", ErrTransient, err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return "", classifyStatus(p.Name(), resp.StatusCode, string(respBody))
	}

	var result struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(respBody, &result); err != nil || result.ID == "" {
		return "", fmt.Errorf("%w: youtube response missing video id", ErrTransient)
	}

	p.logger.Info("youtube upload complete", zap.String("video_id", result.ID))
	return result.ID, nil
}

func (p *YouTubePublisher) mintAccessToken(ctx context.Context) (string, error) {
	form := url.Values{
		"client_id":     {p.clientID},
		"client_secret": {p.clientSecret},
		"refresh_token": {p.refreshToken},
		"grant_type":    {"refresh_token"},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrTransient, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := p.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: token exchange: %v", ErrTransient, err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		// A dead refresh token comes back as 400 invalid_grant, not 401.
		if resp.StatusCode == http.StatusBadRequest && strings.Contains(string(body), "invalid_grant") {
			return "", fmt.Errorf("%w: youtube refresh token revoked", ErrAuthExpired)
		}
		return "", classifyStatus(p.Name(), resp.StatusCode, string(body))
	}

	var token struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.Unmarshal(body, &token); err != nil || token.AccessToken == "" {
		return "", fmt.Errorf("%w: token response missing access_token", ErrAuthExpired)
	}

	return token.AccessToken, nil
}

// buildUploadBody assembles the two-part multipart/related payload the
// YouTube upload endpoint expects: JSON metadata then the video bytes.
func buildUploadBody(metadata any, videoPath string) (io.Reader, string, error) {
	f, err := os.Open(videoPath)
	if err != nil {
		return nil, "", err
	}
	defer f.Close()

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	metaHeader := textproto.MIMEHeader{}
	metaHeader.Set("Content-Type", "application/json; charset=UTF-8")
	metaPart, err := w.CreatePart(metaHeader)
	if err != nil {
		return nil, "", err
	}
	if err := json.NewEncoder(metaPart).Encode(metadata); err != nil {
		return nil, "", err
	}

	videoHeader := textproto.MIMEHeader{}
	videoHeader.Set("Content-Type", "video/mp4")
	videoPart, err := w.CreatePart(videoHeader)
	if err != nil {
		return nil, "", err
	}
	if _, err := io.Copy(videoPart, f); err != nil {
		return nil, "", err
	}

	if err := w.Close(); err != nil {
		return nil, "", err
	}

	contentType := strings.Replace(w.FormDataContentType(), "multipart/form-data", "multipart/related", 1)
	return &buf, contentType, nil
}

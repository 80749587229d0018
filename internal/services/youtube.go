package services

import (
	"fmt"
	urlpkg "net/url"
	"strings"

	ytapi "github.com/hightemp/youtube-transcript-api-go/api"
	yt "github.com/kkdai/youtube/v2"
)

// YouTubeService fetches caption transcripts for lecture recordings so they
// can be indexed alongside uploaded readings.
type YouTubeService struct {
	transcriptAPI *ytapi.YouTubeTranscriptApi
	ytClient      *yt.Client
}

func NewYouTubeService() *YouTubeService {
	return &YouTubeService{
		transcriptAPI: ytapi.NewYouTubeTranscriptApi(),
		ytClient:      &yt.Client{},
	}
}

// GetTranscript fetches the caption track for a video, preferring English and
// falling back to whatever language is available.
func (s *YouTubeService) GetTranscript(videoID string) (string, error) {
	transcript, err := s.transcriptAPI.GetTranscript(videoID, []string{"en", "en-US", "en-GB"})
	if err != nil {
		transcript, err = s.transcriptAPI.GetTranscript(videoID, nil)
		if err != nil {
			return "", fmt.Errorf("no captions available for video %s: %w", videoID, err)
		}
	}

	if len(transcript.Entries) == 0 {
		return "", fmt.Errorf("caption track is empty for video %s", videoID)
	}

	var fullText strings.Builder
	for _, entry := range transcript.Entries {
		text := strings.TrimSpace(entry.Text)
		if text == "" {
			continue
		}
		fullText.WriteString(text)
		fullText.WriteString(" ")
	}

	cleaned := strings.TrimSpace(fullText.String())
	if cleaned == "" {
		return "", fmt.Errorf("caption text resolved to empty content for video %s", videoID)
	}

	return cleaned, nil
}

// GetTitle resolves the video title for use as the document title and chunk
// provenance prefix. Failures fall back to the video ID.
func (s *YouTubeService) GetTitle(videoID string) string {
	video, err := s.ytClient.GetVideo("https://www.youtube.com/watch?v=" + videoID)
	if err != nil || strings.TrimSpace(video.Title) == "" {
		return videoID
	}
	return video.Title
}

// ExtractVideoID pulls the 11-character video ID out of the URL shapes
// students paste: watch links, shorts, embeds and youtu.be short links.
func ExtractVideoID(url string) string {
	parsed, err := urlpkg.Parse(url)
	if err != nil {
		return ""
	}

	host := strings.ToLower(parsed.Host)
	path := strings.Trim(parsed.Path, "/")

	if strings.Contains(host, "youtube.com") {
		if v := parsed.Query().Get("v"); len(v) == 11 {
			return v
		}

		parts := strings.Split(path, "/")
		if len(parts) >= 2 {
			switch parts[0] {
			case "shorts", "embed", "v":
				if len(parts[1]) == 11 {
					return parts[1]
				}
			}
		}
	}

	if strings.Contains(host, "youtu.be") && len(path) == 11 {
		return path
	}

	return ""
}

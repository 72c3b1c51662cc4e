package extractor

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"html"
	"log/slog"
	"net/url"
	"regexp"
	"strings"

	"distill/internal/domain"

	"github.com/go-resty/resty/v2"
	"github.com/tidwall/gjson"
)

const (
	playerResponseMarker = "ytInitialPlayerResponse"
	captionTracksPath    = "captions.playerCaptionsTracklistRenderer.captionTracks"
)

var (
	videoIDRe = regexp.MustCompile(`^[A-Za-z0-9_-]{11}$`)
	tagRe     = regexp.MustCompile(`<[^>]*>`)
)

// Video extracts YouTube caption transcripts.
type Video struct {
	client    *resty.Client
	baseURL   string
	languages []string
	log       *slog.Logger
}

func NewVideo(client *resty.Client, baseURL string, languages []string, log *slog.Logger) *Video {
	return &Video{
		client:    client,
		baseURL:   strings.TrimRight(baseURL, "/"),
		languages: languages,
		log:       log,
	}
}

type captionTrack struct {
	baseURL  string
	language string
	auto     bool
}

func (v *Video) Extract(ctx context.Context, handle string) (*domain.Document, error) {
	id, ok := ParseVideoID(handle)
	if !ok {
		return nil, domain.NewExtractionError(domain.ExtractionUnsupported, domain.SourceVideo, handle,
			errors.New("not a YouTube video URL or id"))
	}

	watchURL := v.baseURL + "/watch?v=" + id

	resp, err := get(ctx, v.client, domain.SourceVideo, handle, watchURL)
	if err != nil {
		return nil, err
	}

	player, ok := playerResponse(string(resp.Body()))
	if !ok {
		return nil, domain.NewExtractionError(domain.ExtractionParseFailure, domain.SourceVideo, handle,
			errors.New("player response is missing"))
	}

	if status := gjson.Get(player, "playabilityStatus.status").String(); status == "ERROR" {
		return nil, domain.NewExtractionError(domain.ExtractionNotFound, domain.SourceVideo, handle,
			fmt.Errorf("video is unavailable: %s", gjson.Get(player, "playabilityStatus.reason").String()))
	}

	track, ok := pickCaptionTrack(captionTracks(player), v.languages)
	if !ok {
		return nil, domain.NewExtractionError(domain.ExtractionNotFound, domain.SourceVideo, handle,
			errors.New("video has no captions"))
	}

	captionsResp, err := get(ctx, v.client, domain.SourceVideo, handle, track.baseURL)
	if err != nil {
		return nil, err
	}

	text, err := parseTimedText(captionsResp.Body())
	if err != nil {
		return nil, domain.NewExtractionError(domain.ExtractionParseFailure, domain.SourceVideo, handle,
			fmt.Errorf("parse captions: %w", err))
	}

	metadata := map[string]string{
		"video_id": id,
		"url":      watchURL,
		"language": track.language,
	}
	if title := gjson.Get(player, "videoDetails.title").String(); title != "" {
		metadata["title"] = title
	}
	if author := gjson.Get(player, "videoDetails.author").String(); author != "" {
		metadata["author"] = author
	}
	if duration := gjson.Get(player, "videoDetails.lengthSeconds").String(); duration != "" {
		metadata["duration"] = duration
	}
	if track.auto {
		metadata["captions"] = "auto"
	}

	v.log.DebugContext(ctx, "Fetched video transcript",
		"videoID", id,
		"language", track.language,
		"auto", track.auto)

	return domain.NewDocument(domain.SourceVideo, id, text, metadata), nil
}

// ParseVideoID accepts a bare id and the usual YouTube URL shapes.
func ParseVideoID(handle string) (string, bool) {
	handle = strings.TrimSpace(handle)
	if videoIDRe.MatchString(handle) {
		return handle, true
	}

	u, err := url.Parse(handle)
	if err != nil {
		return "", false
	}

	host := strings.ToLower(u.Hostname())
	for _, prefix := range []string{"www.", "m.", "music."} {
		host = strings.TrimPrefix(host, prefix)
	}

	path := strings.Trim(u.Path, "/")
	parts := strings.Split(path, "/")

	var id string

	switch host {
	case "youtu.be":
		id = parts[0]
	case "youtube.com", "youtube-nocookie.com":
		switch {
		case path == "watch":
			id = u.Query().Get("v")
		case len(parts) >= 2 && (parts[0] == "shorts" || parts[0] == "embed" || parts[0] == "live" || parts[0] == "v"):
			id = parts[1]
		}
	}

	if !videoIDRe.MatchString(id) {
		return "", false
	}

	return id, true
}

// playerResponse cuts the player JSON object out of a watch page.
func playerResponse(page string) (string, bool) {
	marker := strings.Index(page, playerResponseMarker)
	if marker < 0 {
		return "", false
	}

	start := strings.IndexByte(page[marker:], '{')
	if start < 0 {
		return "", false
	}
	start += marker

	depth := 0
	inString := false
	escaped := false

	for i := start; i < len(page); i++ {
		c := page[i]

		switch {
		case escaped:
			escaped = false
		case inString && c == '\\':
			escaped = true
		case c == '"':
			inString = !inString
		case inString:
		case c == '{':
			depth++
		case c == '}':
			depth--
			if depth == 0 {
				obj := page[start : i+1]
				return obj, gjson.Valid(obj)
			}
		}
	}

	return "", false
}

func captionTracks(player string) []captionTrack {
	var tracks []captionTrack

	gjson.Get(player, captionTracksPath).ForEach(func(_, value gjson.Result) bool {
		baseURL := value.Get("baseUrl").String()
		if baseURL == "" {
			return true
		}

		tracks = append(tracks, captionTrack{
			baseURL:  baseURL,
			language: value.Get("languageCode").String(),
			auto:     value.Get("kind").String() == "asr",
		})

		return true
	})

	return tracks
}

// pickCaptionTrack prefers the earliest listed language and manual captions
// over generated ones. Without a language match the first track is used.
func pickCaptionTrack(tracks []captionTrack, languages []string) (captionTrack, bool) {
	if len(tracks) == 0 {
		return captionTrack{}, false
	}

	for _, lang := range languages {
		var auto *captionTrack

		for i := range tracks {
			if !strings.EqualFold(tracks[i].language, lang) &&
				!strings.HasPrefix(strings.ToLower(tracks[i].language), strings.ToLower(lang)+"-") {
				continue
			}

			if !tracks[i].auto {
				return tracks[i], true
			}
			if auto == nil {
				auto = &tracks[i]
			}
		}

		if auto != nil {
			return *auto, true
		}
	}

	return tracks[0], true
}

type timedText struct {
	Texts      []timedTextLine `xml:"text"`
	Paragraphs []timedTextLine `xml:"body>p"`
}

type timedTextLine struct {
	Body string `xml:",innerxml"`
}

// parseTimedText reads both the legacy transcript format and srv3.
func parseTimedText(data []byte) (string, error) {
	var tt timedText
	if err := xml.Unmarshal(data, &tt); err != nil {
		return "", err
	}

	lines := tt.Texts
	if len(lines) == 0 {
		lines = tt.Paragraphs
	}

	parts := make([]string, 0, len(lines))
	for _, line := range lines {
		text := tagRe.ReplaceAllString(line.Body, "")
		// Caption text is entity encoded twice.
		text = html.UnescapeString(html.UnescapeString(text))
		text = strings.Join(strings.Fields(text), " ")

		if text != "" {
			parts = append(parts, text)
		}
	}

	return strings.Join(parts, " "), nil
}

package handlers

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/journeyforge/orchestrator/internal/domain"
	"github.com/journeyforge/orchestrator/internal/errtax"
	"github.com/journeyforge/orchestrator/internal/scheduler"
	"github.com/journeyforge/orchestrator/internal/store"
	"github.com/journeyforge/orchestrator/internal/task"
)

// industryKeywords maps a lowercase keyword found in a recent job title to
// the inferred industry named in the character bible.
var industryKeywords = []struct {
	keyword, industry string
}{
	{"engineer", "software engineering"},
	{"developer", "software engineering"},
	{"scientist", "research and data science"},
	{"data", "data and analytics"},
	{"design", "design"},
	{"product", "product management"},
	{"market", "marketing"},
	{"sales", "sales"},
	{"finance", "finance"},
	{"nurse", "healthcare"},
	{"doctor", "healthcare"},
	{"teacher", "education"},
	{"professor", "education"},
	{"founder", "entrepreneurship"},
	{"ceo", "executive leadership"},
	{"director", "executive leadership"},
	{"manager", "management"},
	{"lawyer", "law"},
	{"architect", "architecture"},
}

// GenerateVideo implements GENERATE_VIDEO (spec.md §4.F.7).
type GenerateVideo struct{ Deps }

func NewGenerateVideo(d Deps) *GenerateVideo { return &GenerateVideo{Deps: d} }

func (h *GenerateVideo) Execute(ctx context.Context, jobID string, plan *task.Plan, t *task.Task, report scheduler.ReportProgress) (any, error) {
	profile, documentary, err := h.resolveInputs(ctx, plan)
	if err != nil {
		return nil, err
	}

	segments := documentary.Segments
	if firstOnly, _ := plan.Options["first_segment_only"].(bool); firstOnly && len(segments) > 1 {
		segments = segments[:1]
	}
	if len(segments) == 0 {
		return nil, errtax.Domain(fmt.Errorf("generate_video: documentary has no segments to render"))
	}

	resolution, aspectRatio := videoSettings(plan.Options)
	bible := characterBible(profile)

	historyID, _ := plan.Options["history_id"].(string)

	result := domain.VideoResult{}
	var (
		continuityRef string
		clips         [][]byte
	)

	for i, seg := range segments {
		if err := validateSegment(seg); err != nil {
			result.SegmentsFailed++
			continue
		}

		prompt := fmt.Sprintf("%s\n\nSegment %d: %s\nVisual: %s\nNarration: %s\nMood: %s",
			bible, seg.Order, seg.Title, seg.VisualDescription, seg.Narration, seg.Mood)

		video, err := h.Gateway.GenerateVideoSegment(ctx, prompt, 8, resolution, aspectRatio, continuityRef)
		if err != nil {
			result.SegmentsFailed++
			continue
		}
		continuityRef = video.Handle
		clips = append(clips, video.Bytes)

		url, uploadErr := h.uploadSegment(ctx, jobID, historyID, i, video.Bytes)
		if uploadErr == nil {
			result.SegmentVideoURLs = append(result.SegmentVideoURLs, url)
		}
		result.SegmentsOK++
		report(10+((i+1)*80)/len(segments), fmt.Sprintf("rendered segment %d/%d", i+1, len(segments)))
	}

	if result.SegmentsOK == 0 {
		return nil, errtax.Domain(fmt.Errorf("generate_video: all %d segments failed", len(segments)))
	}

	if len(clips) > 1 {
		merged, err := h.Gateway.ConcatVideos(ctx, clips)
		if err == nil {
			if url, uploadErr := h.uploadFull(ctx, jobID, historyID, merged); uploadErr == nil {
				result.FullVideoURL = url
				result.IntroVideoURL = url
			}
		}
	} else if len(result.SegmentVideoURLs) == 1 {
		result.FullVideoURL = result.SegmentVideoURLs[0]
		result.IntroVideoURL = result.SegmentVideoURLs[0]
	}

	report(100, fmt.Sprintf("video complete: %d/%d segments", result.SegmentsOK, len(segments)))
	return result, nil
}

func (h *GenerateVideo) resolveInputs(ctx context.Context, plan *task.Plan) (domain.Profile, domain.Documentary, error) {
	if doc, ok := plan.ResultData[task.KindGenerateDocumentary].(domain.Documentary); ok {
		return resolveProfile(plan), doc, nil
	}

	historyID, _ := plan.Options["history_id"].(string)
	if h.Store == nil || historyID == "" {
		return domain.Profile{}, domain.Documentary{}, errtax.Domain(fmt.Errorf("generate_video: no documentary in plan and no history_id to load one from the store"))
	}
	stored, err := h.Store.ReadStructured(ctx, historyID)
	if err != nil {
		return domain.Profile{}, domain.Documentary{}, fmt.Errorf("read_structured: %w", err)
	}
	var profile domain.Profile
	var documentary domain.Documentary
	_ = decode(stored, &profile)
	if err := decode(stored, &documentary); err != nil {
		return domain.Profile{}, domain.Documentary{}, fmt.Errorf("decode stored documentary: %w", err)
	}
	return profile, documentary, nil
}

func (h *GenerateVideo) uploadSegment(ctx context.Context, jobID, historyID string, index int, bytes []byte) (string, error) {
	if h.Store == nil {
		return "", fmt.Errorf("no blob store configured")
	}
	name := jobID + "-segment-" + strconv.Itoa(index) + ".mp4"
	url, err := h.Store.UploadBlob(ctx, name, bytes)
	if err != nil {
		return "", err
	}
	if historyID != "" {
		_ = h.Store.WriteField(ctx, historyID, store.FieldSegmentVideoURLs, url)
	}
	return url, nil
}

func (h *GenerateVideo) uploadFull(ctx context.Context, jobID, historyID string, bytes []byte) (string, error) {
	if h.Store == nil {
		return "", fmt.Errorf("no blob store configured")
	}
	url, err := h.Store.UploadBlob(ctx, jobID+"-full.mp4", bytes)
	if err != nil {
		return "", err
	}
	if historyID != "" {
		_ = h.Store.WriteField(ctx, historyID, store.FieldFullVideoURL, url)
	}
	return url, nil
}

func videoSettings(options map[string]any) (resolution, aspectRatio string) {
	resolution, aspectRatio = "1080p", "16:9"
	settings, ok := options["video_settings"].(map[string]any)
	if !ok {
		return resolution, aspectRatio
	}
	if r, ok := settings["resolution"].(string); ok && r != "" {
		resolution = r
	}
	if a, ok := settings["aspect_ratio"].(string); ok && a != "" {
		aspectRatio = a
	}
	return resolution, aspectRatio
}

func validateSegment(seg domain.Segment) error {
	if seg.Narration == "" {
		return fmt.Errorf("segment %s missing narration", seg.ID)
	}
	if seg.VisualDescription == "" {
		return fmt.Errorf("segment %s missing visual_description", seg.ID)
	}
	if words := len(strings.Fields(seg.Narration)); words > 15 {
		return fmt.Errorf("segment %s narration too long: %d words", seg.ID, words)
	}
	return nil
}

// characterBible fixes identity, demeanour, cinematographic palette and
// voice continuity rules shared by every segment's prompt.
func characterBible(p domain.Profile) string {
	industry := inferIndustry(p)
	return fmt.Sprintf(
		"Character bible: %s, currently %s in %s. Demeanour: confident, warm, articulate. "+
			"Cinematography: consistent lighting and color palette suited to %s across every segment. "+
			"Voice continuity: same vocal tone, pacing, and framing as prior segments.",
		p.Name, p.Title, industry, industry,
	)
}

func inferIndustry(p domain.Profile) string {
	if len(p.Experiences) == 0 {
		return "professional services"
	}
	title := strings.ToLower(p.Experiences[0].Title)
	for _, kw := range industryKeywords {
		if strings.Contains(title, kw.keyword) {
			return kw.industry
		}
	}
	return "professional services"
}

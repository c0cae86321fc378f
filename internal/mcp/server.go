package mcp

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rs/zerolog"

	"github.com/dentaltracker/dentaltracker/internal/database"
	"github.com/dentaltracker/dentaltracker/internal/services"
	"github.com/dentaltracker/dentaltracker/internal/timelapse"
	"github.com/dentaltracker/dentaltracker/internal/tracker"
	"github.com/dentaltracker/dentaltracker/internal/usecase"
)

// Server exposes the photo timeline and the timelapse pipeline as MCP tools.
type Server struct {
	server  *mcp.Server
	photos  *usecase.Photo
	tracker *tracker.Tracker
	log     zerolog.Logger
}

func NewServer(photos *usecase.Photo, tr *tracker.Tracker, version string, logger zerolog.Logger) *Server {
	mcpServer := mcp.NewServer(&mcp.Implementation{
		Name:    "dentaltracker",
		Version: version,
	}, nil)

	s := &Server{
		server:  mcpServer,
		photos:  photos,
		tracker: tr,
		log:     logger.With().Str("component", "mcp").Logger(),
	}

	s.registerTools()

	return s
}

// Run serves over stdio until ctx is done or the client disconnects.
func (s *Server) Run(ctx context.Context) error {
	return s.server.Run(ctx, &mcp.StdioTransport{})
}

// Connect serves a single session over t.
func (s *Server) Connect(ctx context.Context, t mcp.Transport) (*mcp.ServerSession, error) {
	return s.server.Connect(ctx, t, nil)
}

func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "photo_capture",
		Description: "Import a JPEG image as a new dental progress photo",
	}, s.handleCapture)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "photo_list",
		Description: "List all progress photos in capture order with a timeline summary",
	}, s.handleList)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "photo_info",
		Description: "Get a single progress photo by id",
	}, s.handleInfo)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "photo_note",
		Description: "Replace the note attached to a progress photo",
	}, s.handleNote)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "photo_delete",
		Description: "Delete a progress photo and its image file",
	}, s.handleDelete)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "timelapse_create",
		Description: "Compile every photo, oldest first, into a timelapse video",
	}, s.handleTimelapse)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "tracker_state",
		Description: "Report timelapse progress and the latest status message",
	}, s.handleState)
}

type CaptureInput struct {
	Path       string `json:"path" jsonschema:"absolute path of the JPEG image to import"`
	Note       string `json:"note,omitempty" jsonschema:"optional note stored with the photo"`
	CapturedAt string `json:"capturedAt,omitempty" jsonschema:"RFC3339 capture time, defaults to now"`
}

type PhotoOutput struct {
	ID             int64   `json:"id"`
	FilePath       string  `json:"filePath"`
	CapturedAt     string  `json:"capturedAt"`
	AlignmentScore float64 `json:"alignmentScore"`
	Notes          string  `json:"notes,omitempty"`
	Day            int     `json:"day"`
}

type ListInput struct{}

type ListOutput struct {
	Count       int           `json:"count"`
	DaysTracked int           `json:"daysTracked"`
	Photos      []PhotoOutput `json:"photos"`
}

type IDInput struct {
	ID int64 `json:"id" jsonschema:"photo id"`
}

type NoteInput struct {
	ID   int64  `json:"id" jsonschema:"photo id"`
	Note string `json:"note" jsonschema:"new note, empty to clear"`
}

type DeleteOutput struct {
	Message string `json:"message"`
	Deleted bool   `json:"deleted"`
}

type TimelapseInput struct {
	Publish bool `json:"publish,omitempty" jsonschema:"upload the video to the configured bucket"`
}

type TimelapseOutput struct {
	Message   string `json:"message"`
	Path      string `json:"path"`
	ObjectKey string `json:"objectKey,omitempty"`
}

type StateInput struct{}

func photoOutput(rec database.PhotoRecord, day int) PhotoOutput {
	return PhotoOutput{
		ID:             rec.ID,
		FilePath:       rec.FilePath,
		CapturedAt:     rec.CapturedAt.Format(time.RFC3339),
		AlignmentScore: rec.AlignmentScore,
		Notes:          rec.Notes,
		Day:            day,
	}
}

func (s *Server) handleCapture(ctx context.Context, req *mcp.CallToolRequest, input CaptureInput) (*mcp.CallToolResult, PhotoOutput, error) {
	capture := usecase.CaptureInput{SourcePath: input.Path, Notes: input.Note}
	if input.CapturedAt != "" {
		at, err := time.Parse(time.RFC3339, input.CapturedAt)
		if err != nil {
			return nil, PhotoOutput{}, fmt.Errorf("invalid capturedAt: %w", err)
		}
		capture.CapturedAt = at
	}

	rec, err := s.tracker.SavePhoto(ctx, capture)
	if err != nil {
		return nil, PhotoOutput{}, fmt.Errorf("failed to capture photo: %w", err)
	}
	return nil, photoOutput(rec, 0), nil
}

func (s *Server) handleList(ctx context.Context, req *mcp.CallToolRequest, input ListInput) (*mcp.CallToolResult, ListOutput, error) {
	photos, err := s.photos.Store().ListAll(ctx)
	if err != nil {
		return nil, ListOutput{}, fmt.Errorf("failed to list photos: %w", err)
	}

	tl := usecase.BuildTimeline(photos)
	out := ListOutput{
		Count:       tl.Count,
		DaysTracked: tl.DaysTracked,
		Photos:      make([]PhotoOutput, 0, len(tl.Entries)),
	}
	for _, e := range tl.Entries {
		out.Photos = append(out.Photos, photoOutput(e.Photo, e.DayOffset))
	}
	return nil, out, nil
}

func (s *Server) handleInfo(ctx context.Context, req *mcp.CallToolRequest, input IDInput) (*mcp.CallToolResult, PhotoOutput, error) {
	rec, err := s.photos.Get(ctx, input.ID)
	if err != nil {
		return nil, PhotoOutput{}, fmt.Errorf("failed to get photo: %w", err)
	}
	if rec == nil {
		return nil, PhotoOutput{}, fmt.Errorf("photo %d not found", input.ID)
	}
	return nil, photoOutput(*rec, s.dayOffset(ctx, *rec)), nil
}

func (s *Server) dayOffset(ctx context.Context, rec database.PhotoRecord) int {
	photos, err := s.photos.Store().ListAll(ctx)
	if err != nil || len(photos) == 0 {
		return 0
	}
	return int(rec.CapturedAt.Sub(photos[0].CapturedAt) / (24 * time.Hour))
}

func (s *Server) handleNote(ctx context.Context, req *mcp.CallToolRequest, input NoteInput) (*mcp.CallToolResult, PhotoOutput, error) {
	rec, err := s.photos.Annotate(ctx, input.ID, input.Note)
	if errors.Is(err, services.ErrNotFound) {
		return nil, PhotoOutput{}, fmt.Errorf("photo %d not found", input.ID)
	}
	if err != nil {
		return nil, PhotoOutput{}, fmt.Errorf("failed to update note: %w", err)
	}
	return nil, photoOutput(rec, s.dayOffset(ctx, rec)), nil
}

func (s *Server) handleDelete(ctx context.Context, req *mcp.CallToolRequest, input IDInput) (*mcp.CallToolResult, DeleteOutput, error) {
	deleted, err := s.tracker.DeletePhoto(ctx, input.ID)
	if err != nil {
		return nil, DeleteOutput{}, fmt.Errorf("failed to delete photo: %w", err)
	}
	if !deleted {
		return nil, DeleteOutput{Message: fmt.Sprintf("Photo %d does not exist", input.ID)}, nil
	}
	return nil, DeleteOutput{
		Message: fmt.Sprintf("Deleted photo %d", input.ID),
		Deleted: true,
	}, nil
}

func (s *Server) handleTimelapse(ctx context.Context, req *mcp.CallToolRequest, input TimelapseInput) (*mcp.CallToolResult, TimelapseOutput, error) {
	run, err := s.tracker.CreateTimelapse(ctx)
	switch {
	case errors.Is(err, timelapse.ErrNoPhotos):
		return nil, TimelapseOutput{}, errors.New(tracker.MsgNoPhotos)
	case err != nil:
		return nil, TimelapseOutput{}, err
	}

	res, err := run.Wait(ctx)
	if err != nil {
		return nil, TimelapseOutput{}, err
	}
	// Let the tracker settle so a follow-up request is not rejected as busy.
	s.tracker.Wait()
	if !res.Succeeded() {
		s.log.Error().Err(res.Err).Str("run_id", run.ID).Msg("timelapse tool failed")
		return nil, TimelapseOutput{}, errors.New(tracker.MsgTimelapseFailed)
	}

	out := TimelapseOutput{
		Message: "Timelapse created: " + filepath.Base(res.OutputPath),
		Path:    res.OutputPath,
	}
	if input.Publish {
		obj, err := s.photos.Publish(ctx, res.OutputPath)
		if err != nil {
			return nil, TimelapseOutput{}, fmt.Errorf("timelapse created at %s but publish failed: %w", res.OutputPath, err)
		}
		out.ObjectKey = obj.Key
	}
	return nil, out, nil
}

func (s *Server) handleState(ctx context.Context, req *mcp.CallToolRequest, input StateInput) (*mcp.CallToolResult, tracker.State, error) {
	return nil, s.tracker.State(), nil
}

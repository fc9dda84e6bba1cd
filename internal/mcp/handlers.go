package mcp

import (
	"context"
	"errors"
	"time"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/ppiankov/affirmgate/internal/model"
)

// DownloadInput defines parameters for the affirm_download tool.
type DownloadInput struct {
	URL string `json:"url" jsonschema:"download URL of the file"`
}

// DownloadOutput reports the user's decision.
type DownloadOutput struct {
	Affirmed bool   `json:"affirmed"`
	URL      string `json:"url,omitempty"`
	Message  string `json:"message,omitempty"`
}

// UploadInput defines parameters for the affirm_upload tool.
type UploadInput struct {
	Path string `json:"path" jsonschema:"workspace path the file will be uploaded to"`
}

// UploadOutput reports the user's decision.
type UploadOutput struct {
	Affirmed bool   `json:"affirmed"`
	Path     string `json:"path,omitempty"`
	Message  string `json:"message,omitempty"`
}

// PendingInput defines parameters for the affirm_pending tool (none).
type PendingInput struct{}

// PendingItem is one prompt waiting for the user.
type PendingItem struct {
	Key       string `json:"key"`
	Status    string `json:"status"`
	Title     string `json:"title"`
	Error     string `json:"error,omitempty"`
	CreatedAt string `json:"created_at"`
}

// PendingOutput lists waiting prompts.
type PendingOutput struct {
	Prompts []PendingItem `json:"prompts"`
}

func errorResult(msg string) *mcpsdk.CallToolResult {
	return &mcpsdk.CallToolResult{
		IsError: true,
		Content: []mcpsdk.Content{&mcpsdk.TextContent{Text: msg}},
	}
}

func (s *Server) handleDownload(ctx context.Context, req *mcpsdk.CallToolRequest, input DownloadInput) (*mcpsdk.CallToolResult, DownloadOutput, error) {
	if input.URL == "" {
		return errorResult("url is required"), DownloadOutput{}, nil
	}
	marked, err := s.download(ctx, input.URL)
	if err != nil {
		return nil, DownloadOutput{}, err
	}
	if marked == "" {
		out := DownloadOutput{Message: s.gate.Config().Download.CancelNotice.Body}
		return errorResult(out.Message), out, nil
	}
	return nil, DownloadOutput{Affirmed: true, URL: marked}, nil
}

func (s *Server) handleUpload(ctx context.Context, req *mcpsdk.CallToolRequest, input UploadInput) (*mcpsdk.CallToolResult, UploadOutput, error) {
	if input.Path == "" {
		return errorResult("path is required"), UploadOutput{}, nil
	}
	path, err := s.upload(ctx, input.Path)
	var refused *model.UploadRefusedError
	if errors.As(err, &refused) {
		out := UploadOutput{Message: refused.Error()}
		return errorResult(out.Message), out, nil
	}
	if err != nil {
		return nil, UploadOutput{}, err
	}
	return nil, UploadOutput{Affirmed: true, Path: path}, nil
}

func (s *Server) handlePending(ctx context.Context, req *mcpsdk.CallToolRequest, input PendingInput) (*mcpsdk.CallToolResult, PendingOutput, error) {
	out := PendingOutput{Prompts: []PendingItem{}}
	if s.pending == nil {
		return nil, out, nil
	}
	list, err := s.pending.List()
	if err != nil {
		return nil, PendingOutput{}, err
	}
	for _, e := range list {
		if e.Status.Final() {
			continue
		}
		out.Prompts = append(out.Prompts, PendingItem{
			Key:       e.Key,
			Status:    string(e.Status),
			Title:     e.Title,
			Error:     e.Error,
			CreatedAt: e.CreatedAt.Format(time.RFC3339),
		})
	}
	return nil, out, nil
}

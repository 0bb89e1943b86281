package storybook

import "context"

// ImageClient is the part of the Leonardo client the generator needs.
// *Client implements it.
type ImageClient interface {
	JobPoller
	StartGeneration(ctx context.Context, req GenerationRequest) (string, error)
	DownloadImage(ctx context.Context, url string) ([]byte, error)
}

var _ ImageClient = (*Client)(nil)

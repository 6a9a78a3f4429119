package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/go-resty/resty/v2"
	config "github.com/maheshrc27/content-publisher/configs"
	"github.com/maheshrc27/content-publisher/internal/models"
	"github.com/maheshrc27/content-publisher/internal/transfer"
)

const (
	stepCreateContainer = "create_container"
	stepContainerStatus = "container_status"
	stepPublish         = "media_publish"
)

type instagramPublisher struct {
	client      *resty.Client
	media       MediaResolver
	pollInitial time.Duration
	pollMax     time.Duration
	waitTimeout time.Duration
}

// NewInstagramPublisher publishes through the Graph API content publishing
// flow: create a media container, wait for it to finish processing, then
// commit it with media_publish.
func NewInstagramPublisher(cfg config.Publisher, media MediaResolver) Publisher {
	client := resty.New().
		SetBaseURL(cfg.GraphAPIBaseURL).
		SetTimeout(cfg.RequestTimeout).
		SetHeader("User-Agent", "content-publisher")

	return &instagramPublisher{
		client:      client,
		media:       media,
		pollInitial: cfg.ContainerPollInitial,
		pollMax:     cfg.ContainerPollMax,
		waitTimeout: cfg.ContainerWaitTimeout,
	}
}

func (s *instagramPublisher) Publish(ctx context.Context, accountID string, body models.ContentBody, accessToken string) (string, error) {
	if len(body.Media) == 0 {
		return "", ErrNoMedia
	}

	media, err := s.media.Resolve(ctx, body.Media[0])
	if err != nil {
		return "", err
	}

	containerID, err := s.createContainer(ctx, accountID, body.Text, media, accessToken)
	if err != nil {
		return "", err
	}

	if err := s.waitForContainer(ctx, containerID, accessToken); err != nil {
		return "", err
	}

	return s.publishContainer(ctx, accountID, containerID, accessToken)
}

func (s *instagramPublisher) createContainer(ctx context.Context, accountID, caption string, media models.MediaRef, accessToken string) (string, error) {
	params := map[string]string{
		"caption":      caption,
		"access_token": accessToken,
	}
	if media.Kind == models.MediaVideo {
		params["media_type"] = "REELS"
		params["video_url"] = media.URL
	} else {
		params["image_url"] = media.URL
	}

	resp, err := s.client.R().
		SetContext(ctx).
		SetPathParam("accountID", accountID).
		SetQueryParams(params).
		Post("/{accountID}/media")
	if err != nil {
		return "", fmt.Errorf("HTTP request error: %w", err)
	}

	var result transfer.GraphIDResponse
	if err := parseGraphResponse(resp, stepCreateContainer, &result); err != nil {
		return "", err
	}
	if result.ID == "" {
		return "", &GraphError{Step: stepCreateContainer, StatusCode: resp.StatusCode(), Message: "no container ID returned from Instagram"}
	}

	return result.ID, nil
}

// waitForContainer polls the container until Instagram reports it
// FINISHED. ERROR and EXPIRED, a Graph error payload or a 4xx end the wait
// at once. Transport errors and bare 5xx responses are retried. Running out
// of waitTimeout yields ErrContainerNotReady, or the last error seen.
func (s *instagramPublisher) waitForContainer(ctx context.Context, containerID, accessToken string) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = s.pollInitial
	b.MaxInterval = s.pollMax

	_, err := backoff.Retry(ctx, func() (string, error) {
		status, err := s.containerStatus(ctx, containerID, accessToken)
		if err != nil {
			var graphErr *GraphError
			if errors.As(err, &graphErr) && !graphErr.Transient() {
				return "", backoff.Permanent(err)
			}
			return "", err
		}

		switch status.StatusCode {
		case transfer.ContainerFinished, transfer.ContainerPublished:
			return status.StatusCode, nil
		case transfer.ContainerError, transfer.ContainerExpired:
			msg := fmt.Sprintf("media container %s", status.StatusCode)
			if status.Status != "" {
				msg = fmt.Sprintf("%s: %s", msg, status.Status)
			}
			return "", backoff.Permanent(&GraphError{Step: stepContainerStatus, Message: msg})
		default:
			return "", ErrContainerNotReady
		}
	}, backoff.WithBackOff(b), backoff.WithMaxElapsedTime(s.waitTimeout))
	if err != nil {
		if errors.Is(err, ErrContainerNotReady) {
			return fmt.Errorf("%w after %s", ErrContainerNotReady, s.waitTimeout)
		}
		return err
	}
	return nil
}

func (s *instagramPublisher) containerStatus(ctx context.Context, containerID, accessToken string) (*transfer.ContainerStatusResponse, error) {
	resp, err := s.client.R().
		SetContext(ctx).
		SetPathParam("containerID", containerID).
		SetQueryParams(map[string]string{
			"fields":       "status_code,status",
			"access_token": accessToken,
		}).
		Get("/{containerID}")
	if err != nil {
		return nil, fmt.Errorf("HTTP request error: %w", err)
	}

	var status transfer.ContainerStatusResponse
	if err := parseGraphResponse(resp, stepContainerStatus, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

func (s *instagramPublisher) publishContainer(ctx context.Context, accountID, containerID, accessToken string) (string, error) {
	resp, err := s.client.R().
		SetContext(ctx).
		SetPathParam("accountID", accountID).
		SetQueryParams(map[string]string{
			"creation_id":  containerID,
			"access_token": accessToken,
		}).
		Post("/{accountID}/media_publish")
	if err != nil {
		return "", fmt.Errorf("HTTP request error: %w", err)
	}

	var result transfer.GraphIDResponse
	if err := parseGraphResponse(resp, stepPublish, &result); err != nil {
		return "", err
	}
	if result.ID == "" {
		return "", &GraphError{Step: stepPublish, StatusCode: resp.StatusCode(), Message: "no media ID returned from Instagram"}
	}

	return result.ID, nil
}

// parseGraphResponse turns an error payload or a non-2xx status into a
// *GraphError and otherwise decodes the body into out.
func parseGraphResponse(resp *resty.Response, step string, out interface{}) error {
	var errResp transfer.GraphErrorResponse
	_ = json.Unmarshal(resp.Body(), &errResp)

	if errResp.Error != nil {
		msg := errResp.Error.Message
		if msg == "" {
			msg = fmt.Sprintf("Instagram %s request failed", step)
		}
		return &GraphError{
			Step:       step,
			StatusCode: resp.StatusCode(),
			Message:    msg,
			Type:       errResp.Error.Type,
			Code:       errResp.Error.Code,
			payload:    true,
		}
	}

	if resp.IsError() {
		return &GraphError{
			Step:       step,
			StatusCode: resp.StatusCode(),
			Message:    fmt.Sprintf("unexpected status code from Instagram: %d", resp.StatusCode()),
		}
	}

	if err := json.Unmarshal(resp.Body(), out); err != nil {
		return fmt.Errorf("error parsing %s response: %w", step, err)
	}
	return nil
}

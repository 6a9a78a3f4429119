package service

import (
	"context"
	"fmt"

	"github.com/maheshrc27/content-publisher/internal/models"
	"github.com/maheshrc27/content-publisher/internal/repository"
	"github.com/maheshrc27/content-publisher/pkg/utils"
)

type Credentials struct {
	IntegrationID string
	AccountID     string
	AccessToken   string
}

type CredentialService interface {
	Resolve(ctx context.Context, projectID string, platform models.Platform) (*Credentials, error)
}

type credentialService struct {
	ir  repository.IntegrationRepository
	key []byte
}

// NewCredentialService reads integrations through ir. key unseals tokens
// stored with utils.SealCredential.
func NewCredentialService(ir repository.IntegrationRepository, key []byte) CredentialService {
	return &credentialService{ir: ir, key: key}
}

func (s *credentialService) Resolve(ctx context.Context, projectID string, platform models.Platform) (*Credentials, error) {
	integrations, err := s.ir.ListByProjectPlatform(ctx, projectID, platform)
	if err != nil {
		return nil, fmt.Errorf("error loading %s integration for project %s: %w", platform, projectID, err)
	}

	switch len(integrations) {
	case 0:
		return nil, fmt.Errorf("%w for project %s on %s", ErrIntegrationMissing, projectID, platform)
	case 1:
	default:
		return nil, fmt.Errorf("%w for project %s on %s", ErrIntegrationAmbiguous, projectID, platform)
	}

	integration := integrations[0]
	if integration.AccessToken == "" {
		return nil, fmt.Errorf("%w for project %s on %s", ErrCredentialMissing, projectID, platform)
	}

	token, err := utils.OpenCredential(integration.AccessToken, s.key)
	if err != nil {
		return nil, fmt.Errorf("error unsealing %s credential for project %s: %w", platform, projectID, err)
	}
	if token == "" {
		return nil, fmt.Errorf("%w for project %s on %s", ErrCredentialMissing, projectID, platform)
	}

	return &Credentials{
		IntegrationID: integration.ID,
		AccountID:     integration.AccountID,
		AccessToken:   token,
	}, nil
}

// internal/storage/storage.go
package storage

import (
	"context"

	"github.com/monofi/monofid/internal/storage/models"
)

// Storage persists submissions, whale sightings and price samples.
type Storage interface {
	// Submissions
	SaveSubmission(ctx context.Context, sub *models.Submission) error
	GetSubmission(ctx context.Context, submissionID string) (*models.Submission, error)
	ListSubmissions(ctx context.Context, limit, offset int) ([]*models.Submission, error)
	UpdateSubmissionStatus(ctx context.Context, submissionID string, status string, errorMsg string) error

	// Whale sightings
	SaveWhaleSighting(ctx context.Context, sighting *models.WhaleSighting) error
	ListWhaleSightings(ctx context.Context, limit int) ([]*models.WhaleSighting, error)

	// Price samples
	SavePriceSample(ctx context.Context, sample *models.PriceSample) error
	ListPriceSamples(ctx context.Context, symbol string, limit int) ([]*models.PriceSample, error)

	RunMigrations() error
}

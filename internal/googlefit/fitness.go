package googlefit

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// ErrFitnessUnavailable covers network errors, non-2xx responses and
// malformed payloads from the Fitness API. Callers degrade the affected
// member to disconnected instead of failing the dashboard.
var ErrFitnessUnavailable = errors.New("fitness data unavailable")

const aggregateURL = "https://www.googleapis.com/fitness/v1/users/me/dataset:aggregate"

// DailyAggregate is one member's activity for the day so far.
type DailyAggregate struct {
	HeartPoints float64
	Steps       int64
}

// Fitness fetches daily activity aggregates.
type Fitness struct {
	url    string
	client *http.Client
}

func NewFitness() *Fitness {
	return &Fitness{url: aggregateURL, client: http.DefaultClient}
}

type aggregateRequest struct {
	AggregateBy     []aggregateBy `json:"aggregateBy"`
	BucketByTime    bucketByTime  `json:"bucketByTime"`
	StartTimeMillis int64         `json:"startTimeMillis"`
	EndTimeMillis   int64         `json:"endTimeMillis"`
}

type aggregateBy struct {
	DataTypeName string `json:"dataTypeName"`
}

type bucketByTime struct {
	DurationMillis int64 `json:"durationMillis"`
}

type aggregateResponse struct {
	Bucket []struct {
		Dataset []struct {
			Point []struct {
				Value []struct {
					FpVal  float64 `json:"fpVal"`
					IntVal int64   `json:"intVal"`
				} `json:"value"`
			} `json:"point"`
		} `json:"dataset"`
	} `json:"bucket"`
}

// Daily requests one bucket spanning [local start of asOf's day, asOf) with
// heart points first and steps second. The first reported point of each
// series is taken, defaulting to zero when a series is empty.
func (f *Fitness) Daily(ctx context.Context, accessToken string, asOf time.Time) (DailyAggregate, error) {
	start := time.Date(asOf.Year(), asOf.Month(), asOf.Day(), 0, 0, 0, 0, asOf.Location())
	if !start.Before(asOf) {
		// Right at midnight the window is empty; nothing to query.
		return DailyAggregate{}, nil
	}

	body, err := json.Marshal(aggregateRequest{
		AggregateBy: []aggregateBy{
			{DataTypeName: "com.google.heart_minutes"},
			{DataTypeName: "com.google.step_count.delta"},
		},
		BucketByTime:    bucketByTime{DurationMillis: asOf.UnixMilli() - start.UnixMilli()},
		StartTimeMillis: start.UnixMilli(),
		EndTimeMillis:   asOf.UnixMilli(),
	})
	if err != nil {
		return DailyAggregate{}, fmt.Errorf("failed to build aggregate request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.url, bytes.NewReader(body))
	if err != nil {
		return DailyAggregate{}, fmt.Errorf("failed to build aggregate request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		return DailyAggregate{}, fmt.Errorf("%w: %v", ErrFitnessUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return DailyAggregate{}, fmt.Errorf("%w: status %d", ErrFitnessUnavailable, resp.StatusCode)
	}

	var parsed aggregateResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return DailyAggregate{}, fmt.Errorf("%w: %v", ErrFitnessUnavailable, err)
	}

	// Datasets come back in request order: heart points, then steps.
	var agg DailyAggregate
	if len(parsed.Bucket) > 0 {
		datasets := parsed.Bucket[0].Dataset
		if len(datasets) > 0 {
			if p := datasets[0].Point; len(p) > 0 && len(p[0].Value) > 0 {
				agg.HeartPoints = p[0].Value[0].FpVal
			}
		}
		if len(datasets) > 1 {
			if p := datasets[1].Point; len(p) > 0 && len(p[0].Value) > 0 {
				agg.Steps = p[0].Value[0].IntVal
			}
		}
	}
	return agg, nil
}

// Copyright (C) 2026 Orgflow AI (eng@orgflow.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package providers implements the orchestrator's external
// collaborators: the metrics source the outcome monitor reads, and
// the downstream services that apply and undo interventions.
//
// Every provider classifies its failures for the circuit breaker:
// network errors and server-side failures are wrapped with
// datatypes.Transient so the breaker retries them; client-side
// rejections are returned unwrapped and fail immediately.
package providers

import (
	"context"
	"fmt"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"

	"github.com/orgflow-ai/orgflow/services/orchestrator/datatypes"
)

// InfluxConfig locates the organizational health bucket.
type InfluxConfig struct {
	URL    string
	Token  string
	Org    string
	Bucket string
}

// InfluxMetricsProvider reads connectivity and wellbeing-risk scores
// from InfluxDB. The analytics pipeline writes them to the org_health
// measurement, one point per target per aggregation window.
type InfluxMetricsProvider struct {
	client influxdb2.Client
	query  api.QueryAPI
	bucket string
}

// NewInfluxMetricsProvider connects to InfluxDB. The connection is
// lazy; the first query surfaces configuration problems.
func NewInfluxMetricsProvider(cfg InfluxConfig) *InfluxMetricsProvider {
	client := influxdb2.NewClient(cfg.URL, cfg.Token)
	return &InfluxMetricsProvider{
		client: client,
		query:  client.QueryAPI(cfg.Org),
		bucket: cfg.Bucket,
	}
}

// Current returns the latest metric reading for the target.
//
// Query failures are transient: InfluxDB being briefly unreachable
// should not abort an outcome check that the breaker can retry. A
// target with no data at all is a permanent error.
func (p *InfluxMetricsProvider) Current(ctx context.Context, targetID string) (datatypes.Metrics, error) {
	flux := fmt.Sprintf(`
from(bucket: %q)
  |> range(start: -30d)
  |> filter(fn: (r) => r._measurement == "org_health" and r.target_id == %q)
  |> filter(fn: (r) => r._field == "connectivity" or r._field == "wellbeing_risk")
  |> last()`, p.bucket, targetID)

	result, err := p.query.Query(ctx, flux)
	if err != nil {
		return datatypes.Metrics{}, datatypes.Transient(fmt.Errorf("query org health: %w", err))
	}
	defer result.Close()

	var m datatypes.Metrics
	found := false
	for result.Next() {
		value, ok := result.Record().Value().(float64)
		if !ok {
			continue
		}
		switch result.Record().Field() {
		case "connectivity":
			m.Connectivity = value
			found = true
		case "wellbeing_risk":
			m.WellbeingRisk = value
			found = true
		}
	}
	if err := result.Err(); err != nil {
		return datatypes.Metrics{}, datatypes.Transient(fmt.Errorf("read org health result: %w", err))
	}
	if !found {
		return datatypes.Metrics{}, fmt.Errorf("no health metrics recorded for target %s", targetID)
	}
	return m, nil
}

// Close releases the underlying HTTP client.
func (p *InfluxMetricsProvider) Close() {
	p.client.Close()
}

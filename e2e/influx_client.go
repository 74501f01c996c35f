//go:build e2e

package e2e

import (
	"context"
	"fmt"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
)

// planReader reads back the points the influx sink wrote for a run.
type planReader struct {
	client influxdb2.Client
	org    string
	bucket string
}

func newPlanReader(url, token, org, bucket string) *planReader {
	return &planReader{client: influxdb2.NewClient(url, token), org: org, bucket: bucket}
}

// ensureBucket creates the bucket unless the container init already did.
func (r *planReader) ensureBucket(ctx context.Context) error {
	buckets := r.client.BucketsAPI()
	if b, err := buckets.FindBucketByName(ctx, r.bucket); err == nil && b != nil {
		return nil
	}
	org, err := r.client.OrganizationsAPI().FindOrganizationByName(ctx, r.org)
	if err != nil {
		return fmt.Errorf("find org %s: %w", r.org, err)
	}
	if _, err := buckets.CreateBucketWithName(ctx, org, r.bucket); err != nil {
		return fmt.Errorf("create bucket: %w", err)
	}
	return nil
}

// fields returns the field values of one measurement for runID, keyed by
// field name. Later rows overwrite earlier ones.
func (r *planReader) fields(ctx context.Context, measurement, runID string) (map[string]any, error) {
	flux := fmt.Sprintf(`from(bucket:%q) |> range(start:-10m) |> filter(fn: (r) => r._measurement == %q and r.run_id == %q)`,
		r.bucket, measurement, runID)
	res, err := r.client.QueryAPI(r.org).Query(ctx, flux)
	if err != nil {
		return nil, err
	}
	defer res.Close()
	out := map[string]any{}
	for res.Next() {
		out[res.Record().Field()] = res.Record().Value()
	}
	return out, res.Err()
}

func (r *planReader) close() { r.client.Close() }

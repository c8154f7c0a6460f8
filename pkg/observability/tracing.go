package observability

import (
	"context"

	"github.com/aws/aws-xray-sdk-go/xray"
)

// Tracer wraps X-Ray subsegments around the fanout pipeline. The Lambda
// runtime owns the root segment; this only opens subsegments under it.
type Tracer struct {
	serviceName string
}

// NewTracer creates a tracer for the given service.
func NewTracer(serviceName string) *Tracer {
	return &Tracer{
		serviceName: serviceName,
	}
}

// TraceFanout runs fn inside a fanout subsegment, recording its error on
// the segment before returning it.
func (t *Tracer) TraceFanout(ctx context.Context, fn func(context.Context) error) error {
	ctx, seg := xray.BeginSubsegment(ctx, t.serviceName+".fanout")
	defer seg.Close(nil)

	err := fn(ctx)
	if err != nil {
		seg.AddError(err)
	}

	return err
}

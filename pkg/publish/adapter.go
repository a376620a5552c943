package publish

import (
	"context"
	"fmt"
	"log/slog"

	"socialcast/entities"
)

// Adapter routes one publish across both distribution paths: platforms the
// broker manages and the directly-hosted video platform. The two legs fail
// independently; the post as a whole succeeds when either leg lands.
type Adapter struct {
	broker Broker
	host   VideoHost
	log    *slog.Logger

	// DirectUpload switches the first-party platform from the broker leg to
	// the direct leg. Off means everything goes through the broker.
	DirectUpload bool
}

func NewAdapter(broker Broker, host VideoHost, log *slog.Logger) *Adapter {
	return &Adapter{broker: broker, host: host, log: log.With("component", "publish")}
}

func (a *Adapter) Publish(ctx context.Context, req Request) (Result, error) {
	brokerReq := req
	var direct []entities.Platform
	if a.DirectUpload && a.host != nil {
		brokerReq.Platforms = nil
		for _, p := range req.Platforms {
			if p.Direct() {
				direct = append(direct, p)
			} else {
				brokerReq.Platforms = append(brokerReq.Platforms, p)
			}
		}
	}

	var merged Result
	if len(brokerReq.Platforms) > 0 {
		res, err := a.broker.Publish(ctx, brokerReq)
		merged.Platforms = append(merged.Platforms, res.Platforms...)
		merged.Warnings = append(merged.Warnings, res.Warnings...)
		merged.PostID = res.PostID
		if err != nil {
			a.log.Warn("broker leg failed", "workflow", req.WorkflowID, "err", err)
			merged.Warnings = append(merged.Warnings, fmt.Sprintf("broker: %v", err))
		}
	}

	for _, p := range direct {
		res, err := a.host.Upload(ctx, req)
		if err != nil {
			a.log.Warn("direct upload failed", "workflow", req.WorkflowID, "platform", p, "err", err)
			merged.Warnings = append(merged.Warnings, fmt.Sprintf("%s: %v", p, err))
			merged.Platforms = append(merged.Platforms, PlatformResult{Platform: p, Detail: err.Error()})
			continue
		}
		merged.Platforms = append(merged.Platforms, res)
		if merged.PostID == "" {
			merged.PostID = res.PostID
		}
	}

	if !merged.Succeeded() {
		return merged, fmt.Errorf("no platform accepted the post for workflow %s", req.WorkflowID)
	}
	return merged, nil
}

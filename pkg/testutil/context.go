package testutil

import (
	"context"
	"net/http"
	"time"

	"giveroute/pkg/domain"
	"giveroute/pkg/requestcontext"
)

// WithCaller marks the request as authenticated by caller, as RequireCaller
// would.
func WithCaller(req *http.Request, caller domain.Address) *http.Request {
	return req.WithContext(requestcontext.WithCaller(req.Context(), caller))
}

// CallerContext returns a background context acting as caller at a fixed
// time, for service tests that bypass HTTP.
func CallerContext(caller domain.Address, now time.Time) context.Context {
	ctx := requestcontext.WithCaller(context.Background(), caller)
	return requestcontext.WithTime(ctx, now)
}

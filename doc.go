// Package kaonavi is the request core of a client for the Kaonavi HR-data API (v2).
//
//   - Lazy authentication: a bearer token is requested on first use and cached
//     until cleared with SetAccessToken("")
//   - Mutating calls are throttled to 5 per rolling 60 seconds; each permit
//     returns 60 seconds after the call that used it succeeded, failed calls
//     return theirs immediately
//   - Envelope codec for the {"<name>": [...]} shape used by most endpoints
//   - Mutating calls return a TaskHandle; ReadTaskProgress reports the job state
//   - Non-2xx responses become *ClientError with the server's messages
//   - Middleware chain, hclog debug logging and Prometheus metrics
//
// Typical usage:
//
//	client, err := kaonavi.New(key, secret, kaonavi.WithLogger(logger))
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	members, err := kaonavi.Do(ctx, client,
//	    kaonavi.Request{Method: http.MethodGet, Path: "/members"},
//	    kaonavi.EnvelopeDecoder[Member]("member_data"))
//
//	task, err := kaonavi.DoMutating(ctx, client, http.MethodPatch, "/members",
//	    members, kaonavi.EnvelopeEncoder[Member]("member_data"))
//	progress, err := client.ReadTask(ctx, task)
//
// Nothing is retried. Token expiry is not tracked: when the API rejects a stale
// token, clear it and call again.
package kaonavi

package mid

import (
	"context"
	"net/http"

	"github.com/tracechain/ledger/business/web/errs"
	"github.com/tracechain/ledger/foundation/web"
	"go.uber.org/zap"
)

// Errors handles errors coming out of the call chain. It detects normal
// application errors which are used to respond to the client in a
// uniform way. Unexpected errors (status code 500) are logged.
func Errors(log *zap.SugaredLogger) web.Middleware {

	m := func(handler web.Handler) web.Handler {

		h := func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
			if err := handler(ctx, w, r); err != nil {

				v, verr := web.GetValues(ctx)
				traceID := "unknown"
				if verr == nil {
					traceID = v.TraceID
				}

				switch {
				case web.IsFieldErrors(err):
					fe := err.(*web.FieldErrors)
					return web.RespondError(ctx, w, "data validation error", map[string]string{"fields": fe.Fields}, http.StatusBadRequest)

				case errs.IsTrusted(err):
					trusted := errs.GetTrusted(err)
					if trusted.Status >= http.StatusInternalServerError {
						log.Errorw("server error", "traceid", traceID, "ERROR", trusted.Err)
					}
					return web.RespondError(ctx, w, trusted.Error(), nil, trusted.Status)

				default:
					log.Errorw("unhandled error", "traceid", traceID, "ERROR", err)
					if rerr := web.RespondError(ctx, w, "internal server error", nil, http.StatusInternalServerError); rerr != nil {
						return rerr
					}
				}

				// Returning the original error lets the App detect a shutdown
				// error and begin a graceful termination.
				return err
			}

			return nil
		}

		return h
	}

	return m
}

package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/hitoshi/authgate/internal/middleware"
	"github.com/hitoshi/authgate/internal/model"
)

// HealthChecker はストアの疎通確認インターフェース。
type HealthChecker interface {
	Ping(ctx context.Context) error
}

// healthCheckTimeout はヘルスチェック時のストア疎通確認のタイムアウト。
const healthCheckTimeout = 3 * time.Second

// NewHealthHandler はストアの疎通を確認するヘルスチェックハンドラーを返す。
// GET /health
func NewHealthHandler(checker HealthChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if checker != nil {
			ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
			defer cancel()

			if err := checker.Ping(ctx); err != nil {
				slog.Error("health check failed", slog.String("error", err.Error()))
				middleware.WriteEnvelope(w, r, http.StatusServiceUnavailable, "Store unavailable", &middleware.ErrorBody{
					Code: model.ErrCodePersistenceFailed,
					Kind: string(model.KindPersistence),
				}, nil)
				return
			}
		}

		middleware.WriteSuccess(w, r, map[string]string{"status": "ok"})
	}
}

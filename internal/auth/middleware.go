package auth

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"Web3Agent-Chain/pkg/logger"
)

// Middleware 拦截 HTTP 请求并完成 API Key 认证.
// 认证关闭时直接放行, 成功时把主体写入请求上下文.
func Middleware(service *Service) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !service.Enabled() {
				next.ServeHTTP(w, r)
				return
			}
			subject, err := service.Authenticate(r.Context(), extractKey(r))
			if err != nil {
				logger.Ops().Warn("认证失败",
					"path", r.URL.Path,
					"method", r.Method,
					"remote", r.RemoteAddr,
					"reason", err.Error(),
				)
				writeUnauthorized(w, err)
				return
			}
			logger.Ops().Info("认证通过",
				"path", r.URL.Path,
				"method", r.Method,
				"workspace", subject.Workspace,
				"key_id", subject.KeyID,
			)
			next.ServeHTTP(w, r.WithContext(WithSubject(r.Context(), subject)))
		})
	}
}

// extractKey 依次尝试 Authorization Bearer 与 X-API-Key 头.
func extractKey(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	}
	return strings.TrimSpace(r.Header.Get("X-API-Key"))
}

func writeUnauthorized(w http.ResponseWriter, err error) {
	message := "凭证无效"
	if errors.Is(err, ErrMissingCredentials) {
		message = "请求缺少凭证"
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"status": "failed",
		"error":  message,
	})
}

package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"Web3Agent-Chain/internal/auth"
	xerrors "Web3Agent-Chain/internal/errors"
	"Web3Agent-Chain/internal/observability/metrics"
	"Web3Agent-Chain/internal/task"
	"Web3Agent-Chain/internal/tools"
)

// Server 负责暴露 REST 接口, 供外部提交分析任务与直接调用链上工具。
type Server struct {
	addr     string
	registry *tools.Registry
	tasks    *task.Service
	auth     *auth.Service
}

// NewServer 构造 API 服务实例。
func NewServer(addr string, registry *tools.Registry, tasks *task.Service, authService *auth.Service) *Server {
	return &Server{addr: addr, registry: registry, tasks: tasks, auth: authService}
}

// Start 启动 HTTP 服务, 直到上下文取消或出现错误。
func (s *Server) Start(ctx context.Context) error {
	server := &http.Server{
		Addr:              s.addr,
		Handler:           withContext(ctx, s.Handler()),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}

// Handler 组装完整路由, 认证中间件只覆盖业务接口。
func (s *Server) Handler() http.Handler {
	protected := http.NewServeMux()
	protected.HandleFunc("GET /api/v1/tools", s.instrument("tools_list", s.handleListTools))
	protected.HandleFunc("POST /api/v1/tools/{name}", s.instrument("tool_execute", s.handleExecuteTool))
	protected.HandleFunc("POST /api/v1/analyses", s.instrument("analysis_submit", s.handleSubmitAnalysis))
	protected.HandleFunc("GET /api/v1/analyses", s.instrument("analysis_list", s.handleListAnalyses))
	protected.HandleFunc("GET /api/v1/analyses/stats", s.instrument("analysis_stats", s.handleAnalysisStats))
	protected.HandleFunc("GET /api/v1/analyses/{id}", s.instrument("analysis_detail", s.handleAnalysisDetail))

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.Handle("GET /metrics", metrics.Handler())
	mux.Handle("/api/", auth.Middleware(s.auth)(protected))
	return mux
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

func (s *Server) handleListTools(w http.ResponseWriter, _ *http.Request) {
	if s.registry == nil {
		writeError(w, http.StatusServiceUnavailable, "工具注册表未初始化")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"tools":  s.registry.Names(),
	})
}

// handleExecuteTool 直接执行单个工具, 工具结果自带 status 字段。
func (s *Server) handleExecuteTool(w http.ResponseWriter, r *http.Request) {
	if s.registry == nil {
		writeError(w, http.StatusServiceUnavailable, "工具注册表未初始化")
		return
	}
	name := r.PathValue("name")
	if _, ok := s.registry.Get(name); !ok {
		writeError(w, http.StatusNotFound, "未找到工具: "+name)
		return
	}

	params := map[string]any{}
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&params); err != nil {
			writeError(w, http.StatusBadRequest, "请求体解析失败")
			return
		}
	}

	result := s.registry.Execute(r.Context(), name, params)
	status := http.StatusOK
	if result["status"] == tools.StatusFailed {
		status = http.StatusUnprocessableEntity
	}
	writeJSON(w, status, result)
}

type submitAnalysisRequest struct {
	ID        string         `json:"id,omitempty"`
	Operation string         `json:"operation"`
	Goal      string         `json:"goal,omitempty"`
	Target    string         `json:"target,omitempty"`
	Params    map[string]any `json:"params,omitempty"`
}

func (s *Server) handleSubmitAnalysis(w http.ResponseWriter, r *http.Request) {
	if s.tasks == nil {
		writeError(w, http.StatusServiceUnavailable, "任务服务未初始化")
		return
	}

	var req submitAnalysisRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "请求体解析失败")
		return
	}

	created, err := s.tasks.Submit(r.Context(), task.Request{
		ID:        req.ID,
		Operation: req.Operation,
		Goal:      req.Goal,
		Target:    req.Target,
		Params:    req.Params,
	})
	if err != nil {
		writeTaskError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, created)
}

func (s *Server) handleAnalysisDetail(w http.ResponseWriter, r *http.Request) {
	if s.tasks == nil {
		writeError(w, http.StatusServiceUnavailable, "任务服务未初始化")
		return
	}
	found, err := s.tasks.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeTaskError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, found)
}

func (s *Server) handleListAnalyses(w http.ResponseWriter, r *http.Request) {
	if s.tasks == nil {
		writeError(w, http.StatusServiceUnavailable, "任务服务未初始化")
		return
	}
	opts, err := listOptionsFromQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	results, err := s.tasks.List(r.Context(), opts...)
	if err != nil {
		writeTaskError(w, err)
		return
	}
	if results == nil {
		results = []*task.Task{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"tasks":  results,
	})
}

func (s *Server) handleAnalysisStats(w http.ResponseWriter, r *http.Request) {
	if s.tasks == nil {
		writeError(w, http.StatusServiceUnavailable, "任务服务未初始化")
		return
	}
	opts, err := listOptionsFromQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	stats, err := s.tasks.Stats(r.Context(), opts...)
	if err != nil {
		writeTaskError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// listOptionsFromQuery 把查询参数翻译成任务列表过滤条件。
func listOptionsFromQuery(r *http.Request) ([]task.ListOption, error) {
	var opts []task.ListOption
	query := r.URL.Query()

	if raw := query.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit <= 0 {
			return nil, errors.New("limit 参数必须是正整数")
		}
		opts = append(opts, task.WithLimit(limit))
	}
	if raw := query.Get("offset"); raw != "" {
		offset, err := strconv.Atoi(raw)
		if err != nil || offset < 0 {
			return nil, errors.New("offset 参数必须是非负整数")
		}
		opts = append(opts, task.WithOffset(offset))
	}
	if raw := query.Get("status"); raw != "" {
		var statuses []task.Status
		for _, value := range strings.Split(raw, ",") {
			status := task.Status(strings.TrimSpace(value))
			if !task.IsValidStatus(status) {
				return nil, errors.New("不支持的任务状态: " + string(status))
			}
			statuses = append(statuses, status)
		}
		opts = append(opts, task.WithStatuses(statuses...))
	}
	if raw := query.Get("operation"); raw != "" {
		opts = append(opts, task.WithOperations(strings.Split(raw, ",")...))
	}
	if raw := query.Get("q"); raw != "" {
		opts = append(opts, task.WithQuery(raw))
	}
	if query.Get("order") == "asc" {
		opts = append(opts, task.WithSortOrder(task.SortByUpdatedAsc))
	}
	return opts, nil
}

// instrument 记录每个接口的请求量与时延。
func (s *Server) instrument(name string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next(recorder, r)
		metrics.ObserveHTTPRequest(name, r.Method, recorder.status, time.Since(start))
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func writeTaskError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, task.ErrTaskNotFound):
		writeError(w, http.StatusNotFound, "任务不存在")
	case xerrors.CodeOf(err) == task.CodeTaskValidation || xerrors.CodeOf(err) == xerrors.CodeInvalidArgument:
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{
		"status": "failed",
		"error":  message,
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// withContext 确保请求处理能够感知根上下文取消。
func withContext(ctx context.Context, handler http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-ctx.Done():
			writeError(w, http.StatusServiceUnavailable, "服务已关闭")
			return
		default:
		}
		handler.ServeHTTP(w, r)
	})
}

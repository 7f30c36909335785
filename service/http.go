package service

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/rushteam/recserve/core"
	"github.com/rushteam/recserve/dataset"
	"github.com/rushteam/recserve/explain"
	"github.com/rushteam/recserve/filter"
	"github.com/rushteam/recserve/recall"
)

// maxUserID 之上的用户 ID 直接按"用户不存在"处理，不进入推荐链路。
const maxUserID = 1_000_000_000

// Server 是 HTTP 服务层：请求解析 / 鉴权 / 模型注册表校验都在这一层，
// 核心组件只接收已校验的参数。调度器输出在这里做可选过滤与热门兜底补齐。
type Server struct {
	log zerolog.Logger

	token      string
	kRecs      int
	registered map[string]struct{}
	explained  map[string]struct{}

	dispatcher core.Recommender
	engine     *explain.Engine
	popular    *recall.Popular
	filter     *filter.ExprFilter // 可为 nil（未配置）
	catalog    *dataset.Catalog
}

// Options 是 Server 的装配参数。
type Options struct {
	Token            string
	KRecs            int
	RegisteredModels []string
	ExplainedModels  []string
	Dispatcher       core.Recommender
	Engine           *explain.Engine
	Popular          *recall.Popular
	Filter           *filter.ExprFilter
	Catalog          *dataset.Catalog
}

func New(log zerolog.Logger, opts Options) *Server {
	return &Server{
		log:        log,
		token:      opts.Token,
		kRecs:      opts.KRecs,
		registered: toSet(opts.RegisteredModels),
		explained:  toSet(opts.ExplainedModels),
		dispatcher: opts.Dispatcher,
		engine:     opts.Engine,
		popular:    opts.Popular,
		filter:     opts.Filter,
		catalog:    opts.Catalog,
	}
}

// Router 组装路由与中间件。
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(s.authMiddleware)
	r.Get("/health", s.handleHealth)
	r.Get("/reco/{model_name}/{user_id}", s.handleReco)
	r.Get("/explain/{model_name}/{user_id}/{item_id}", s.handleExplain)
	return r
}

// recoResponse 是 /reco 的响应体。
type recoResponse struct {
	UserID int64   `json:"user_id"`
	Items  []int64 `json:"items"`
}

// explainResponse 是 /explain 的响应体。
type explainResponse struct {
	Score       int    `json:"score"`
	Explanation string `json:"explanation"`
}

type apiError struct {
	ErrorKey     string `json:"error_key"`
	ErrorMessage string `json:"error_message"`
}

type errorResponse struct {
	Errors []apiError `json:"errors"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, "I am alive")
}

func (s *Server) handleReco(w http.ResponseWriter, r *http.Request) {
	modelName := chi.URLParam(r, "model_name")
	if _, ok := s.registered[modelName]; !ok {
		s.writeError(w, http.StatusNotFound, "model_not_found", "model name '"+modelName+"' not found")
		return
	}
	userID, ok := s.parseUserID(w, chi.URLParam(r, "user_id"))
	if !ok {
		return
	}

	s.log.Info().Str("model", modelName).Int64("user_id", userID).Msg("reco request")

	recs, err := s.dispatcher.Recommend(r.Context(), userID, s.kRecs)
	if err != nil {
		s.log.Error().Err(err).Int64("user_id", userID).Msg("recommend failed")
		s.writeError(w, http.StatusInternalServerError, "internal_error", "recommendation failed")
		return
	}

	if s.filter != nil {
		recs = s.filter.Apply(recs, s.catalog)
	}
	recs = s.popular.Fill(recs, s.kRecs)
	if recs == nil {
		recs = []int64{}
	}

	writeJSON(w, http.StatusOK, recoResponse{UserID: userID, Items: recs})
}

func (s *Server) handleExplain(w http.ResponseWriter, r *http.Request) {
	modelName := chi.URLParam(r, "model_name")
	if _, ok := s.explained[modelName]; !ok {
		s.writeError(w, http.StatusNotFound, "model_not_found", "model name '"+modelName+"' not found")
		return
	}
	userID, ok := s.parseUserID(w, chi.URLParam(r, "user_id"))
	if !ok {
		return
	}
	itemID, err := strconv.ParseInt(chi.URLParam(r, "item_id"), 10, 64)
	if err != nil {
		s.writeError(w, http.StatusNotFound, "item_not_found", "item id is not valid")
		return
	}

	s.log.Info().
		Str("model", modelName).
		Int64("user_id", userID).
		Int64("item_id", itemID).
		Msg("explain request")

	score, text := s.engine.Explain(modelName, userID, itemID)
	writeJSON(w, http.StatusOK, explainResponse{Score: score, Explanation: text})
}

// parseUserID 解析并校验 user_id；非法或超范围时写出 user_not_found。
func (s *Server) parseUserID(w http.ResponseWriter, raw string) (int64, bool) {
	userID, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || userID > maxUserID {
		s.writeError(w, http.StatusNotFound, "user_not_found", "user "+raw+" not found")
		return 0, false
	}
	return userID, true
}

// authMiddleware 校验 Bearer token。
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		if token == "" || token != s.token {
			s.writeError(w, http.StatusUnauthorized, "token_is_not_correct", "authorization token is not correct")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) writeError(w http.ResponseWriter, status int, key, message string) {
	writeJSON(w, status, errorResponse{
		Errors: []apiError{{ErrorKey: key, ErrorMessage: message}},
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func toSet(names []string) map[string]struct{} {
	set := make(map[string]struct{}, len(names))
	for _, n := range names {
		set[n] = struct{}{}
	}
	return set
}

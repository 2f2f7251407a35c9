package server

import (
	"bytes"
	"context"
	"errors"
	"strconv"
	"time"

	kerrors "github.com/go-kratos/kratos/v2/errors"
	"github.com/go-kratos/kratos/v2/log"
	"github.com/go-kratos/kratos/v2/middleware/recovery"
	"github.com/go-kratos/kratos/v2/transport/http"

	"github.com/iWorld-y/azure_radar/internal/conf"
	"github.com/iWorld-y/azure_radar/internal/report"
	"github.com/iWorld-y/azure_radar/internal/storage"
)

// RunReader 读取已保存的运行记录
type RunReader interface {
	ListRuns(ctx context.Context, page, pageSize int) ([]storage.RunSummary, int, error)
	GetRun(ctx context.Context, id string) (*storage.StoredRun, error)
}

// ListRunsReply 运行列表响应
type ListRunsReply struct {
	Runs  []storage.RunSummary `json:"runs"`
	Total int                  `json:"total"`
}

type runService struct {
	runs RunReader
	log  *log.Helper
}

func NewHTTPServer(c *conf.Server, runs RunReader, logger log.Logger) *http.Server {
	var opts = []http.ServerOption{
		http.Middleware(
			recovery.Recovery(),
		),
	}
	if c != nil && c.Http != nil {
		if c.Http.Addr != "" {
			opts = append(opts, http.Address(c.Http.Addr))
		}
		if c.Http.Timeout != "" {
			if d, err := time.ParseDuration(c.Http.Timeout); err == nil {
				opts = append(opts, http.Timeout(d))
			}
		}
	}

	srv := http.NewServer(opts...)
	s := &runService{runs: runs, log: log.NewHelper(logger)}

	r := srv.Route("/")
	r.GET("/api/runs", s.listRuns)
	r.GET("/api/runs/{id}", s.getRun)
	r.GET("/runs/{id}", s.renderRun)
	return srv
}

func (s *runService) listRuns(ctx http.Context) error {
	page := atoiOr(ctx.Query().Get("page"), 1)
	pageSize := atoiOr(ctx.Query().Get("page_size"), 10)
	if pageSize > 100 {
		pageSize = 100
	}

	http.SetOperation(ctx, "/runs/list")
	h := ctx.Middleware(func(c context.Context, _ interface{}) (interface{}, error) {
		runs, total, err := s.runs.ListRuns(c, page, pageSize)
		if err != nil {
			s.log.Errorf("list runs: %v", err)
			return nil, kerrors.InternalServer("LIST_RUNS_FAILED", "failed to list runs")
		}
		return &ListRunsReply{Runs: runs, Total: total}, nil
	})
	out, err := h(ctx, nil)
	if err != nil {
		return err
	}
	return ctx.Result(200, out)
}

func (s *runService) getRun(ctx http.Context) error {
	id := ctx.Vars().Get("id")

	http.SetOperation(ctx, "/runs/get")
	h := ctx.Middleware(func(c context.Context, _ interface{}) (interface{}, error) {
		return s.loadRun(c, id)
	})
	out, err := h(ctx, nil)
	if err != nil {
		return err
	}
	return ctx.Result(200, out)
}

func (s *runService) renderRun(ctx http.Context) error {
	run, err := s.loadRun(ctx, ctx.Vars().Get("id"))
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	title := "Azure Environment Summary - " + run.SubscriptionID
	if err := report.RenderHTML(&buf, title, run.Markdown); err != nil {
		s.log.Errorf("render run %s: %v", run.ID, err)
		return kerrors.InternalServer("RENDER_FAILED", "failed to render report")
	}
	return ctx.Blob(200, "text/html; charset=utf-8", buf.Bytes())
}

func (s *runService) loadRun(ctx context.Context, id string) (*storage.StoredRun, error) {
	run, err := s.runs.GetRun(ctx, id)
	if errors.Is(err, storage.ErrRunNotFound) {
		return nil, kerrors.NotFound("RUN_NOT_FOUND", "run "+id+" not found")
	}
	if err != nil {
		s.log.Errorf("get run %s: %v", id, err)
		return nil, kerrors.InternalServer("GET_RUN_FAILED", "failed to load run")
	}
	return run, nil
}

func atoiOr(s string, def int) int {
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 {
		return def
	}
	return n
}

package main

import (
	"context"
	"flag"
	"math/rand"
	"net/http"
	"os"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/rushteam/recserve/config"
	"github.com/rushteam/recserve/core"
	"github.com/rushteam/recserve/dataset"
	"github.com/rushteam/recserve/explain"
	"github.com/rushteam/recserve/feature"
	"github.com/rushteam/recserve/filter"
	"github.com/rushteam/recserve/model"
	"github.com/rushteam/recserve/pipeline"
	"github.com/rushteam/recserve/rank"
	"github.com/rushteam/recserve/recall"
	"github.com/rushteam/recserve/service"
	"github.com/rushteam/recserve/store"
)

// popularDepth 是启动时预取的热门榜长度，足够覆盖任何 k_recs 的兜底需求。
const popularDepth = 1000

func main() {
	log := zerolog.New(os.Stderr).With().Timestamp().Logger()

	configPath := flag.String("config", "./configs/recserve.yaml", "path to service config")
	flag.Parse()

	cfg, err := config.LoadFromYAML(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("load config")
	}

	kv, err := openStore(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("open store")
	}
	defer kv.Close()
	arts := store.NewArtifacts(kv)

	// 工件加载：任何一项失败都拒绝启动（fail-fast）
	ctx := context.Background()
	var (
		index      *dataset.Index
		catalog    *dataset.Catalog
		alsModel   *model.ALSModel
		importance []int64
		popular    []int64
	)
	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		records, err := dataset.LoadInteractions(cfg.Data.InteractionsPath)
		if err != nil {
			return err
		}
		index, err = dataset.BuildIndex(records)
		return err
	})
	eg.Go(func() error {
		var err error
		catalog, err = dataset.LoadCatalog(cfg.Data.ItemsPath)
		return err
	})
	eg.Go(func() error {
		if cfg.Data.ALSModelPath == "" {
			return nil
		}
		var err error
		alsModel, err = model.LoadALSModel(cfg.Data.ALSModelPath)
		return err
	})
	eg.Go(func() error {
		var err error
		importance, err = arts.ItemImportance(egCtx)
		return err
	})
	eg.Go(func() error {
		var err error
		popular, err = arts.Popular(egCtx, popularDepth)
		return err
	})
	if err := eg.Wait(); err != nil {
		log.Fatal().Err(err).Msg("load artifacts")
	}
	log.Info().
		Int("users", index.Users.Len()).
		Int("items", index.Items.Len()).
		Int("interactions", index.Matrix.NNZ()).
		Str("store", kv.Name()).
		Msg("artifacts loaded")

	dispatcher, err := buildDispatcher(cfg, index, arts, importance)
	if err != nil {
		log.Fatal().Err(err).Msg("build pipeline")
	}

	rnd := rand.New(rand.NewSource(time.Now().UnixNano()))
	var factorModel core.FactorModel
	if alsModel != nil {
		factorModel = alsModel
	}
	engine, err := explain.NewEngine(cfg.Explain, factorModel, index, catalog, rnd)
	if err != nil {
		log.Fatal().Err(err).Msg("build explain engine")
	}

	var exprFilter *filter.ExprFilter
	if cfg.Filter.Expr != "" {
		exprFilter, err = filter.New(cfg.Filter.Expr)
		if err != nil {
			log.Fatal().Err(err).Msg("build filter")
		}
		log.Info().Str("expr", exprFilter.Expr()).Msg("recommendation filter enabled")
	}

	srv := service.New(log, service.Options{
		Token:            cfg.Service.AuthToken,
		KRecs:            cfg.Service.KRecs,
		RegisteredModels: cfg.RegisteredModels,
		ExplainedModels:  cfg.ExplainedModels,
		Dispatcher:       dispatcher,
		Engine:           engine,
		Popular:          &recall.Popular{Items: popular},
		Filter:           exprFilter,
		Catalog:          catalog,
	})

	log.Info().Str("listen", cfg.Service.Listen).Str("mode", cfg.Pipeline.Mode).Msg("serving")
	if err := http.ListenAndServe(cfg.Service.Listen, srv.Router()); err != nil {
		log.Fatal().Err(err).Msg("serve")
	}
}

func openStore(cfg *config.Config) (core.Store, error) {
	if cfg.Store.Backend == "redis" {
		return store.NewRedisStore(cfg.Store.Redis.Addr, cfg.Store.Redis.DB)
	}
	return store.NewMemoryStore(), nil
}

// buildDispatcher 按配置装配一段式/两段式流水线。
func buildDispatcher(
	cfg *config.Config,
	index *dataset.Index,
	arts *store.Artifacts,
	importance []int64,
) (*pipeline.Dispatcher, error) {
	mode, err := pipeline.ParseMode(cfg.Pipeline.Mode)
	if err != nil {
		return nil, err
	}

	switch mode {
	case pipeline.ModeOneStage:
		var sim, blend core.SimilarityModel
		if cfg.Pipeline.KNN.TypeReco == recall.TypeOnline {
			sim = model.NewCosineSimilarity(index.Matrix)
			if cfg.Pipeline.KNN.Blending {
				blend = model.NewTFIDFSimilarity(index.Matrix)
			}
		}
		knn, err := recall.NewUserKNN(cfg.Pipeline.KNN, sim, blend, index.Users, arts, arts, importance)
		if err != nil {
			return nil, err
		}
		return pipeline.NewDispatcher(mode, knn, nil, nil)

	case pipeline.ModeTwoStage:
		ranker, err := model.LoadLRRanker(cfg.Pipeline.Ranker.ModelPath)
		if err != nil {
			return nil, err
		}
		provider, err := buildFeatureProvider(cfg.Pipeline.Ranker)
		if err != nil {
			return nil, err
		}
		candidateRanker, err := rank.NewCandidateRanker(ranker, provider, cfg.Pipeline.Ranker.FeatureColumns)
		if err != nil {
			return nil, err
		}
		return pipeline.NewDispatcher(mode, nil, arts, candidateRanker)

	default:
		return pipeline.NewDispatcher(pipeline.ModeNone, nil, nil, nil)
	}
}

func buildFeatureProvider(cfg config.RankerConfig) (feature.Provider, error) {
	if cfg.Features.Source == "feast" {
		return feature.NewFeastProvider(cfg.Features.Feast)
	}
	return feature.NewTableProvider(cfg.Features.UsersPath, cfg.Features.ItemsPath)
}
